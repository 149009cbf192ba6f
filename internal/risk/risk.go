// Package risk implements the Risk Scorer (C4): a deterministic, configurable
// weighted sum over plan-shape factors, producing an auto-approve verdict.
package risk

import (
	"fmt"
	"math"
	"regexp"
)

// DefaultThreshold is the score at or below which a plan auto-approves.
const DefaultThreshold = 25

// PatternWeight pairs a sensitive-path regex with its contribution.
type PatternWeight struct {
	Name    string
	Pattern string
	Weight  float64
}

// DefaultPatterns mirrors spec.md's example sensitive-path categories.
func DefaultPatterns() []PatternWeight {
	return []PatternWeight{
		{Name: "auth", Pattern: `(?i)(^|/)auth`, Weight: 25},
		{Name: "payment", Pattern: `(?i)(^|/)(payment|billing)`, Weight: 30},
		{Name: "prod", Pattern: `(?i)(^|/)(prod|production)`, Weight: 20},
		{Name: "env", Pattern: `(?i)(^|/)\.env`, Weight: 25},
		{Name: "secret", Pattern: `(?i)secret`, Weight: 25},
		{Name: "migration", Pattern: `(?i)migrat`, Weight: 15},
	}
}

// Config holds the tunable parameters of the scorer.
type Config struct {
	Patterns  []PatternWeight
	Threshold float64
}

// DefaultConfig returns the spec.md defaults.
func DefaultConfig() Config {
	return Config{Patterns: DefaultPatterns(), Threshold: DefaultThreshold}
}

// Input is the plan-shape data the scorer needs, decoupled from plan.Plan so
// this package has no import dependency on it.
type Input struct {
	AllFilePaths        []string
	TaskCount           int
	TotalFiles          int
	TotalPatchIntents   int
	ContractCount       int
	NewRuntimeDepsCount int
	TasksWithoutTest    int // count of tasks with zero "test"-type checks
}

// FactorScore is one contributing line item, kept for explainability.
type FactorScore struct {
	Factor string
	Score  float64
}

// Result is the scorer's full output.
type Result struct {
	Factors     []FactorScore
	Score       float64
	Threshold   float64
	AutoApprove bool
	// DroppedPatterns lists pattern names whose regex failed to compile;
	// these never fail the scorer, only reduce its signal.
	DroppedPatterns []string
}

// Score computes the deterministic weighted sum described in spec.md §4.4.
// Invalid regexes in cfg.Patterns are dropped with a warning, never fatal.
func Score(in Input, cfg Config) Result {
	var factors []FactorScore
	var dropped []string
	total := 0.0

	type compiledPattern struct {
		name   string
		re     *regexp.Regexp
		weight float64
	}
	compiled := make([]compiledPattern, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			dropped = append(dropped, p.Name)
			continue
		}
		compiled = append(compiled, compiledPattern{name: p.Name, re: re, weight: p.Weight})
	}

	for _, c := range compiled {
		matchedAny := false
		for _, path := range in.AllFilePaths {
			if c.re.MatchString(path) {
				matchedAny = true
				break
			}
		}
		if matchedAny {
			factors = append(factors, FactorScore{Factor: fmt.Sprintf("sensitive_path:%s", c.name), Score: c.weight})
			total += c.weight
		}
	}

	if over := in.TaskCount - 5; over > 0 {
		s := float64(over) * 5
		factors = append(factors, FactorScore{Factor: "task_count_over_5", Score: s})
		total += s
	}
	if over := in.TotalFiles - 10; over > 0 {
		s := float64(over) * 3
		factors = append(factors, FactorScore{Factor: "total_files_over_10", Score: s})
		total += s
	}
	if over := in.TotalPatchIntents - 3; over > 0 {
		s := float64(over) * 5
		factors = append(factors, FactorScore{Factor: "patch_intents_over_3", Score: s})
		total += s
	}
	if in.NewRuntimeDepsCount > 0 {
		s := float64(in.NewRuntimeDepsCount) * 3
		factors = append(factors, FactorScore{Factor: "new_runtime_deps", Score: s})
		total += s
	}
	if over := in.ContractCount - 3; over > 0 {
		s := float64(over) * 5
		factors = append(factors, FactorScore{Factor: "contracts_over_3", Score: s})
		total += s
	}
	if in.TaskCount > 0 && in.TasksWithoutTest > 0 {
		fraction := float64(in.TasksWithoutTest) / float64(in.TaskCount)
		s := math.Round(fraction * 20)
		if s > 0 {
			factors = append(factors, FactorScore{Factor: "fraction_without_test_check", Score: s})
			total += s
		}
	}

	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	return Result{
		Factors:         factors,
		Score:           total,
		Threshold:       threshold,
		AutoApprove:     total <= threshold,
		DroppedPatterns: dropped,
	}
}
