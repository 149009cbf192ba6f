// Package config implements the orchestrator's defaults-plus-YAML-overlay-
// plus-env-override configuration loader, adapted from the teacher's
// config.go pattern but declaring the kernel's own key surface:
// orchestration.*, approval.*, boundaries.*, dependencies.ecosystems.*,
// contracts.*, patch_intents.*, plus the ambient console.* output toggles.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taskmesh/orchestrator/internal/risk"
)

// ConsoleConfig controls terminal output formatting, carried as ambient
// stack regardless of which kernel features a Non-goal excludes.
type ConsoleConfig struct {
	EnableColor       bool `yaml:"enable_color"`
	EnableProgressBar bool `yaml:"enable_progress_bar"`
	ShowTaskDetails   bool `yaml:"show_task_details"`
	CompactMode       bool `yaml:"compact_mode"`
	ShowDurations     bool `yaml:"show_durations"`
}

// OrchestrationConfig controls C12's wave/iteration scheduling.
type OrchestrationConfig struct {
	MaxParallelWorkers int           `yaml:"max_parallel_workers"`
	MaxIterations      int           `yaml:"max_iterations"`
	TaskTimeout        time.Duration `yaml:"task_timeout"`
	HeapSizeMB         int           `yaml:"heap_size_mb"`
}

// ApprovalConfig controls C12's risk gate.
type ApprovalConfig struct {
	AutoApprove   bool    `yaml:"auto_approve"`
	RiskThreshold float64 `yaml:"risk_threshold"`
	// SensitivePatterns overrides risk.DefaultPatterns() per spec.md §4.4
	// ("patterns and threshold are config-overridable"). Nil keeps the
	// defaults; an explicit empty list in YAML disables pattern scoring.
	SensitivePatterns []risk.PatternWeight `yaml:"sensitive_patterns,omitempty"`
}

// BoundariesConfig controls C9 Step A.
type BoundariesConfig struct {
	ChurnThreshold    int  `yaml:"churn_threshold"`
	AllowLargeChanges bool `yaml:"allow_large_changes"`
}

// EcosystemConfig declares one package ecosystem's install command, used at
// Stage 0.5 when a task's deps_required names new runtime/dev packages.
type EcosystemConfig struct {
	Name           string `yaml:"name"`
	InstallCommand string `yaml:"install_command"`
	LockfileName   string `yaml:"lockfile_name"`
}

// DependenciesConfig controls Stage 0.5's environment install step.
type DependenciesConfig struct {
	Ecosystems []EcosystemConfig `yaml:"ecosystems"`
}

// ContractsConfig controls C9 Step D's renegotiation budget.
type ContractsConfig struct {
	MaxRenegotiations int `yaml:"max_renegotiations"`
}

// PatchIntentsConfig controls C10's adapter selection.
type PatchIntentsConfig struct {
	MinApplicabilityConfidence float64 `yaml:"min_applicability_confidence"`
}

// Config is the orchestrator's full configuration document, loaded from
// .orchestrator.yaml with environment overrides for console toggles.
type Config struct {
	LogLevel     string `yaml:"log_level"`
	LogDir       string `yaml:"log_dir"`

	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Approval      ApprovalConfig      `yaml:"approval"`
	Boundaries    BoundariesConfig    `yaml:"boundaries"`
	Dependencies  DependenciesConfig  `yaml:"dependencies"`
	Contracts     ContractsConfig     `yaml:"contracts"`
	PatchIntents  PatchIntentsConfig  `yaml:"patch_intents"`
	Console       ConsoleConfig       `yaml:"console"`
}

// DefaultConsoleConfig returns ConsoleConfig with sensible defaults.
func DefaultConsoleConfig() ConsoleConfig {
	return ConsoleConfig{
		EnableColor:       true,
		EnableProgressBar: true,
		ShowTaskDetails:   true,
		CompactMode:       false,
		ShowDurations:     true,
	}
}

// DefaultConfig returns a Config populated with every spec.md default:
// max_parallel_workers unset (0 = unlimited per-wave), max_iterations 3
// (state.MaxIterations), task_timeout 1800s, churn_threshold 500,
// max_renegotiations 2, applicability confidence 0.5.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		LogDir:   ".orchestrator/logs",
		Orchestration: OrchestrationConfig{
			MaxParallelWorkers: 0,
			MaxIterations:      3,
			TaskTimeout:        30 * time.Minute,
			HeapSizeMB:         4096,
		},
		Approval: ApprovalConfig{
			AutoApprove:       false,
			RiskThreshold:     25,
			SensitivePatterns: risk.DefaultPatterns(),
		},
		Boundaries: BoundariesConfig{
			ChurnThreshold:    500,
			AllowLargeChanges: false,
		},
		Dependencies: DependenciesConfig{
			Ecosystems: []EcosystemConfig{
				{Name: "go", InstallCommand: "go mod download", LockfileName: "go.sum"},
				{Name: "node", InstallCommand: "npm ci", LockfileName: "package-lock.json"},
				{Name: "python", InstallCommand: "pip install -r requirements.txt", LockfileName: "requirements.txt"},
			},
		},
		Contracts: ContractsConfig{
			MaxRenegotiations: 2,
		},
		PatchIntents: PatchIntentsConfig{
			MinApplicabilityConfidence: 0.5,
		},
		Console: DefaultConsoleConfig(),
	}
}

// applyConsoleEnvOverrides applies environment variable overrides, taking
// precedence over config file values. Only "true" or "1" are recognized as
// true; any other value (including unset) leaves the existing value alone
// unless explicitly present.
func applyConsoleEnvOverrides(cfg *ConsoleConfig) {
	apply := func(env string, target *bool) {
		if val := os.Getenv(env); val != "" {
			*target = val == "true" || val == "1"
		}
	}
	apply("ORCHESTRATOR_CONSOLE_COLOR", &cfg.EnableColor)
	apply("ORCHESTRATOR_CONSOLE_PROGRESS_BAR", &cfg.EnableProgressBar)
	apply("ORCHESTRATOR_CONSOLE_TASK_DETAILS", &cfg.ShowTaskDetails)
	apply("ORCHESTRATOR_CONSOLE_COMPACT", &cfg.CompactMode)
	apply("ORCHESTRATOR_CONSOLE_DURATIONS", &cfg.ShowDurations)
}

// LoadConfig loads configuration from path. A missing file yields defaults
// (with env overrides applied); a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyConsoleEnvOverrides(&cfg.Console)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	mergeOverlay(cfg, &overlay, data)

	applyConsoleEnvOverrides(&cfg.Console)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// mergeOverlay applies only the sections actually present in the raw YAML,
// so an omitted section keeps its default rather than being zeroed out by
// an overlay struct's zero value.
func mergeOverlay(cfg, overlay *Config, raw []byte) {
	var rawMap map[string]any
	if yaml.Unmarshal(raw, &rawMap) != nil {
		return
	}
	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}
	if overlay.LogDir != "" {
		cfg.LogDir = overlay.LogDir
	}
	if _, ok := rawMap["orchestration"]; ok {
		cfg.Orchestration = overlay.Orchestration
	}
	if _, ok := rawMap["approval"]; ok {
		cfg.Approval = overlay.Approval
	}
	if _, ok := rawMap["boundaries"]; ok {
		cfg.Boundaries = overlay.Boundaries
	}
	if _, ok := rawMap["dependencies"]; ok {
		cfg.Dependencies = overlay.Dependencies
	}
	if _, ok := rawMap["contracts"]; ok {
		cfg.Contracts = overlay.Contracts
	}
	if _, ok := rawMap["patch_intents"]; ok {
		cfg.PatchIntents = overlay.PatchIntents
	}
	if _, ok := rawMap["console"]; ok {
		cfg.Console = overlay.Console
	}
}

// LoadConfigFromRoot loads .orchestrator.yaml from root, the common entry
// point for CLI commands operating against a target project directory.
func LoadConfigFromRoot(root string) (*Config, error) {
	return LoadConfig(filepath.Join(root, ".orchestrator.yaml"))
}

// Validate checks configuration values for internal consistency.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}
	if c.Orchestration.MaxParallelWorkers < 0 {
		return fmt.Errorf("orchestration.max_parallel_workers must be >= 0, got %d", c.Orchestration.MaxParallelWorkers)
	}
	if c.Orchestration.MaxIterations <= 0 {
		return fmt.Errorf("orchestration.max_iterations must be > 0, got %d", c.Orchestration.MaxIterations)
	}
	if c.Orchestration.TaskTimeout < 0 {
		return fmt.Errorf("orchestration.task_timeout must be >= 0, got %v", c.Orchestration.TaskTimeout)
	}
	if c.Approval.RiskThreshold < 0 {
		return fmt.Errorf("approval.risk_threshold must be >= 0, got %f", c.Approval.RiskThreshold)
	}
	if c.Boundaries.ChurnThreshold <= 0 {
		return fmt.Errorf("boundaries.churn_threshold must be > 0, got %d", c.Boundaries.ChurnThreshold)
	}
	if c.Contracts.MaxRenegotiations < 0 {
		return fmt.Errorf("contracts.max_renegotiations must be >= 0, got %d", c.Contracts.MaxRenegotiations)
	}
	if c.PatchIntents.MinApplicabilityConfidence < 0 || c.PatchIntents.MinApplicabilityConfidence > 1 {
		return fmt.Errorf("patch_intents.min_applicability_confidence must be in [0,1], got %f", c.PatchIntents.MinApplicabilityConfidence)
	}
	return nil
}
