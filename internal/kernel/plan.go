package kernel

import (
	"fmt"

	"github.com/taskmesh/orchestrator/internal/graph"
	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/risk"
)

// PreparedPlan is the output of phases 1-2: a validated plan, its wave
// schedule, and a risk verdict deciding whether phase 3 may proceed
// automatically.
type PreparedPlan struct {
	Plan     plan.Plan
	Warnings []plan.Warning
	Waves    [][]string
	Risk     risk.Result
}

// dependsOnMap builds the id->deps map graph.Waves needs from a validated plan.
func dependsOnMap(p plan.Plan) map[string][]string {
	m := make(map[string][]string, len(p.Tasks))
	for _, t := range p.Tasks {
		m[t.ID] = t.DependsOn
	}
	return m
}

func taskIDs(p plan.Plan) []string {
	ids := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// riskInput derives C4's Input from a validated plan.
func riskInput(p plan.Plan) risk.Input {
	allPaths := make([]string, 0, p.TotalFiles())
	tasksWithoutTest := 0
	newDeps := 0
	for _, t := range p.Tasks {
		allPaths = append(allPaths, t.FilesWrite...)
		if !t.HasTestCheck() {
			tasksWithoutTest++
		}
		newDeps += len(t.DepsRequired.Runtime) + len(t.DepsRequired.Dev)
	}
	return risk.Input{
		AllFilePaths:        allPaths,
		TaskCount:           len(p.Tasks),
		TotalFiles:          p.TotalFiles(),
		TotalPatchIntents:   p.TotalPatchIntents(),
		ContractCount:       len(p.Contracts),
		NewRuntimeDepsCount: newDeps,
		TasksWithoutTest:    tasksWithoutTest,
	}
}

// PreparePlan runs phase 1 (parse + validate) and computes the phase 2 risk
// verdict, without touching the filesystem beyond reading source. Callers
// gate phase 3 on PreparedPlan.Risk.AutoApprove || cfg.Approval.AutoApprove.
func (k *Kernel) PreparePlan(source []byte, format plan.Format) (PreparedPlan, error) {
	p, warnings, err := plan.Parse(source, format)
	if err != nil {
		return PreparedPlan{}, err
	}

	waves, err := graph.Waves(taskIDs(p), dependsOnMap(p))
	if err != nil {
		return PreparedPlan{}, fmt.Errorf("compute wave schedule: %w", err)
	}

	riskCfg := risk.DefaultConfig()
	riskCfg.Threshold = k.cfg.Approval.RiskThreshold
	if k.cfg.Approval.SensitivePatterns != nil {
		riskCfg.Patterns = k.cfg.Approval.SensitivePatterns
	}
	result := risk.Score(riskInput(p), riskCfg)

	return PreparedPlan{Plan: p, Warnings: warnings, Waves: waves, Risk: result}, nil
}
