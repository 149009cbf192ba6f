package kernel

import (
	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/risk"
)

// RunReport summarizes one call to Run, enough for the `plan` command's
// printed summary and exit-code decisions without re-reading the state file.
type RunReport struct {
	RequestID        string
	RequiresApproval bool
	Risk             risk.Result
	Merged           []string
	Failed           []string
	Blocked          []string
	Iterations       int
	StabilizePassed  bool
	Plan             plan.Plan
}

// Complete reports whether every task in the plan reached Merged.
func (r RunReport) Complete() bool {
	return len(r.Failed) == 0 && len(r.Blocked) == 0 && len(r.Merged) == len(r.Plan.Tasks)
}
