package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/state"
)

// Input bundles everything one task's verification pass needs.
type Input struct {
	Task                  plan.Task
	WorktreeDir           string
	MainBranch            string
	RepoRoot              string
	Plan                  plan.Plan
	RecordedEnvHash       string // the task's own recorded environment.hash
	StateEnvHash          string // OrchestrationState.Environment.Hash
	ContractsUsed         map[string]state.ContractUsage
	ContractsRenegotiated map[string]int
	MaxRenegotiations     int
	// ChurnThreshold is the config-overridable lines-changed-per-file
	// ceiling for Step A (config.BoundariesConfig.ChurnThreshold). Zero
	// falls back to DefaultChurnThreshold.
	ChurnThreshold int
}

// Result is the complete C9 outcome for one task, mirroring
// state.VerificationResult plus the detail needed for reporting.
type Result struct {
	Boundary  BoundaryResult
	Commands  RunResult
	EnvOK     bool
	EnvReason string
	Contracts []ContractViolation
}

// Passed reports whether every step succeeded.
func (r Result) Passed() bool {
	return r.Boundary.Passed() && r.Commands.Passed() && r.EnvOK && len(r.Contracts) == 0
}

// ToStateResult converts a verification Result to the persisted summary
// shape, truncating detail to what replay/reporting needs.
func (r Result) ToStateResult(checkedAt time.Time) state.VerificationResult {
	issues := make([]string, len(r.Boundary.Violations))
	for i, v := range r.Boundary.Violations {
		issues[i] = fmt.Sprintf("%s: %s", v.Path, v.Reason)
	}
	return state.VerificationResult{
		Passed:         r.Passed(),
		FailedAt:       r.Commands.FailedAt,
		BoundaryIssues: issues,
		CheckedAt:      checkedAt.UTC().Format(time.RFC3339),
	}
}

// Run executes Steps A-D in order against in, stopping the command runner at
// the first required failure (fail_fast) but always completing the
// boundary/environment/contract checks regardless of command outcome, since
// those are independent findings a human reviewing a failed task needs to
// see together rather than one at a time across repeated runs.
func Run(ctx context.Context, in Input) (Result, error) {
	modified, err := ModifiedFiles(ctx, in.WorktreeDir, in.MainBranch)
	if err != nil {
		return Result{}, fmt.Errorf("step A (boundary): %w", err)
	}

	churnThreshold := in.ChurnThreshold
	if churnThreshold <= 0 {
		churnThreshold = DefaultChurnThreshold
	}
	boundary := CheckBoundaries(ctx, in.WorktreeDir, modified, in.Task.FilesWrite, in.Task.FilesAppend,
		churnThreshold, in.Task.AllowLargeChanges)

	commands := RunChecks(ctx, in.WorktreeDir, in.Task.Verification, modified, true)

	envOK := in.RecordedEnvHash == in.StateEnvHash
	envReason := ""
	if !envOK {
		envReason = fmt.Sprintf("task ran against environment %q, orchestration is now at %q", in.RecordedEnvHash, in.StateEnvHash)
	}

	contractViolations := CheckContracts(in.RepoRoot, in.Plan, in.ContractsUsed)

	return Result{
		Boundary:  boundary,
		Commands:  commands,
		EnvOK:     envOK,
		EnvReason: envReason,
		Contracts: contractViolations,
	}, nil
}
