package kernel

import (
	"context"
	"fmt"

	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/session"
	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// ResumePlan describes what Resume would do, returned as-is (no mutation)
// when dryRun is true.
type ResumePlan struct {
	Interrupted    []string
	RecoveryBranch map[string]string
	KilledSessions []string
}

// Resume implements the startup recovery path: every task still `executing`
// when the supervisor last ran is treated as interrupted. Its worktree is
// cleaned up (uncommitted work saved to a recovery branch unless force is
// set), its state moves back to pending, and only the tmux sessions
// belonging to ids present in this orchestration are killed, never
// arbitrary worker-*/verifier-* sessions. With dryRun, nothing is mutated.
func (k *Kernel) Resume(ctx context.Context, p plan.Plan, envHash string, dryRun, force bool) (ResumePlan, error) {
	if !k.store.Exists() {
		return ResumePlan{}, fmt.Errorf("no orchestration state at %s to resume", k.store.Path())
	}

	st, err := k.store.Load()
	if err != nil {
		return ResumePlan{}, fmt.Errorf("load state: %w", err)
	}

	result := ResumePlan{RecoveryBranch: map[string]string{}}
	for taskID, rec := range st.Tasks {
		if rec.Status != state.StatusExecuting {
			continue
		}
		result.Interrupted = append(result.Interrupted, taskID)

		if dryRun {
			continue
		}

		id, err := taskid.Parse(taskID)
		if err != nil {
			return result, fmt.Errorf("parse task id %q: %w", taskID, err)
		}

		recoveryBranch, err := k.wt.CleanupIncomplete(ctx, id, force)
		if err != nil {
			return result, fmt.Errorf("cleanup incomplete worktree for %s: %w", taskID, err)
		}
		if recoveryBranch != "" {
			result.RecoveryBranch[taskID] = recoveryBranch
		}

		for _, role := range []session.Role{session.RoleWorker, session.RoleVerifier} {
			name := id.SessionName(string(role))
			if err := k.sup.Kill(ctx, name); err != nil {
				return result, fmt.Errorf("kill session %s: %w", name, err)
			}
			result.KilledSessions = append(result.KilledSessions, name)
		}

		if err := k.store.Transition(taskID, state.StatusPending, func(r *state.TaskRecord) {
			r.Worktree = ""
		}); err != nil {
			return result, fmt.Errorf("transition %s to pending: %w", taskID, err)
		}
	}

	if dryRun || len(result.Interrupted) == 0 {
		return result, nil
	}

	_, failed, blocked, _, err := k.executeUntilDone(ctx, p, envHash)
	if err != nil {
		return result, err
	}
	if len(failed) == 0 && len(blocked) == 0 {
		if _, passed := k.stabilize(ctx, p, taskIDs(p)); !passed {
			return result, fmt.Errorf("stabilization gate failed after resume")
		}
	}
	return result, nil
}
