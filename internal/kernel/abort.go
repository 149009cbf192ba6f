package kernel

import (
	"context"
	"fmt"

	"github.com/taskmesh/orchestrator/internal/session"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// Abort tears down every session and worktree belonging to the current
// orchestration and deletes its state file. Uncommitted worker work is
// preserved on a recovery branch unless force is set.
func (k *Kernel) Abort(ctx context.Context, force bool) ([]string, error) {
	if !k.store.Exists() {
		return nil, fmt.Errorf("no orchestration state at %s to abort", k.store.Path())
	}

	st, err := k.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	var recoveryBranches []string
	for taskID := range st.Tasks {
		id, err := taskid.Parse(taskID)
		if err != nil {
			continue
		}

		for _, role := range []session.Role{session.RoleWorker, session.RoleVerifier} {
			_ = k.sup.Kill(ctx, id.SessionName(string(role)))
		}

		branch, err := k.wt.CleanupIncomplete(ctx, id, force)
		if err != nil {
			return recoveryBranches, fmt.Errorf("remove worktree for %s: %w", taskID, err)
		}
		if branch != "" {
			recoveryBranches = append(recoveryBranches, branch)
		}
	}

	if err := k.store.Delete(); err != nil {
		return recoveryBranches, fmt.Errorf("delete state: %w", err)
	}
	k.log.LogInfo("orchestration aborted")
	return recoveryBranches, nil
}
