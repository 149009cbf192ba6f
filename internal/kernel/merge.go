package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskmesh/orchestrator/internal/fsatomic"
	"github.com/taskmesh/orchestrator/internal/kernelerr"
	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/worktree"
)

// mergeLockTimeout bounds how long a task waits for the exclusive staging
// lock; the merge itself runs one task at a time by design, per spec.md §5's
// shared-resource table.
const mergeLockTimeout = 2 * time.Minute

// mergeVerified merges every task.ID currently in the Verified state, one at
// a time under the staging lock, in the order given (wave order, so that
// within a wave earlier-declared tasks win the exclusive slot first). A
// MergeConflictError requeues the loser for the next iteration instead of
// failing the whole run; no dependency edge between the conflicting tasks is
// added.
func (k *Kernel) mergeVerified(ctx context.Context, p plan.Plan, verifiedIDs []string) ([]string, error) {
	var merged []string

	for _, taskID := range verifiedIDs {
		t, ok := p.TaskByID(taskID)
		if !ok {
			continue
		}
		id, err := t.TaskID()
		if err != nil {
			return merged, err
		}

		var mergeErr error
		lockErr := fsatomic.WithLock(k.stagingLockPath(), mergeLockTimeout, func() error {
			mergeErr = k.wt.Merge(ctx, id, MainBranch)
			return nil
		})
		if lockErr != nil {
			return merged, fmt.Errorf("acquire staging lock for %s: %w", taskID, lockErr)
		}

		if mergeErr == nil {
			if err := k.store.Transition(taskID, state.StatusMerged, func(r *state.TaskRecord) {
				r.MergeCommit = MainBranch
			}); err != nil {
				return merged, err
			}
			k.log.LogMergeResult(id, true, "merged into "+MainBranch)
			merged = append(merged, taskID)
			continue
		}

		var conflict *worktree.MergeConflictError
		if errors.As(mergeErr, &conflict) {
			k.log.LogMergeResult(id, false, conflict.Error())
			if err := k.requeueAfterConflict(taskID, conflict); err != nil {
				return merged, err
			}
			continue
		}

		k.log.LogMergeResult(id, false, mergeErr.Error())
		k.recordFailure(taskID, kernelerr.Wrap(kernelerr.KindMergeConflict, taskID, "merge failed", mergeErr))
	}

	return merged, nil
}

// requeueAfterConflict marks a verified-but-conflicting task failed with the
// retryable MergeConflict kind, so prepareNextIteration sends it back to
// pending for the next iteration (while iterations remain). It adds no
// dependency edge between the conflicting tasks: the next iteration schedules
// the task by the plan's own dependency order.
func (k *Kernel) requeueAfterConflict(taskID string, conflict *worktree.MergeConflictError) error {
	return k.store.Transition(taskID, state.StatusFailed, func(r *state.TaskRecord) {
		r.Error = conflict.Error()
		r.ErrorKind = kernelerr.KindMergeConflict.String()
	})
}
