package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmesh/orchestrator/internal/kernelerr"
	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/session"
	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/taskid"
	"github.com/taskmesh/orchestrator/internal/verify"
)

// taskStatusFile is the worker-written subset of TaskRecord at
// <worktree>/.task-status.json, per spec.md's external interfaces: the
// monitor's isBlocked probe reads only this, never the shared state file, so
// a worker's self-report never races the supervisor's own writes.
type taskStatusFile struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func taskStatusPath(worktreeDir string) string {
	return filepath.Join(worktreeDir, ".task-status.json")
}

// isTaskBlocked reads a task's self-reported status file and reports whether
// the worker has declared itself blocked on a missing external dependency.
func isTaskBlocked(worktreeDir string) func() bool {
	return func() bool {
		data, err := os.ReadFile(taskStatusPath(worktreeDir))
		if err != nil {
			return false
		}
		var f taskStatusFile
		if json.Unmarshal(data, &f) != nil {
			return false
		}
		return f.Status == "blocked"
	}
}

// TaskOutcome is what RunTask reports for one task's full attempt: spawn
// through verification.
type TaskOutcome struct {
	TaskID     string
	Status     state.TaskStatus
	Err        error
	MergeReady bool
}

// writePromptFile renders a task's worker prompt to a file under
// .orchestrator/prompts/, piped into the session via stdin by Spawn so large
// prompts never cross a shell-escaping boundary.
func (k *Kernel) writePromptFile(id taskid.ID, t plan.Task, role session.Role) (string, error) {
	dir := filepath.Join(k.root, ".orchestrator", "prompts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create prompts dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.txt", id.String(), role))
	content := fmt.Sprintf("Task %s: %s\n\nFiles to write: %v\nFiles to read: %v\n",
		id.String(), t.Description, t.FilesWrite, t.FilesRead)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	return path, nil
}

// RunTask drives one task from worktree creation through verification,
// blocking until a terminal outcome is reached or ctx is cancelled. Retries
// across iterations are decided in run.go's prepareNextIteration: RunTask
// reports a failure, it does not loop on one.
func (k *Kernel) RunTask(ctx context.Context, p plan.Plan, t plan.Task, envHash string) TaskOutcome {
	id, err := t.TaskID()
	if err != nil {
		return TaskOutcome{TaskID: t.ID, Status: state.StatusFailed, Err: err}
	}

	worktreeDir, err := k.wt.Create(ctx, id, MainBranch)
	if err != nil {
		k.recordFailure(t.ID, kernelerr.Wrap(kernelerr.KindSpawnFailed, t.ID, "create worktree", err))
		return TaskOutcome{TaskID: t.ID, Status: state.StatusFailed, Err: err}
	}

	if err := k.store.Transition(t.ID, state.StatusExecuting, func(rec *state.TaskRecord) {
		rec.Worktree = worktreeDir
		rec.Environment = envHash
	}); err != nil {
		return TaskOutcome{TaskID: t.ID, Status: state.StatusFailed, Err: err}
	}

	k.log.LogTaskTransition(id, state.StatusPending, state.StatusExecuting)

	promptFile, err := k.writePromptFile(id, t, session.RoleWorker)
	if err != nil {
		return k.failTask(t.ID, kernelerr.Wrap(kernelerr.KindSpawnFailed, t.ID, "write prompt", err))
	}

	if err := k.sup.Spawn(ctx, id, session.RoleWorker, worktreeDir, promptFile, k.cfg.Orchestration.HeapSizeMB); err != nil {
		return k.failTask(t.ID, kernelerr.Wrap(kernelerr.KindSpawnFailed, t.ID, "spawn worker session", err))
	}

	if err := k.sup.VerifyStarted(ctx, id, session.RoleWorker); err != nil {
		return k.failTask(t.ID, kernelerr.Wrap(kernelerr.KindSpawnFailed, t.ID, "verify worker started", err))
	}

	outcome, err := k.waitForTask(ctx, id, worktreeDir)
	if err != nil {
		return k.failTask(t.ID, err)
	}

	switch outcome.Outcome {
	case session.OutcomeBlocked:
		return k.failTask(t.ID, kernelerr.New(kernelerr.KindTaskBlocked, t.ID, outcome.Reason))
	case session.OutcomeHung:
		return k.failTask(t.ID, kernelerr.New(kernelerr.KindWorkerHung, t.ID, outcome.Reason))
	case session.OutcomeTimeout:
		return k.failTask(t.ID, kernelerr.New(kernelerr.KindWorkerTimeout, t.ID, outcome.Reason))
	case session.OutcomeVanished:
		return k.failTask(t.ID, kernelerr.New(kernelerr.KindWorkerCrashed, t.ID, outcome.Reason))
	}

	if err := k.store.Transition(t.ID, state.StatusCompleted, nil); err != nil {
		return TaskOutcome{TaskID: t.ID, Status: state.StatusFailed, Err: err}
	}
	k.log.LogTaskTransition(id, state.StatusExecuting, state.StatusCompleted)

	return k.verifyTask(ctx, p, t, id, worktreeDir, envHash)
}

// waitForTask polls Monitor at session.PollInterval until a terminal outcome
// (anything but the zero MonitorResult) or ctx is cancelled.
func (k *Kernel) waitForTask(ctx context.Context, id taskid.ID, worktreeDir string) (session.MonitorResult, error) {
	start := time.Now()
	ticker := time.NewTicker(session.PollInterval)
	defer ticker.Stop()

	for {
		result := k.sup.Monitor(ctx, id, session.RoleWorker, start, k.cfg.Orchestration.TaskTimeout, isTaskBlocked(worktreeDir))
		if result.Outcome != "" {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return session.MonitorResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// verifyTask runs C9 in-process: the pipeline is pure Go (git diffs, command
// execution, hash comparison), so a goroutine under ctx's deadline gives the
// same crash isolation spec.md's verifier session asks for, without spawning
// a second tmux session to run code that makes no LLM calls.
func (k *Kernel) verifyTask(ctx context.Context, p plan.Plan, t plan.Task, id taskid.ID, worktreeDir, envHash string) TaskOutcome {
	st, err := k.store.Load()
	if err != nil {
		return TaskOutcome{TaskID: t.ID, Status: state.StatusFailed, Err: err}
	}
	rec := st.Tasks[t.ID]

	result, err := verify.Run(ctx, verify.Input{
		Task:                  t,
		WorktreeDir:           worktreeDir,
		MainBranch:            MainBranch,
		RepoRoot:              k.root,
		Plan:                  p,
		RecordedEnvHash:       envHash,
		StateEnvHash:          st.Environment.Hash,
		ContractsUsed:         rec.ContractsUsed,
		ContractsRenegotiated: st.ContractsRenegotiated,
		MaxRenegotiations:     k.cfg.Contracts.MaxRenegotiations,
		ChurnThreshold:        k.cfg.Boundaries.ChurnThreshold,
	})
	if err != nil {
		return k.failTask(t.ID, kernelerr.Wrap(kernelerr.KindCheckFailed, t.ID, "verification pipeline error", err))
	}

	summary := result.Commands.FailedAt
	if result.Passed() {
		summary = "all checks passed"
	}
	k.log.LogVerificationResult(id, result.Passed(), summary)

	if !result.Passed() {
		vr := result.ToStateResult(time.Now())
		_ = k.store.Mutate(func(s state.OrchestrationState) (state.OrchestrationState, error) {
			r := s.Tasks[t.ID]
			r.VerificationResult = &vr
			s.Tasks[t.ID] = r
			return s, nil
		})
		kind := kernelerr.KindCheckFailed
		if len(result.Boundary.Violations) > 0 {
			kind = kernelerr.KindBoundaryViolation
		} else if !result.EnvOK {
			kind = kernelerr.KindEnvMismatch
		} else if len(result.Contracts) > 0 {
			kind = kernelerr.KindContractIncompatible
		}
		return k.failTask(t.ID, kernelerr.New(kind, t.ID, summary))
	}

	if err := k.store.Transition(t.ID, state.StatusVerified, func(r *state.TaskRecord) {
		vr := result.ToStateResult(time.Now())
		r.VerificationResult = &vr
	}); err != nil {
		return TaskOutcome{TaskID: t.ID, Status: state.StatusFailed, Err: err}
	}
	k.log.LogTaskTransition(id, state.StatusCompleted, state.StatusVerified)

	return TaskOutcome{TaskID: t.ID, Status: state.StatusVerified, MergeReady: true}
}

// failTask records a classified failure against the task's state record and
// returns the outcome RunTask's caller uses to decide retry policy.
func (k *Kernel) failTask(id string, kerr error) TaskOutcome {
	k.recordFailure(id, kerr)
	return TaskOutcome{TaskID: id, Status: state.StatusFailed, Err: kerr}
}

func (k *Kernel) recordFailure(id string, kerr error) {
	_ = k.store.Transition(id, state.StatusFailed, func(r *state.TaskRecord) {
		r.Error = kerr.Error()
		var ke *kernelerr.KernelError
		if errors.As(kerr, &ke) {
			r.ErrorKind = ke.Kind.String()
		}
	})
	k.log.LogError(fmt.Sprintf("task %s failed: %v", id, kerr))
}

// retryable reports whether a task's most recently recorded failure kind
// permits requeuing it for another iteration.
func retryable(rec state.TaskRecord) bool {
	for k := kernelerr.KindPlanInvalid; k <= kernelerr.KindCorruptMessage; k++ {
		if k.String() == rec.ErrorKind {
			return k.Retryable()
		}
	}
	return false
}
