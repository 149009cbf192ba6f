package kernel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/taskmesh/orchestrator/internal/graph"
	"github.com/taskmesh/orchestrator/internal/history"
	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/state"
)

// Run drives a freshly parsed plan through every phase: risk gate, Stage 0.5
// environment install, bounded-retry wave execution, merge, and the
// stabilization gate. It refuses to start if a state file already exists;
// callers should check Store.Exists and call Resume instead.
func (k *Kernel) Run(ctx context.Context, source []byte, format plan.Format, approved bool) (RunReport, error) {
	runStart := time.Now()
	if k.store.Exists() {
		return RunReport{}, fmt.Errorf("orchestration state already exists at %s; use resume", k.store.Path())
	}

	prepared, err := k.PreparePlan(source, format)
	if err != nil {
		return RunReport{}, err
	}

	report := RunReport{Risk: prepared.Risk, Plan: prepared.Plan}
	if !prepared.Risk.AutoApprove && !k.cfg.Approval.AutoApprove && !approved {
		report.RequiresApproval = true
		return report, nil
	}

	requestID := uuid.NewString()
	report.RequestID = requestID

	planPath, err := k.persistPlan(requestID, source, format)
	if err != nil {
		return report, fmt.Errorf("persist plan: %w", err)
	}

	tasks := make(map[string]state.TaskRecord, len(prepared.Plan.Tasks))
	for _, t := range prepared.Plan.Tasks {
		tasks[t.ID] = state.TaskRecord{Status: state.StatusPending, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	}
	if err := k.store.Create(state.OrchestrationState{
		RequestID:       requestID,
		OriginalRequest: prepared.Plan.Request,
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		Tasks:           tasks,
		CurrentPhase:    "environment",
		PlanPath:        planPath,
	}); err != nil {
		return report, fmt.Errorf("create state: %w", err)
	}

	k.log.LogPhaseStart("environment")
	envStart := time.Now()
	env, err := k.InstallEnvironment(ctx, prepared.Plan)
	if err != nil {
		return report, fmt.Errorf("stage 0.5: %w", err)
	}
	if err := k.store.Mutate(func(st state.OrchestrationState) (state.OrchestrationState, error) {
		st.Environment = env
		st.CurrentPhase = "execute"
		return st, nil
	}); err != nil {
		return report, err
	}
	k.log.LogPhaseComplete("environment", time.Since(envStart))

	merged, failed, blocked, iterations, err := k.executeUntilDone(ctx, prepared.Plan, env.Hash)
	report.Merged = merged
	report.Failed = failed
	report.Blocked = blocked
	report.Iterations = iterations
	if err != nil {
		return report, err
	}

	if len(failed) == 0 && len(blocked) == 0 {
		k.log.LogPhaseStart("stabilize")
		stabStart := time.Now()
		_, passed := k.stabilize(ctx, prepared.Plan, merged)
		report.StabilizePassed = passed
		k.log.LogPhaseComplete("stabilize", time.Since(stabStart))
	}

	k.log.LogRunSummary(len(prepared.Plan.Tasks), len(merged), len(failed)+len(blocked), time.Since(envStart))
	if _, cleanupErr := k.sig.Cleanup(requestID); cleanupErr != nil {
		k.log.LogWarn(fmt.Sprintf("signal cleanup: %v", cleanupErr))
	}
	k.recordHistory(ctx, requestID, prepared, report, runStart)
	return report, nil
}

// persistPlan writes the exact source Run was given to
// .orchestrator/plans/<requestID>.<ext>, so resume can reload the identical
// plan after a restart without the caller re-supplying it.
func (k *Kernel) persistPlan(requestID string, source []byte, format plan.Format) (string, error) {
	dir := filepath.Join(k.root, ".orchestrator", "plans")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plans dir: %w", err)
	}
	ext := "yaml"
	if format == plan.FormatJSON {
		ext = "json"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", requestID, ext))
	if err := os.WriteFile(path, source, 0o644); err != nil {
		return "", fmt.Errorf("write plan file: %w", err)
	}
	return path, nil
}

// recordHistory appends this run's summary to the history ledger, if one was
// configured. History is purely a reporting sink: a failure to record it
// never changes the run's own outcome or report.
func (k *Kernel) recordHistory(ctx context.Context, requestID string, prepared PreparedPlan, report RunReport, startedAt time.Time) {
	if k.hist == nil {
		return
	}
	err := k.hist.RecordRun(ctx, history.Run{
		RequestID:       requestID,
		OriginalRequest: prepared.Plan.Request,
		StartedAt:       startedAt,
		FinishedAt:      time.Now(),
		TotalTasks:      len(prepared.Plan.Tasks),
		Merged:          len(report.Merged),
		Failed:          len(report.Failed),
		Blocked:         len(report.Blocked),
		Iterations:      report.Iterations,
		StabilizePassed: report.StabilizePassed,
		RiskScore:       prepared.Risk.Score,
		AutoApproved:    prepared.Risk.AutoApprove,
	})
	if err != nil {
		k.log.LogWarn(fmt.Sprintf("record run history: %v", err))
	}
}

// executeUntilDone runs wave-by-wave execution and merge across iterations,
// requeuing retryable failures (kernelerr.Kind.Retryable) until every task
// reaches Merged, a non-retryable failure blocks its dependents permanently,
// or state.MaxIterations is exhausted.
func (k *Kernel) executeUntilDone(ctx context.Context, p plan.Plan, envHash string) (merged, failed, blocked []string, iterations int, err error) {
	maxIter := k.cfg.Orchestration.MaxIterations
	if maxIter <= 0 {
		maxIter = state.MaxIterations
	}

	remaining := taskIDs(p)
	mergedSet := map[string]bool{}
	blockedPermanently := map[string]bool{}

	for iteration := 1; iteration <= maxIter; iteration++ {
		iterations = iteration
		if len(remaining) == 0 {
			break
		}

		waves, werr := graph.Waves(remaining, filteredDependsOnMap(p, remaining))
		if werr != nil {
			return nil, nil, nil, iterations, fmt.Errorf("compute wave schedule: %w", werr)
		}

		var verifiedThisRound []string
		for i, wave := range waves {
			result := k.logWave(ctx, p, i+1, wave, envHash, k.cfg.Orchestration.MaxParallelWorkers)
			for id, outcome := range result.Outcomes {
				if outcome.MergeReady {
					verifiedThisRound = append(verifiedThisRound, id)
				}
			}
			if ctx.Err() != nil {
				return nil, nil, nil, iterations, ctx.Err()
			}
		}

		mergedNow, merr := k.mergeVerified(ctx, p, verifiedThisRound)
		if merr != nil {
			return nil, nil, nil, iterations, merr
		}
		for _, id := range mergedNow {
			mergedSet[id] = true
		}

		remaining, err = k.prepareNextIteration(remaining, mergedSet, blockedPermanently, iteration < maxIter)
		if err != nil {
			return nil, nil, nil, iterations, err
		}
	}

	st, lerr := k.store.Load()
	if lerr != nil {
		return nil, nil, nil, iterations, lerr
	}
	for id, rec := range st.Tasks {
		switch rec.Status {
		case state.StatusMerged:
			merged = append(merged, id)
		case state.StatusFailed:
			failed = append(failed, id)
		case state.StatusPending:
			blocked = append(blocked, id)
		}
	}
	return merged, failed, blocked, iterations, nil
}

// filteredDependsOnMap restricts dependsOnMap to ids still in the scheduling
// set, dropping edges to tasks that already merged; their dependency is
// satisfied, so graph.Waves must not see a reference outside this round's id
// set.
func filteredDependsOnMap(p plan.Plan, ids []string) map[string][]string {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}
	m := make(map[string][]string, len(ids))
	for _, t := range p.Tasks {
		if !inSet[t.ID] {
			continue
		}
		var deps []string
		for _, d := range t.DependsOn {
			if inSet[d] {
				deps = append(deps, d)
			}
		}
		m[t.ID] = deps
	}
	return m
}

// prepareNextIteration decides which not-yet-merged tasks are retried next
// round. A task whose last recorded failure is retryable (and iterations
// remain) goes back through Failed->Pending; everything else, including any
// task still pending because a dependency can never complete, is recorded
// as permanently blocked and dropped from future scheduling.
func (k *Kernel) prepareNextIteration(previous []string, merged, blockedPermanently map[string]bool, moreIterations bool) ([]string, error) {
	st, err := k.store.Load()
	if err != nil {
		return nil, err
	}

	var next []string
	for _, id := range previous {
		if merged[id] || blockedPermanently[id] {
			continue
		}
		rec := st.Tasks[id]
		switch rec.Status {
		case state.StatusFailed:
			if moreIterations && retryable(rec) {
				if err := k.store.Transition(id, state.StatusPending, nil); err != nil {
					return nil, err
				}
				next = append(next, id)
			} else {
				blockedPermanently[id] = true
			}
		default:
			next = append(next, id)
		}
	}
	return next, nil
}
