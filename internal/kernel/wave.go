package kernel

import (
	"context"
	"sync"
	"time"

	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// WaveResult is the aggregate outcome of running one wave's tasks to
// completion (or until ctx is cancelled).
type WaveResult struct {
	Outcomes  map[string]TaskOutcome
	Succeeded int
	Failed    int
}

// runWave executes every task id in a wave concurrently, bounded by
// maxParallel (0 means unbounded), grounded on the teacher's bounded-wave
// executor: a buffered semaphore gates acquisition, a WaitGroup tracks
// completion, and each worker reports into a results channel sized to the
// wave so no goroutine blocks on send.
func (k *Kernel) runWave(ctx context.Context, p plan.Plan, waveIDs []string, envHash string, maxParallel int) WaveResult {
	type namedOutcome struct {
		id      string
		outcome TaskOutcome
	}

	results := make(chan namedOutcome, len(waveIDs))
	var sem chan struct{}
	if maxParallel > 0 {
		sem = make(chan struct{}, maxParallel)
	}

	var wg sync.WaitGroup
	for _, id := range waveIDs {
		task, ok := p.TaskByID(id)
		if !ok {
			results <- namedOutcome{id: id, outcome: TaskOutcome{TaskID: id, Status: state.StatusFailed}}
			continue
		}

		wg.Add(1)
		go func(t plan.Task) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results <- namedOutcome{id: t.ID, outcome: TaskOutcome{TaskID: t.ID, Status: state.StatusFailed, Err: ctx.Err()}}
					return
				}
			}
			results <- namedOutcome{id: t.ID, outcome: k.RunTask(ctx, p, t, envHash)}
		}(task)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	wr := WaveResult{Outcomes: make(map[string]TaskOutcome, len(waveIDs))}
	for r := range results {
		wr.Outcomes[r.id] = r.outcome
		if r.outcome.Err != nil {
			wr.Failed++
		} else {
			wr.Succeeded++
		}
	}
	return wr
}

// logWave emits the wave-start/wave-complete events around runWave.
func (k *Kernel) logWave(ctx context.Context, p plan.Plan, waveNum int, waveIDs []string, envHash string, maxParallel int) WaveResult {
	ids := make([]taskid.ID, 0, len(waveIDs))
	for _, s := range waveIDs {
		if id, err := taskid.Parse(s); err == nil {
			ids = append(ids, id)
		}
	}
	k.log.LogWaveStart(waveNum, ids, maxParallel)
	start := time.Now()
	result := k.runWave(ctx, p, waveIDs, envHash, maxParallel)
	k.log.LogWaveComplete(waveNum, time.Since(start), result.Succeeded, result.Failed)
	return result
}
