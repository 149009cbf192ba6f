package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/kernelerr"
	"github.com/taskmesh/orchestrator/internal/state"
)

func newStoreWithTask(t *testing.T, status state.TaskStatus) (*state.Store, string) {
	dir := t.TempDir()
	store := state.New(dir)
	require.NoError(t, store.Create(state.OrchestrationState{
		RequestID: "req-1",
		Tasks: map[string]state.TaskRecord{
			"a": {Status: status, UpdatedAt: time.Now().UTC().Format(time.RFC3339)},
		},
	}))
	return store, dir
}

func TestCreateAndLoadRoundTrips(t *testing.T) {
	store, _ := newStoreWithTask(t, state.StatusPending)
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "req-1", loaded.RequestID)
	assert.Equal(t, state.StatusPending, loaded.Tasks["a"].Status)
}

func TestCreateFailsIfStateExists(t *testing.T) {
	store, _ := newStoreWithTask(t, state.StatusPending)
	err := store.Create(state.OrchestrationState{})
	assert.Error(t, err)
}

func TestTransitionAppliesValidChange(t *testing.T) {
	store, _ := newStoreWithTask(t, state.StatusPending)

	err := store.Transition("a", state.StatusExecuting, func(rec *state.TaskRecord) {
		rec.Worktree = "/tmp/worktrees/a"
	})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, state.StatusExecuting, loaded.Tasks["a"].Status)
	assert.Equal(t, "/tmp/worktrees/a", loaded.Tasks["a"].Worktree)
}

func TestTransitionRejectsInvalidChange(t *testing.T) {
	store, _ := newStoreWithTask(t, state.StatusPending)

	err := store.Transition("a", state.StatusMerged, nil)
	require.Error(t, err)
	assert.True(t, kernelerr.Of(err, kernelerr.KindInvalidTransition))
}

func TestTransitionUnknownTaskFails(t *testing.T) {
	store, _ := newStoreWithTask(t, state.StatusPending)

	err := store.Transition("missing", state.StatusExecuting, nil)
	require.Error(t, err)
	assert.True(t, kernelerr.Of(err, kernelerr.KindInvalidTransition))
}

func TestCanTransitionTable(t *testing.T) {
	assert.True(t, state.CanTransition(state.StatusPending, state.StatusExecuting))
	assert.True(t, state.CanTransition(state.StatusFailed, state.StatusPending))
	assert.False(t, state.CanTransition(state.StatusMerged, state.StatusPending))
	assert.False(t, state.CanTransition(state.StatusPending, state.StatusMerged))
	assert.False(t, state.CanTransition(state.StatusCompleted, state.StatusExecuting))
}

func TestDeleteRemovesStateFile(t *testing.T) {
	store, _ := newStoreWithTask(t, state.StatusPending)
	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
}

func TestEffectiveStatusPrefersFresherWorkerFile(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, ".task-status.json")
	data, err := json.Marshal(map[string]string{"status": "completed"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(statusPath, data, 0o644))

	rec := state.TaskRecord{Status: state.StatusExecuting, UpdatedAt: time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)}
	got := state.EffectiveStatus(rec, dir)
	assert.Equal(t, state.StatusCompleted, got)
}

func TestEffectiveStatusFallsBackWhenWorkerFileMissing(t *testing.T) {
	rec := state.TaskRecord{Status: state.StatusExecuting, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	got := state.EffectiveStatus(rec, t.TempDir())
	assert.Equal(t, state.StatusExecuting, got)
}

func TestEffectiveStatusFallsBackWhenWorkerFileStale(t *testing.T) {
	dir := t.TempDir()
	statusPath := filepath.Join(dir, ".task-status.json")
	require.NoError(t, os.WriteFile(statusPath, []byte(`{"status":"completed"}`), 0o644))

	rec := state.TaskRecord{Status: state.StatusExecuting, UpdatedAt: time.Now().Add(time.Hour).UTC().Format(time.RFC3339)}
	got := state.EffectiveStatus(rec, dir)
	assert.Equal(t, state.StatusExecuting, got)
}

func TestMutateIsSerializedAcrossConcurrentCallers(t *testing.T) {
	store, _ := newStoreWithTask(t, state.StatusPending)

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			done <- store.Mutate(func(st state.OrchestrationState) (state.OrchestrationState, error) {
				st.Iteration++
				return st, nil
			})
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Iteration)
}
