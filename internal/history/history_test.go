package history_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/history"
)

func TestOpenCreatesSchemaInMemory(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRecordRunAndRecentRunsOrdersNewestFirst(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(ctx, history.Run{
		RequestID: "req-1", OriginalRequest: "add retry logic",
		StartedAt: base, FinishedAt: base.Add(time.Minute),
		TotalTasks: 3, Merged: 3, StabilizePassed: true,
	}))
	require.NoError(t, store.RecordRun(ctx, history.Run{
		RequestID: "req-2", OriginalRequest: "fix flaky test",
		StartedAt: base.Add(time.Hour), FinishedAt: base.Add(2 * time.Hour),
		TotalTasks: 2, Merged: 1, Failed: 1,
	}))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "req-2", runs[0].RequestID)
	assert.Equal(t, "req-1", runs[1].RequestID)
	assert.True(t, runs[1].StabilizePassed)
	assert.False(t, runs[0].StabilizePassed)
}

func TestRecentRunsRespectsLimit(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordRun(ctx, history.Run{RequestID: "req", StartedAt: time.Now(), FinishedAt: time.Now()}))
	}

	runs, err := store.RecentRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
