package session_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/session"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

func TestMonitorReportsCompletedOnNonEmptyDoneSignal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".orchestrator", "signals"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".orchestrator", "signals", "t1.done"), []byte("2026-01-01T00:00:00Z"), 0o644))

	sup := session.New(root, "/usr/bin/agent")
	result := sup.Monitor(context.Background(), taskid.MustParse("t1"), session.RoleWorker, time.Now(), time.Hour, nil)
	assert.Equal(t, session.OutcomeCompleted, result.Outcome)
}

func TestMonitorIgnoresEmptyDoneSignal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".orchestrator", "signals"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".orchestrator", "signals", "t1.done"), nil, 0o644))

	sup := session.New(root, "/usr/bin/agent")
	result := sup.Monitor(context.Background(), taskid.MustParse("t1"), session.RoleWorker, time.Now(), time.Hour, nil)
	assert.NotEqual(t, session.OutcomeCompleted, result.Outcome)
}

func TestMonitorReportsBlocked(t *testing.T) {
	root := t.TempDir()
	sup := session.New(root, "/usr/bin/agent")
	result := sup.Monitor(context.Background(), taskid.MustParse("t1"), session.RoleWorker, time.Now(), time.Hour, func() bool { return true })
	assert.Equal(t, session.OutcomeBlocked, result.Outcome)
	assert.Equal(t, "needs_dependency", result.Reason)
}

func TestMonitorReportsHungOnStaleHeartbeat(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".orchestrator", "signals"), 0o755))
	hbPath := filepath.Join(root, ".orchestrator", "signals", "t1.heartbeat")
	require.NoError(t, os.WriteFile(hbPath, []byte("x"), 0o644))
	stale := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(hbPath, stale, stale))

	sup := session.New(root, "/usr/bin/agent")
	result := sup.Monitor(context.Background(), taskid.MustParse("t1"), session.RoleWorker, time.Now().Add(-2*time.Minute), time.Hour, nil)
	assert.Equal(t, session.OutcomeHung, result.Outcome)
}

func TestMonitorReportsTimeoutWhenElapsedExceeds(t *testing.T) {
	root := t.TempDir()
	sup := session.New(root, "/usr/bin/agent")
	result := sup.Monitor(context.Background(), taskid.MustParse("t1"), session.RoleWorker, time.Now().Add(-2*time.Hour), time.Hour, nil)
	assert.Equal(t, session.OutcomeTimeout, result.Outcome)
}

func TestHeartbeatWritesNonEmptyFile(t *testing.T) {
	root := t.TempDir()
	sup := session.New(root, "/usr/bin/agent")
	require.NoError(t, sup.Heartbeat(taskid.MustParse("t1")))

	info, err := os.Stat(filepath.Join(root, ".orchestrator", "signals", "t1.heartbeat"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestThresholdOrdering(t *testing.T) {
	// The kill threshold must exceed the display threshold: display is
	// advisory, kill is destructive, per spec.md §9's documentation note.
	assert.Greater(t, session.HeartbeatKillThreshold, session.HeartbeatStaleDisplayThreshold)
}
