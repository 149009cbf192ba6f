package klog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/klog"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

func TestFileLoggerWritesRunLogAndLatestSymlink(t *testing.T) {
	dir := t.TempDir()
	fl, err := klog.NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	fl.LogPhaseStart("plan")

	latest := filepath.Join(dir, "latest.log")
	info, err := os.Lstat(latest)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	target, err := os.Readlink(latest)
	require.NoError(t, err)
	resolved, err := os.ReadFile(filepath.Join(dir, target))
	require.NoError(t, err)
	assert.Contains(t, string(resolved), "phase plan: starting")
}

func TestFileLoggerTaskDetailWritesPerTaskFile(t *testing.T) {
	dir := t.TempDir()
	fl, err := klog.NewFileLogger(dir, "info")
	require.NoError(t, err)
	defer fl.Close()

	require.NoError(t, fl.LogTaskDetail(taskid.MustParse("t7"), "attempt 1: success"))

	content, err := os.ReadFile(filepath.Join(dir, "tasks", "task-t7.log"))
	require.NoError(t, err)
	assert.Equal(t, "attempt 1: success", string(content))
}

func TestFileLoggerCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fl, err := klog.NewFileLogger(dir, "info")
	require.NoError(t, err)
	require.NoError(t, fl.Close())
	require.NoError(t, fl.Close())
}
