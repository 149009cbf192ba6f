package klog_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/klog"
	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

func TestConsoleLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := klog.NewConsoleLogger(&buf, "warn", false)
	l.LogInfo("should not appear")
	l.LogWarn("should appear")
	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestConsoleLoggerVerboseOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := klog.NewConsoleLogger(&buf, "error", false)
	l.SetVerbose(true)
	require.True(t, l.IsVerbose())
	l.LogTrace("trace line")
	assert.Contains(t, buf.String(), "trace line")
}

func TestConsoleLoggerTaskTransitionFormatsStates(t *testing.T) {
	var buf bytes.Buffer
	l := klog.NewConsoleLogger(&buf, "info", false)
	id := taskid.MustParse("t1")
	l.LogTaskTransition(id, state.StatusExecuting, state.StatusCompleted)
	assert.Contains(t, buf.String(), "t1: executing -> completed")
}

func TestConsoleLoggerWaveStartListsTaskIDs(t *testing.T) {
	var buf bytes.Buffer
	l := klog.NewConsoleLogger(&buf, "info", false)
	l.LogWaveStart(2, []taskid.ID{taskid.MustParse("t1"), taskid.MustParse("t2")}, 4)
	out := buf.String()
	assert.Contains(t, out, "wave 2")
	assert.Contains(t, out, "t1, t2")
	assert.Contains(t, out, "max concurrency 4")
}

func TestConsoleLoggerVerificationResultRoutesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := klog.NewConsoleLogger(&buf, "info", false)
	l.LogVerificationResult(taskid.MustParse("t1"), false, "boundary violation")
	assert.Contains(t, buf.String(), "[WARN]")
	assert.Contains(t, buf.String(), "boundary violation")
}

func TestConsoleLoggerRunSummaryDrawsBox(t *testing.T) {
	var buf bytes.Buffer
	l := klog.NewConsoleLogger(&buf, "info", false)
	l.LogRunSummary(5, 4, 1, 90*time.Second)
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "+"))
	assert.Contains(t, out, "PARTIAL")
}

func TestNoOpLoggerSatisfiesInterface(t *testing.T) {
	var l klog.Logger = klog.NoOpLogger{}
	l.LogInfo("noop")
	l.LogRunSummary(1, 1, 0, time.Second)
}
