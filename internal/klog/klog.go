// Package klog implements the orchestrator's structured console and file
// logging, adapted from the teacher's internal/logger package but
// generalized from wave/QC/budget events to kernel events: phase
// transitions, task status transitions, wave start/complete, verification
// results, merge results, and signal/heartbeat anomalies.
package klog

import (
	"fmt"
	"time"

	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// Level is a logging verbosity level, ordered least to most severe.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// normalizeLevel maps a config string to a Level, defaulting to LevelInfo
// for anything unrecognized.
func normalizeLevel(s string) Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Logger is the event surface every kernel component logs through. A
// ConsoleLogger and a FileLogger both implement it; NoOpLogger implements it
// for tests that don't care about output.
type Logger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)

	LogPhaseStart(phase string)
	LogPhaseComplete(phase string, duration time.Duration)
	LogTaskTransition(id taskid.ID, from, to state.TaskStatus)
	LogWaveStart(waveNum int, taskIDs []taskid.ID, maxConcurrency int)
	LogWaveComplete(waveNum int, duration time.Duration, succeeded, failed int)
	LogVerificationResult(id taskid.ID, passed bool, summary string)
	LogMergeResult(id taskid.ID, succeeded bool, detail string)
	LogSignalAnomaly(id taskid.ID, kind string, detail string)
	LogHeartbeatAnomaly(id taskid.ID, detail string)
	LogRunSummary(total, completed, failed int, duration time.Duration)
}

// NoOpLogger implements Logger with no-op methods, for tests and for any
// caller that doesn't want output.
type NoOpLogger struct{}

func (NoOpLogger) LogTrace(string)                                                     {}
func (NoOpLogger) LogDebug(string)                                                     {}
func (NoOpLogger) LogInfo(string)                                                      {}
func (NoOpLogger) LogWarn(string)                                                      {}
func (NoOpLogger) LogError(string)                                                     {}
func (NoOpLogger) LogPhaseStart(string)                                                {}
func (NoOpLogger) LogPhaseComplete(string, time.Duration)                              {}
func (NoOpLogger) LogTaskTransition(taskid.ID, state.TaskStatus, state.TaskStatus)      {}
func (NoOpLogger) LogWaveStart(int, []taskid.ID, int)                                  {}
func (NoOpLogger) LogWaveComplete(int, time.Duration, int, int)                        {}
func (NoOpLogger) LogVerificationResult(taskid.ID, bool, string)                       {}
func (NoOpLogger) LogMergeResult(taskid.ID, bool, string)                              {}
func (NoOpLogger) LogSignalAnomaly(taskid.ID, string, string)                          {}
func (NoOpLogger) LogHeartbeatAnomaly(taskid.ID, string)                               {}
func (NoOpLogger) LogRunSummary(int, int, int, time.Duration)                          {}

var _ Logger = NoOpLogger{}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
