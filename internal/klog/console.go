package klog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"

	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// ConsoleLogger writes level-filtered, optionally colorized, timestamped
// lines to a writer (normally os.Stdout). It is safe for concurrent use by
// every wave worker goroutine.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    Level
	mu          sync.Mutex
	colorOutput bool
	verbose     bool
}

// NewConsoleLogger creates a ConsoleLogger writing to w. Color is enabled
// only when w is a terminal and enableColor is true.
func NewConsoleLogger(w io.Writer, level string, enableColor bool) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      w,
		logLevel:    normalizeLevel(level),
		colorOutput: enableColor && isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// SetVerbose toggles debug/trace visibility regardless of the configured
// log level.
func (c *ConsoleLogger) SetVerbose(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbose = v
}

// IsVerbose reports the current verbose setting.
func (c *ConsoleLogger) IsVerbose() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbose
}

func (c *ConsoleLogger) shouldLog(level Level) bool {
	if c.verbose {
		return true
	}
	return level >= c.logLevel
}

func (c *ConsoleLogger) LogTrace(message string) { c.logWithLevel(LevelTrace, message) }
func (c *ConsoleLogger) LogDebug(message string) { c.logWithLevel(LevelDebug, message) }
func (c *ConsoleLogger) LogInfo(message string)  { c.logWithLevel(LevelInfo, message) }
func (c *ConsoleLogger) LogWarn(message string)  { c.logWithLevel(LevelWarn, message) }
func (c *ConsoleLogger) LogError(message string) { c.logWithLevel(LevelError, message) }

func (c *ConsoleLogger) logWithLevel(level Level, message string) {
	if !c.shouldLog(level) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	line := fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message)
	if c.colorOutput {
		line = c.colorize(level, line)
	}
	fmt.Fprint(c.writer, line)
}

func (c *ConsoleLogger) colorize(level Level, line string) string {
	var col *color.Color
	switch level {
	case LevelTrace, LevelDebug:
		col = color.New(color.FgHiBlack)
	case LevelWarn:
		col = color.New(color.FgYellow)
	case LevelError:
		col = color.New(color.FgRed)
	default:
		return line
	}
	return col.Sprint(line)
}

// LogPhaseStart announces the start of an orchestration loop phase (plan,
// risk-gate, dependency-install, wave-execution, merge, stabilization).
func (c *ConsoleLogger) LogPhaseStart(phase string) {
	c.LogInfo(fmt.Sprintf("phase %s: starting", phase))
}

// LogPhaseComplete announces a phase's completion and duration.
func (c *ConsoleLogger) LogPhaseComplete(phase string, duration time.Duration) {
	c.LogInfo(fmt.Sprintf("phase %s: complete (%s)", phase, formatDuration(duration)))
}

// LogTaskTransition logs a task's state-machine transition.
func (c *ConsoleLogger) LogTaskTransition(id taskid.ID, from, to state.TaskStatus) {
	c.LogInfo(fmt.Sprintf("task %s: %s -> %s", id, from, to))
}

// LogWaveStart logs the start of a wave: the tasks entering it and the
// maximum parallel worker count bounding it.
func (c *ConsoleLogger) LogWaveStart(waveNum int, taskIDs []taskid.ID, maxConcurrency int) {
	names := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		names[i] = id.String()
	}
	c.LogInfo(fmt.Sprintf("wave %d: starting %d task(s) [%s] (max concurrency %d)",
		waveNum, len(taskIDs), strings.Join(names, ", "), maxConcurrency))
}

// LogWaveComplete logs a wave's completion summary.
func (c *ConsoleLogger) LogWaveComplete(waveNum int, duration time.Duration, succeeded, failed int) {
	c.LogInfo(fmt.Sprintf("wave %d: complete in %s (%d succeeded, %d failed)",
		waveNum, formatDuration(duration), succeeded, failed))
}

// LogVerificationResult logs the outcome of C9's verification pipeline for
// one task.
func (c *ConsoleLogger) LogVerificationResult(id taskid.ID, passed bool, summary string) {
	if passed {
		c.LogInfo(fmt.Sprintf("task %s: verification passed", id))
		return
	}
	c.LogWarn(fmt.Sprintf("task %s: verification failed: %s", id, summary))
}

// LogMergeResult logs the outcome of C10's merge/integration step.
func (c *ConsoleLogger) LogMergeResult(id taskid.ID, succeeded bool, detail string) {
	if succeeded {
		c.LogInfo(fmt.Sprintf("task %s: merged (%s)", id, detail))
		return
	}
	c.LogError(fmt.Sprintf("task %s: merge failed: %s", id, detail))
}

// LogSignalAnomaly logs an unexpected or stale signal file observation from
// C8's IPC layer.
func (c *ConsoleLogger) LogSignalAnomaly(id taskid.ID, kind string, detail string) {
	c.LogWarn(fmt.Sprintf("task %s: signal anomaly (%s): %s", id, kind, detail))
}

// LogHeartbeatAnomaly logs a missed or stale heartbeat from C7's session
// monitor.
func (c *ConsoleLogger) LogHeartbeatAnomaly(id taskid.ID, detail string) {
	c.LogWarn(fmt.Sprintf("task %s: heartbeat anomaly: %s", id, detail))
}

// LogRunSummary renders the final boxed run summary: total/completed/failed
// task counts, wall-clock duration, and overall status.
func (c *ConsoleLogger) LogRunSummary(total, completed, failed int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := "SUCCESS"
	if failed > 0 {
		if completed == 0 {
			status = "FAILED"
		} else {
			status = "PARTIAL"
		}
	}

	lines := []string{
		"RUN SUMMARY",
		fmt.Sprintf("total: %d  completed: %d  failed: %d", total, completed, failed),
		fmt.Sprintf("duration: %s  status: %s", formatDuration(duration), status),
	}
	fmt.Fprint(c.writer, drawBox(lines))
}

const boxWidth = 56

func drawBox(lines []string) string {
	var b strings.Builder
	b.WriteString("+" + strings.Repeat("-", boxWidth-2) + "+\n")
	for _, line := range lines {
		pad := boxWidth - 4 - runewidth.StringWidth(line)
		if pad < 0 {
			pad = 0
		}
		b.WriteString("| " + line + strings.Repeat(" ", pad) + " |\n")
	}
	b.WriteString("+" + strings.Repeat("-", boxWidth-2) + "+\n")
	return b.String()
}

var _ Logger = (*ConsoleLogger)(nil)
