package klog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// FileLogger persists orchestrator events to <logDir>/run-<timestamp>.log,
// maintains a latest.log symlink to the current run, and writes one
// detailed log per task under <logDir>/tasks/. It is safe for concurrent
// use by every wave worker goroutine.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	tasksDir string
	logLevel Level
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger rooted at logDir, creating the
// directory tree, opening a fresh timestamped run log, and pointing
// latest.log at it.
func NewFileLogger(logDir string, level string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tasks log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create run log file: %w", err)
	}

	symlink := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlink); err == nil {
		if err := os.Remove(symlink); err != nil {
			f.Close()
			return nil, fmt.Errorf("remove stale latest.log symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlink); err != nil {
		f.Close()
		return nil, fmt.Errorf("create latest.log symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   f,
		tasksDir: tasksDir,
		logLevel: normalizeLevel(level),
	}
	fl.write(fmt.Sprintf("=== orchestrator run log ===\nstarted at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

func (fl *FileLogger) shouldLog(level Level) bool { return level >= fl.logLevel }

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel(LevelTrace, message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel(LevelDebug, message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel(LevelInfo, message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel(LevelWarn, message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel(LevelError, message) }

func (fl *FileLogger) logWithLevel(level Level, message string) {
	if !fl.shouldLog(level) {
		return
	}
	fl.write(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

func (fl *FileLogger) LogPhaseStart(phase string) {
	fl.LogInfo(fmt.Sprintf("phase %s: starting", phase))
}

func (fl *FileLogger) LogPhaseComplete(phase string, duration time.Duration) {
	fl.LogInfo(fmt.Sprintf("phase %s: complete (%s)", phase, formatDuration(duration)))
}

func (fl *FileLogger) LogTaskTransition(id taskid.ID, from, to state.TaskStatus) {
	fl.LogInfo(fmt.Sprintf("task %s: %s -> %s", id, from, to))
}

func (fl *FileLogger) LogWaveStart(waveNum int, taskIDs []taskid.ID, maxConcurrency int) {
	names := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		names[i] = id.String()
	}
	fl.LogInfo(fmt.Sprintf("wave %d: starting %d task(s) [%s] (max concurrency %d)",
		waveNum, len(taskIDs), strings.Join(names, ", "), maxConcurrency))
}

func (fl *FileLogger) LogWaveComplete(waveNum int, duration time.Duration, succeeded, failed int) {
	fl.LogInfo(fmt.Sprintf("wave %d: complete in %s (%d succeeded, %d failed)",
		waveNum, formatDuration(duration), succeeded, failed))
}

func (fl *FileLogger) LogVerificationResult(id taskid.ID, passed bool, summary string) {
	if passed {
		fl.LogInfo(fmt.Sprintf("task %s: verification passed", id))
		return
	}
	fl.LogWarn(fmt.Sprintf("task %s: verification failed: %s", id, summary))
}

func (fl *FileLogger) LogMergeResult(id taskid.ID, succeeded bool, detail string) {
	if succeeded {
		fl.LogInfo(fmt.Sprintf("task %s: merged (%s)", id, detail))
		return
	}
	fl.LogError(fmt.Sprintf("task %s: merge failed: %s", id, detail))
}

func (fl *FileLogger) LogSignalAnomaly(id taskid.ID, kind string, detail string) {
	fl.LogWarn(fmt.Sprintf("task %s: signal anomaly (%s): %s", id, kind, detail))
}

func (fl *FileLogger) LogHeartbeatAnomaly(id taskid.ID, detail string) {
	fl.LogWarn(fmt.Sprintf("task %s: heartbeat anomaly: %s", id, detail))
}

func (fl *FileLogger) LogRunSummary(total, completed, failed int, duration time.Duration) {
	status := "SUCCESS"
	if failed > 0 {
		if completed == 0 {
			status = "FAILED"
		} else {
			status = "PARTIAL"
		}
	}
	fl.write(fmt.Sprintf(
		"\n=== RUN SUMMARY ===\ntotal: %d\ncompleted: %d\nfailed: %d\nduration: %s\nstatus: %s\ncompleted at: %s\n",
		total, completed, failed, formatDuration(duration), status, time.Now().Format(time.RFC3339)))
}

// LogTaskDetail writes a task's full execution record (prompt, attempts,
// output, error) to its own file under tasks/, overwriting any prior
// content for that task id.
func (fl *FileLogger) LogTaskDetail(id taskid.ID, content string) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	path := filepath.Join(fl.tasksDir, fmt.Sprintf("task-%s.log", id))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write task log for %s: %w", id, err)
	}
	return nil
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		return fmt.Errorf("sync run log: %w", err)
	}
	if err := fl.runLog.Close(); err != nil {
		return fmt.Errorf("close run log: %w", err)
	}
	fl.runLog = nil
	return nil
}

func (fl *FileLogger) write(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return
	}
	fl.runLog.WriteString(message)
	fl.runLog.Sync()
}

var _ Logger = (*FileLogger)(nil)
