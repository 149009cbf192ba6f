package session

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmesh/orchestrator/internal/fsatomic"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// MonitorResult is what one poll cycle of the per-task monitor decides.
type MonitorResult struct {
	Outcome Outcome
	Reason  string
	LogPath string
}

// signalPath returns the path for a task's named signal file.
func (s *Supervisor) signalPath(id taskid.ID, kind string) string {
	return filepath.Join(s.signalsDir, id.String()+"."+kind)
}

// nonEmpty reports whether path exists and has non-zero size, the "done
// signal file present and non-empty" condition spec.md names.
func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// Monitor runs one poll cycle for a task's session, per spec.md §4.7's
// observation table, in priority order: done, blocked, stale heartbeat,
// overall timeout, then vanished session. start is when this task's
// monitoring began; taskTimeout defaults to DefaultTaskTimeout.
func (s *Supervisor) Monitor(ctx context.Context, id taskid.ID, role Role, start time.Time, taskTimeout time.Duration, isBlocked func() bool) MonitorResult {
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}
	sessionName := id.SessionName(string(role))
	elapsed := time.Since(start)

	if nonEmpty(s.signalPath(id, "done")) {
		return MonitorResult{Outcome: OutcomeCompleted}
	}

	if isBlocked != nil && isBlocked() {
		return MonitorResult{Outcome: OutcomeBlocked, Reason: "needs_dependency"}
	}

	heartbeatPath := s.signalPath(id, "heartbeat")
	if info, err := os.Stat(heartbeatPath); err == nil {
		age := time.Since(info.ModTime())
		if age > HeartbeatKillThreshold && elapsed >= 60*time.Second {
			logPath, _ := s.SaveLog(ctx, sessionName)
			_ = s.Kill(ctx, sessionName)
			return MonitorResult{Outcome: OutcomeHung, Reason: "heartbeat stale", LogPath: logPath}
		}
	}

	if elapsed > taskTimeout {
		logPath, _ := s.SaveLog(ctx, sessionName)
		_ = s.Kill(ctx, sessionName)
		return MonitorResult{Outcome: OutcomeTimeout, Reason: "exceeded task timeout", LogPath: logPath}
	}

	if !sessionExists(ctx, sessionName) {
		return MonitorResult{Outcome: OutcomeVanished, Reason: "session no longer exists"}
	}

	return MonitorResult{}
}

// Heartbeat writes (or refreshes) a task's heartbeat signal file. Workers
// call this every 30s; only the mtime matters, so the content can be any
// non-empty, atomically-written value.
func (s *Supervisor) Heartbeat(id taskid.ID) error {
	return fsatomic.Write(s.signalPath(id, "heartbeat"), []byte(time.Now().UTC().Format(time.RFC3339)))
}
