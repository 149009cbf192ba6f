// Package session implements the Session Supervisor (C7): spawning agents in
// detached tmux sessions, verifying they actually started, and monitoring
// them to completion, hang, or timeout via the filesystem signal contract.
package session

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskmesh/orchestrator/internal/taskid"
)

// HeartbeatStaleDisplayThreshold is the age at which a heartbeat is shown as
// stale in status output. It is intentionally shorter than
// HeartbeatKillThreshold: staleness here is advisory, not a kill trigger —
// see HeartbeatKillThreshold.
const HeartbeatStaleDisplayThreshold = 90 * time.Second

// HeartbeatKillThreshold is the age at which the monitor kills a session and
// marks the task failed (hung). Longer than HeartbeatStaleDisplayThreshold
// on purpose, to tolerate transient pauses (GC, slow disk, a long single
// tool call) without killing a worker that is merely slow this cycle.
const HeartbeatKillThreshold = 300 * time.Second

// DefaultTaskTimeout bounds a task's overall wall-clock budget.
const DefaultTaskTimeout = 1800 * time.Second

// PollInterval is the monitor loop's polling cadence.
const PollInterval = 30 * time.Second

// Role distinguishes the kinds of session C7 spawns.
type Role string

const (
	RoleWorker   Role = "worker"
	RoleVerifier Role = "verifier"
	RolePlanner  Role = "planner"
)

// Outcome is the terminal result the monitor loop reports for one session.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeHung      Outcome = "hung"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeVanished  Outcome = "terminated"
)

// Supervisor spawns and monitors tmux sessions for workers and verifiers.
type Supervisor struct {
	launcherPath string // absolute path to the agent launcher binary
	signalsDir   string
	logsDir      string
}

// New returns a Supervisor rooted at root, using launcherPath (resolved once
// at startup, per spec.md §4.7, rather than sourcing shell profiles — those
// frequently early-exit in non-interactive shells).
func New(root, launcherPath string) *Supervisor {
	return &Supervisor{
		launcherPath: launcherPath,
		signalsDir:   filepath.Join(root, ".orchestrator", "signals"),
		logsDir:      filepath.Join(root, ".orchestrator", "logs"),
	}
}

func tmux(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// sessionExists reports whether a tmux session with the given name exists.
func sessionExists(ctx context.Context, name string) bool {
	_, err := tmux(ctx, "has-session", "-t", name)
	return err == nil
}

// Spawn implements the four-step spawning protocol: create a uniquely
// suffixed session in worktreeDir, export PATH + heap-size env, rename over
// any prior session with the target name, then pipe the prompt file via
// stdin so large prompts never cross a shell-escaping boundary.
func (s *Supervisor) Spawn(ctx context.Context, id taskid.ID, role Role, worktreeDir, promptFile string, heapSizeMB int) error {
	target := id.SessionName(string(role))
	temp := target + "-" + fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)

	if _, err := tmux(ctx, "new-session", "-d", "-s", temp, "-c", worktreeDir); err != nil {
		return fmt.Errorf("create tmux session %s: %w", temp, err)
	}

	pathExport := fmt.Sprintf("export PATH=%q:$PATH", filepath.Dir(s.launcherPath))
	heapExport := fmt.Sprintf("export NODE_OPTIONS=--max-old-space-size=%d", heapSizeMB)
	if _, err := tmux(ctx, "send-keys", "-t", temp, pathExport+" && "+heapExport, "Enter"); err != nil {
		return fmt.Errorf("export session env for %s: %w", temp, err)
	}

	if sessionExists(ctx, target) {
		if _, err := tmux(ctx, "kill-session", "-t", target); err != nil {
			return fmt.Errorf("kill existing session %s: %w", target, err)
		}
	}
	if _, err := tmux(ctx, "rename-session", "-t", temp, target); err != nil {
		return fmt.Errorf("rename session %s to %s: %w", temp, target, err)
	}

	launchCmd := fmt.Sprintf("cat %q | %q -p", promptFile, s.launcherPath)
	if _, err := tmux(ctx, "send-keys", "-t", target, launchCmd, "Enter"); err != nil {
		return fmt.Errorf("pipe prompt into session %s: %w", target, err)
	}
	return nil
}

// knownShellNames lists pane current_command values that mean "the agent has
// not started yet" — the pane is still sitting at an interactive shell.
var knownShellNames = map[string]bool{"bash": true, "zsh": true, "sh": true, "fish": true}

var shellErrorMarkers = []string{"command not found", "No such file or directory", "Permission denied"}

// VerifyStarted inspects the pane ~3s after Spawn to decide whether the agent
// process actually started. It never keys liveness off the word "error" in
// pane output — an agent's normal output contains errors routinely — only
// off concrete shell-level failure strings when the pane is still at a shell.
func (s *Supervisor) VerifyStarted(ctx context.Context, id taskid.ID, role Role) error {
	target := id.SessionName(string(role))
	time.Sleep(3 * time.Second)

	out, err := tmux(ctx, "display-message", "-p", "-t", target, "#{pane_current_command}")
	if err != nil {
		return fmt.Errorf("inspect pane for %s: %w", target, err)
	}
	cmdName := strings.TrimSpace(out)
	if !knownShellNames[cmdName] {
		return nil // some non-shell command is running: the agent started
	}

	pane, err := tmux(ctx, "capture-pane", "-p", "-t", target)
	if err != nil {
		return fmt.Errorf("capture pane for %s: %w", target, err)
	}
	for _, marker := range shellErrorMarkers {
		if strings.Contains(pane, marker) {
			return fmt.Errorf("agent failed to start in session %s: %s", target, marker)
		}
	}
	return fmt.Errorf("agent has not started in session %s (pane still at shell)", target)
}

// Kill terminates a tmux session if it exists. Never returns an error for an
// already-absent session — kill is idempotent cleanup, not an assertion.
func (s *Supervisor) Kill(ctx context.Context, name string) error {
	if !sessionExists(ctx, name) {
		return nil
	}
	if _, err := tmux(ctx, "kill-session", "-t", name); err != nil {
		return fmt.Errorf("kill session %s: %w", name, err)
	}
	return nil
}

// SaveLog copies the session's pane-history tail to the log directory,
// truncated to the last ~1000 lines, named per spec.md's log path scheme.
func (s *Supervisor) SaveLog(ctx context.Context, sessionName string) (string, error) {
	out, err := tmux(ctx, "capture-pane", "-p", "-t", sessionName, "-S", "-1000")
	if err != nil {
		return "", fmt.Errorf("capture pane history for %s: %w", sessionName, err)
	}
	if err := os.MkdirAll(s.logsDir, 0o755); err != nil {
		return "", fmt.Errorf("create logs dir: %w", err)
	}
	logPath := filepath.Join(s.logsDir, fmt.Sprintf("%s_%s.log", sessionName, time.Now().UTC().Format("20060102_150405")))
	if err := os.WriteFile(logPath, []byte(out), 0o644); err != nil {
		return "", fmt.Errorf("write session log: %w", err)
	}
	return logPath, nil
}
