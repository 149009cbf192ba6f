// Package signal implements the signal-file half of C8's IPC contract:
// atomic write-tmp-then-rename files under <root>/.orchestrator/signals/,
// watched by fsnotify where available and by polling otherwise, and cleaned
// up only when old and untagged with the current request id.
package signal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/taskmesh/orchestrator/internal/fsatomic"
)

// Kind is the signal file suffix.
type Kind string

const (
	KindDone      Kind = "done"
	KindVerified  Kind = "verified"
	KindHeartbeat Kind = "heartbeat"
)

// CleanupAge is the minimum age before an untagged signal file is eligible
// for removal. Never an unconditional sweep — see Cleanup.
const CleanupAge = 2 * time.Hour

// Dir manages the signals directory for one project root.
type Dir struct {
	path string
}

// New returns a Dir rooted at <root>/.orchestrator/signals.
func New(root string) *Dir {
	return &Dir{path: filepath.Join(root, ".orchestrator", "signals")}
}

func (d *Dir) pathFor(taskID string, kind Kind) string {
	return filepath.Join(d.path, fmt.Sprintf("%s.%s", taskID, kind))
}

// Write atomically writes a signal file. content is an ISO timestamp or a
// request id, per spec.md §4.8, embedded so Cleanup can age-and-tag filter.
func (d *Dir) Write(taskID string, kind Kind, content string) error {
	return fsatomic.Write(d.pathFor(taskID, kind), []byte(content))
}

// Read returns a signal's content and whether it is present and non-empty.
// Per spec.md's invariant, a signal observed with non-empty content was
// necessarily produced by a completed rename — there is no partial-content
// case to guard against here beyond the existence/empty check itself.
func (d *Dir) Read(taskID string, kind Kind) (string, bool) {
	data, err := os.ReadFile(d.pathFor(taskID, kind))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// WaitFor blocks until a non-empty signal file appears or ctx is done. It
// prefers fsnotify for the watched directory; if the watcher cannot be
// created (e.g. no inotify support in a container), it falls back to polling
// at the given interval. Either way the correctness contract is the same:
// atomic rename, non-empty content.
func (d *Dir) WaitFor(ctx context.Context, taskID string, kind Kind, pollInterval time.Duration) (string, error) {
	if content, ok := d.Read(taskID, kind); ok {
		return content, nil
	}

	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := os.MkdirAll(d.path, 0o755); err == nil && watcher.Add(d.path) == nil {
			return d.waitWithWatcher(ctx, watcher, taskID, kind, pollInterval)
		}
	}
	return d.waitByPolling(ctx, taskID, kind, pollInterval)
}

func (d *Dir) waitWithWatcher(ctx context.Context, watcher *fsnotify.Watcher, taskID string, kind Kind, pollInterval time.Duration) (string, error) {
	target := filepath.Base(d.pathFor(taskID, kind))
	// A safety-net poll still runs alongside the watcher: fsnotify can miss
	// events under some filesystems (network mounts, certain container
	// overlays), and the correctness contract must not depend on it.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-watcher.Events:
			if ok && filepath.Base(ev.Name) == target {
				if content, found := d.Read(taskID, kind); found {
					return content, nil
				}
			}
		case <-ticker.C:
			if content, found := d.Read(taskID, kind); found {
				return content, nil
			}
		}
	}
}

func (d *Dir) waitByPolling(ctx context.Context, taskID string, kind Kind, pollInterval time.Duration) (string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			if content, found := d.Read(taskID, kind); found {
				return content, nil
			}
		}
	}
}

// Cleanup removes signal files older than CleanupAge whose content does not
// embed requestID. This never performs an unconditional sweep — the
// canonical behavior per spec.md §9, replacing an older implementation that
// deleted all signals regardless of age and raced with the live orchestration.
func (d *Dir) Cleanup(requestID string) (removed []string, err error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read signals dir: %w", err)
	}

	cutoff := time.Now().Add(-CleanupAge)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(d.path, e.Name())
		info, statErr := e.Info()
		if statErr != nil || info.ModTime().After(cutoff) {
			continue
		}
		data, readErr := os.ReadFile(path)
		if readErr == nil && requestID != "" && strings.Contains(string(data), requestID) {
			continue
		}
		if rmErr := os.Remove(path); rmErr == nil {
			removed = append(removed, e.Name())
		}
	}
	return removed, nil
}
