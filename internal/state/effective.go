package state

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// workerStatusFile is the advisory per-task file a worker writes inside its
// own worktree, per spec.md §6 ("Per-task status").
const workerStatusFile = ".task-status.json"

// workerStatus is the subset of TaskRecord a worker is allowed to self-report.
type workerStatus struct {
	Status TaskStatus `json:"status"`
}

// EffectiveStatus derives the status the supervisor should act on for a task:
// if the worker's .task-status.json inside worktreePath is newer than the
// state record's UpdatedAt and parses successfully, trust it; otherwise fall
// back to the authoritative state document. This lets a worker advance
// itself (e.g. to "completed") without round-tripping through the supervisor,
// while keeping the State Store authoritative whenever the worker's file is
// stale, missing, or corrupt.
func EffectiveStatus(rec TaskRecord, worktreePath string) TaskStatus {
	if worktreePath == "" {
		return rec.Status
	}
	path := filepath.Join(worktreePath, workerStatusFile)
	info, err := os.Stat(path)
	if err != nil {
		return rec.Status
	}

	recUpdated, err := parseRFC3339(rec.UpdatedAt)
	if err == nil && !info.ModTime().After(recUpdated) {
		return rec.Status
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rec.Status
	}
	var ws workerStatus
	if err := json.Unmarshal(data, &ws); err != nil || ws.Status == "" {
		return rec.Status
	}
	return ws.Status
}
