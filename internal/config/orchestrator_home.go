package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetOrchestratorHome returns the orchestrator home directory.
// Priority order:
//  1. ORCHESTRATOR_HOME environment variable (if set)
//  2. The orchestrator's own repo root (detected by finding go.mod or a
//     .orchestrator-root marker) — only relevant when developing the
//     orchestrator itself
//  3. Current working directory (fallback — the common case: running
//     against a target project)
//
// The directory is created if it doesn't exist.
func GetOrchestratorHome() (string, error) {
	if home := os.Getenv("ORCHESTRATOR_HOME"); home != "" {
		return ensureHomeDir(home)
	}

	repoRoot, err := findOrchestratorRepoRoot()
	if err == nil && repoRoot != "" {
		return ensureHomeDir(filepath.Join(repoRoot, ".orchestrator"))
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return ensureHomeDir(filepath.Join(cwd, ".orchestrator"))
}

func ensureHomeDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create orchestrator home directory: %w", err)
	}
	return path, nil
}

// findOrchestratorRepoRoot walks up from cwd looking for a .orchestrator-root
// marker file, or a go.mod declaring this module's own path.
func findOrchestratorRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		if _, err := os.Stat(filepath.Join(current, ".orchestrator-root")); err == nil {
			return current, nil
		}
		if data, err := os.ReadFile(filepath.Join(current, "go.mod")); err == nil {
			if strings.Contains(string(data), "github.com/taskmesh/orchestrator") {
				return current, nil
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", fmt.Errorf("orchestrator repository root not found (looking for .orchestrator-root or go.mod declaring github.com/taskmesh/orchestrator)")
}

// GetHistoryDBPath returns the absolute path to the run-history ledger
// (internal/history's sqlite3 database): $ORCHESTRATOR_HOME/history/runs.db.
func GetHistoryDBPath() (string, error) {
	home, err := GetOrchestratorHome()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, "history")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}
	return filepath.Join(dir, "runs.db"), nil
}
