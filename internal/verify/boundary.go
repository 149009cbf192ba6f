// Package verify implements the Verification Pipeline (C9): the boundary
// check, command runner, environment check, and contract check a completed
// task must pass before it is eligible to merge.
package verify

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultChurnThreshold is the default lines-changed-per-file ceiling before
// a diff is flagged as a boundary violation (absent allow_large_changes).
const DefaultChurnThreshold = 500

// forbiddenGlobs must never appear among a task's modified paths.
var forbiddenGlobs = []string{
	"node_modules/", "__pycache__/", "*.pyc", ".env", "*.lock",
	"vendor/", "dist/", "build/", "*.min.*", "*.generated.*",
}

// lockfileGlobs are the paths only the supervisor (Stage 0.5) may touch.
var lockfileGlobs = []string{
	"go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
	"poetry.lock", "Pipfile.lock", "Cargo.lock", "Gemfile.lock", "composer.lock",
}

// formatInsensitiveExt are extensions where a whitespace-only diff is
// reported as a formatting-only violation; denyExt overrides for languages
// where whitespace is semantic (e.g. Python, YAML, Makefiles).
var formatInsensitiveExt = map[string]bool{
	".go": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".rs": true,
	".json": true, ".css": true,
}
var denyExt = map[string]bool{".py": true, ".yaml": true, ".yml": true, ".mk": true, "": true}

// BoundaryViolation is one Step A finding.
type BoundaryViolation struct {
	Path   string
	Reason string
}

// BoundaryResult is the complete Step A outcome for one task.
type BoundaryResult struct {
	ModifiedFiles []string
	Violations    []BoundaryViolation
}

// Passed reports whether the boundary check found no violations.
func (r BoundaryResult) Passed() bool {
	return len(r.Violations) == 0
}

// ModifiedFiles runs `git diff --name-only main...HEAD` in worktreeDir,
// falling back to `HEAD~1..HEAD` when the main-relative diff fails (e.g. a
// shallow clone or a rebased main). If both fail this hard-fails rather than
// silently returning an empty set, since an empty set would wrongly pass
// every subsequent boundary check.
func ModifiedFiles(ctx context.Context, worktreeDir, mainBranch string) ([]string, error) {
	out, err := gitOutput(ctx, worktreeDir, "diff", "--name-only", mainBranch+"...HEAD")
	if err == nil {
		return splitLines(out), nil
	}
	out, fallbackErr := gitOutput(ctx, worktreeDir, "diff", "--name-only", "HEAD~1..HEAD")
	if fallbackErr == nil {
		return splitLines(out), nil
	}
	return nil, fmt.Errorf("compute modified files: %s...HEAD failed (%w); HEAD~1..HEAD also failed (%v)", mainBranch, err, fallbackErr)
}

// CheckBoundaries runs every Step A rule against modified, the task's
// declared files_write/files_append, churn threshold, and large-change
// override.
func CheckBoundaries(ctx context.Context, worktreeDir string, modified, filesWrite, filesAppend []string, churnThreshold int, allowLargeChanges bool) BoundaryResult {
	if churnThreshold <= 0 {
		churnThreshold = DefaultChurnThreshold
	}
	allowed := make(map[string]bool, len(filesWrite)+len(filesAppend))
	for _, f := range filesWrite {
		allowed[f] = true
	}
	for _, f := range filesAppend {
		allowed[f] = true
	}

	var violations []BoundaryViolation
	for _, path := range modified {
		if !allowed[path] {
			violations = append(violations, BoundaryViolation{Path: path, Reason: "modified file not declared in files_write or files_append"})
			continue
		}
		if reason, matched := matchesAny(path, forbiddenGlobs); matched {
			violations = append(violations, BoundaryViolation{Path: path, Reason: "matches forbidden pattern: " + reason})
			continue
		}
		if reason, matched := matchesAny(path, lockfileGlobs); matched {
			violations = append(violations, BoundaryViolation{Path: path, Reason: "lockfile may only be touched by the supervisor: " + reason})
			continue
		}
		if !allowLargeChanges {
			if lines, err := linesChanged(ctx, worktreeDir, path); err == nil && lines > churnThreshold {
				violations = append(violations, BoundaryViolation{Path: path, Reason: fmt.Sprintf("%d lines changed exceeds churn threshold %d", lines, churnThreshold)})
			}
		}
		if isFormattingOnly(ctx, worktreeDir, path) {
			violations = append(violations, BoundaryViolation{Path: path, Reason: "formatting-only change"})
		}
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].Path < violations[j].Path })
	return BoundaryResult{ModifiedFiles: modified, Violations: violations}
}

func matchesAny(path string, globs []string) (string, bool) {
	for _, g := range globs {
		if strings.HasSuffix(g, "/") && strings.Contains(path, g) {
			return g, true
		}
		if ok, _ := filepath.Match(g, filepath.Base(path)); ok {
			return g, true
		}
		if ok, _ := filepath.Match(g, path); ok {
			return g, true
		}
	}
	return "", false
}

func linesChanged(ctx context.Context, worktreeDir, path string) (int, error) {
	out, err := gitOutput(ctx, worktreeDir, "diff", "--numstat", "main...HEAD", "--", path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(out)
	if len(fields) < 2 {
		return 0, nil
	}
	added, _ := strconv.Atoi(fields[0])
	removed, _ := strconv.Atoi(fields[1])
	return added + removed, nil
}

// isFormattingOnly reports whether path's whitespace-insensitive diff
// against main is empty, restricted to extensions where whitespace is not
// semantic.
func isFormattingOnly(ctx context.Context, worktreeDir, path string) bool {
	ext := filepath.Ext(path)
	if denyExt[ext] || !formatInsensitiveExt[ext] {
		return false
	}
	cmd := exec.CommandContext(ctx, "git", "diff", "-w", "--quiet", "main...HEAD", "--", path)
	cmd.Dir = worktreeDir
	return cmd.Run() == nil
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(ee.Stderr))
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return string(out), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
