package verify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskmesh/orchestrator/internal/plan"
)

// CheckResult is one executed Check's outcome.
type CheckResult struct {
	Command  string
	Passed   bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// RunResult is Step B's complete outcome for one task.
type RunResult struct {
	Results  []CheckResult
	FailedAt string // the command that stopped a fail-fast run, if any
}

// Passed reports whether every required check passed.
func (r RunResult) Passed() bool {
	return r.FailedAt == ""
}

const outputTruncateLimit = 8192

// RunChecks executes each Check in order inside worktreeDir, resolving
// {modified_files} and {modified_tests} templates, stopping at the first
// required failure when failFast is true (spec default).
func RunChecks(ctx context.Context, worktreeDir string, checks []plan.Check, modified []string, failFast bool) RunResult {
	modifiedTests := conventionalTestPaths(worktreeDir, modified)
	var result RunResult
	for _, check := range checks {
		cmdStr := resolveTemplate(check.Command, modified, modifiedTests)
		cr := runOne(ctx, worktreeDir, cmdStr, check.EffectiveTimeout())
		result.Results = append(result.Results, cr)
		if !cr.Passed && check.Required {
			result.FailedAt = cmdStr
			if failFast {
				return result
			}
		}
	}
	return result
}

func runOne(ctx context.Context, dir, cmdStr string, timeoutSeconds int) CheckResult {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", cmdStr)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	passed := err == nil
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			exitCode = -1
		}
	}
	return CheckResult{
		Command:  cmdStr,
		Passed:   passed,
		ExitCode: exitCode,
		Stdout:   truncate(stdout.String()),
		Stderr:   truncate(stderr.String()),
		Duration: duration,
	}
}

func truncate(s string) string {
	if len(s) <= outputTruncateLimit {
		return s
	}
	return s[:outputTruncateLimit] + "...(truncated)"
}

// resolveTemplate shell-quotes every filename before substitution, so a
// filename containing spaces or shell metacharacters cannot escape the
// {modified_files}/{modified_tests} placeholder into the surrounding command.
func resolveTemplate(command string, modified, modifiedTests []string) string {
	command = strings.ReplaceAll(command, "{modified_files}", shellJoin(modified))
	command = strings.ReplaceAll(command, "{modified_tests}", shellJoin(modifiedTests))
	return command
}

func shellJoin(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}

// conventionalTestPaths maps each modified source path to its conventional
// test-file location and keeps only the ones that exist on disk.
func conventionalTestPaths(worktreeDir string, modified []string) []string {
	var out []string
	for _, src := range modified {
		for _, candidate := range testCandidates(src) {
			if _, err := os.Stat(filepath.Join(worktreeDir, candidate)); err == nil {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

func testCandidates(src string) []string {
	dir := filepath.Dir(src)
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	ext := filepath.Ext(src)
	switch ext {
	case ".go":
		return []string{filepath.Join(dir, base+"_test.go")}
	case ".py":
		return []string{
			filepath.Join(dir, "test_"+base+".py"),
			filepath.Join(dir, base+"_test.py"),
		}
	case ".ts", ".tsx", ".js", ".jsx":
		return []string{
			filepath.Join(dir, base+".test"+ext),
			filepath.Join(dir, base+".spec"+ext),
			filepath.Join(dir, "__tests__", base+ext),
		}
	default:
		return nil
	}
}

// BoundaryViolationsSummary formats Step A results as a quick
// one-line-per-violation report.
func BoundaryViolationsSummary(violations []BoundaryViolation) string {
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = fmt.Sprintf("%s: %s", v.Path, v.Reason)
	}
	return strings.Join(lines, "\n")
}
