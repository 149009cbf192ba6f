package verify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmesh/orchestrator/internal/verify"
)

func TestSummarizeGroupsByReasonCategory(t *testing.T) {
	result := verify.Result{
		Boundary: verify.BoundaryResult{
			Violations: []verify.BoundaryViolation{
				{Path: "a.go", Reason: "modified file not declared in files_write or files_append"},
				{Path: "b.go", Reason: "modified file not declared in files_write or files_append"},
				{Path: ".env", Reason: "matches forbidden pattern: .env"},
			},
		},
	}
	summary := verify.Summarize(result)
	assert.Len(t, summary.ByReason["undeclared_write"], 2)
	assert.Len(t, summary.ByReason["forbidden_path"], 1)
}

func TestSummaryStringReportsPassWhenClean(t *testing.T) {
	summary := verify.Summarize(verify.Result{})
	assert.Contains(t, summary.String(), "passed")
}

func TestSummaryStringIncludesFailedCommandsAndEnvIssue(t *testing.T) {
	result := verify.Result{
		Commands: verify.RunResult{
			Results:  []verify.CheckResult{{Command: "go test ./...", Passed: false, ExitCode: 1}},
			FailedAt: "go test ./...",
		},
		EnvReason: "stale environment",
	}
	out := verify.Summarize(result).String()
	assert.Contains(t, out, "go test ./...")
	assert.Contains(t, out, "stale environment")
}
