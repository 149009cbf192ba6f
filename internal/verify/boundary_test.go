package verify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmesh/orchestrator/internal/verify"
)

func TestCheckBoundariesFlagsUndeclaredFile(t *testing.T) {
	result := verify.CheckBoundaries(context.Background(), t.TempDir(),
		[]string{"a.go", "b.go"}, []string{"a.go"}, nil, 500, false)
	assert.False(t, result.Passed())
	assert.Len(t, result.Violations, 1)
	assert.Equal(t, "b.go", result.Violations[0].Path)
}

func TestCheckBoundariesAllowsDeclaredFiles(t *testing.T) {
	result := verify.CheckBoundaries(context.Background(), t.TempDir(),
		[]string{"a.go"}, []string{"a.go"}, nil, 500, false)
	assert.True(t, result.Passed())
}

func TestCheckBoundariesFlagsForbiddenPattern(t *testing.T) {
	result := verify.CheckBoundaries(context.Background(), t.TempDir(),
		[]string{"pkg/.env"}, []string{"pkg/.env"}, nil, 500, false)
	assert.False(t, result.Passed())
	assert.Contains(t, result.Violations[0].Reason, "forbidden pattern")
}

func TestCheckBoundariesFlagsLockfileWrite(t *testing.T) {
	result := verify.CheckBoundaries(context.Background(), t.TempDir(),
		[]string{"go.sum"}, []string{"go.sum"}, nil, 500, false)
	assert.False(t, result.Passed())
	assert.Contains(t, result.Violations[0].Reason, "lockfile")
}

func TestCheckBoundariesAppendCountsAsAllowed(t *testing.T) {
	result := verify.CheckBoundaries(context.Background(), t.TempDir(),
		[]string{"CHANGELOG.md"}, nil, []string{"CHANGELOG.md"}, 500, false)
	assert.True(t, result.Passed())
}
