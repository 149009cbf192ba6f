package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/plan"
)

func TestDedupChecksMergesSharedCommandsOnce(t *testing.T) {
	p := plan.Plan{Tasks: []plan.Task{
		{ID: "a", Verification: []plan.Check{
			{Command: "go test ./...", Type: plan.CheckTest, Required: true},
			{Command: "go vet ./...", Type: plan.CheckLint, Required: false},
		}},
		{ID: "b", Verification: []plan.Check{
			{Command: "go test ./...", Type: plan.CheckTest, Required: true},
		}},
	}}

	checks := dedupChecks(p, []string{"a", "b"})

	require.Len(t, checks, 1, "shared required command must appear once; optional checks are excluded")
	assert.Equal(t, "go test ./...", checks[0].Command)
}

func TestDedupChecksIgnoresUnmergedTaskIDs(t *testing.T) {
	p := plan.Plan{Tasks: []plan.Task{
		{ID: "a", Verification: []plan.Check{{Command: "make test", Required: true}}},
	}}

	checks := dedupChecks(p, []string{"unknown"})
	assert.Empty(t, checks)
}
