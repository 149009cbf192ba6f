package conflict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/conflict"
)

func TestAnalyzeNoCollisionsWhenFilesDisjoint(t *testing.T) {
	tasks := []conflict.Task{
		{ID: "a", FilesWrite: []string{"src/a.py"}},
		{ID: "b", FilesWrite: []string{"src/b.py"}},
	}
	result := conflict.Analyze(tasks, map[string][]string{})
	assert.Empty(t, result.Collisions)
	assert.False(t, result.HasUnresolved())
}

func TestAnalyzeResolvesFileCollisionWithDependencyChain(t *testing.T) {
	tasks := []conflict.Task{
		{ID: "a", FilesWrite: []string{"shared.py"}},
		{ID: "b", FilesWrite: []string{"shared.py"}},
	}
	deps := map[string][]string{"b": {"a"}}

	result := conflict.Analyze(tasks, deps)
	require.Len(t, result.Collisions, 1)
	assert.True(t, result.Collisions[0].Resolved)
	assert.False(t, result.HasUnresolved())
	assert.Empty(t, result.Suggested)
}

func TestAnalyzeRejectsUnresolvedFileCollision(t *testing.T) {
	tasks := []conflict.Task{
		{ID: "a", FilesWrite: []string{"shared.py"}},
		{ID: "b", FilesWrite: []string{"shared.py"}},
	}
	result := conflict.Analyze(tasks, map[string][]string{})
	require.Len(t, result.Collisions, 1)
	assert.False(t, result.Collisions[0].Resolved)
	assert.True(t, result.HasUnresolved())
	require.Len(t, result.Suggested, 1)
	assert.Equal(t, conflict.SuggestedEdge{Before: "a", After: "b"}, result.Suggested[0])
}

func TestAnalyzeResourceCollisionFromPatchIntents(t *testing.T) {
	tasks := []conflict.Task{
		{ID: "a", FilesWrite: []string{"a.py"}, PatchIntents: []conflict.IntentRef{
			{Action: "add_router", Parameters: map[string]any{"prefix": "/auth"}},
		}},
		{ID: "b", FilesWrite: []string{"b.py"}, PatchIntents: []conflict.IntentRef{
			{Action: "add_router", Parameters: map[string]any{"prefix": "/auth"}},
		}},
	}
	result := conflict.Analyze(tasks, map[string][]string{})
	require.Len(t, result.Collisions, 1)
	assert.Equal(t, conflict.KindResource, result.Collisions[0].Kind)
	assert.Equal(t, "route:/auth", result.Collisions[0].Key)
	assert.False(t, result.Collisions[0].Resolved)
}

func TestAnalyzeIgnoresUnknownActionForImpliedResources(t *testing.T) {
	tasks := []conflict.Task{
		{ID: "a", PatchIntents: []conflict.IntentRef{{Action: "unknown_action", Parameters: map[string]any{"x": "y"}}}},
		{ID: "b", PatchIntents: []conflict.IntentRef{{Action: "unknown_action", Parameters: map[string]any{"x": "y"}}}},
	}
	result := conflict.Analyze(tasks, map[string][]string{})
	assert.Empty(t, result.Collisions)
}

func TestAnalyzeThreeWayChainResolvesWhenLinear(t *testing.T) {
	tasks := []conflict.Task{
		{ID: "a", FilesWrite: []string{"shared.py"}},
		{ID: "b", FilesWrite: []string{"shared.py"}},
		{ID: "c", FilesWrite: []string{"shared.py"}},
	}
	deps := map[string][]string{"b": {"a"}, "c": {"b"}}
	result := conflict.Analyze(tasks, deps)
	require.Len(t, result.Collisions, 1)
	assert.True(t, result.Collisions[0].Resolved)
}

func TestAnalyzeThreeWayChainRejectsWithMissingEdge(t *testing.T) {
	tasks := []conflict.Task{
		{ID: "a", FilesWrite: []string{"shared.py"}},
		{ID: "b", FilesWrite: []string{"shared.py"}},
		{ID: "c", FilesWrite: []string{"shared.py"}},
	}
	deps := map[string][]string{"c": {"b"}} // missing b<-a edge
	result := conflict.Analyze(tasks, deps)
	require.Len(t, result.Collisions, 1)
	assert.False(t, result.Collisions[0].Resolved)
}

func TestImpliedResourcesForKnownActions(t *testing.T) {
	assert.Equal(t, []string{"route:/v1"}, conflict.ImpliedResources(conflict.IntentRef{
		Action: "add_router", Parameters: map[string]any{"prefix": "/v1"},
	}))
	assert.Equal(t, []string{"di:Logger"}, conflict.ImpliedResources(conflict.IntentRef{
		Action: "add_di_binding", Parameters: map[string]any{"name": "Logger"},
	}))
	assert.Nil(t, conflict.ImpliedResources(conflict.IntentRef{Action: "noop"}))
}
