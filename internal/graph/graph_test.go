package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/graph"
)

func TestValidateDetectsUnknownDependency(t *testing.T) {
	ids := []string{"a", "b"}
	deps := map[string][]string{"b": {"missing"}}

	err := graph.Validate(ids, deps)
	require.Error(t, err)
	var unk *graph.UnknownDependencyError
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, "b", unk.TaskID)
	assert.Equal(t, "missing", unk.UnknownDepID)
}

func TestValidateDetectsSelfCycle(t *testing.T) {
	ids := []string{"a"}
	deps := map[string][]string{"a": {"a"}}

	err := graph.Validate(ids, deps)
	require.Error(t, err)
	var cyc *graph.CycleError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a", "a"}, cyc.Cycle)
}

func TestValidateDetectsLongerCycle(t *testing.T) {
	ids := []string{"a", "b", "c"}
	deps := map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
	}

	err := graph.Validate(ids, deps)
	require.Error(t, err)
	var cyc *graph.CycleError
	require.ErrorAs(t, err, &cyc)
	assert.GreaterOrEqual(t, len(cyc.Cycle), 3)
}

func TestValidateAcceptsDAG(t *testing.T) {
	ids := []string{"a", "b", "c"}
	deps := map[string][]string{"b": {"a"}, "c": {"a"}}
	assert.NoError(t, graph.Validate(ids, deps))
}

func TestWavesCoverEveryTaskExactlyOnce(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	deps := map[string][]string{
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
	}

	waves, err := graph.Waves(ids, deps)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, waves)

	seen := map[string]bool{}
	for _, wave := range waves {
		for _, id := range wave {
			seen[id] = true
		}
	}
	assert.Len(t, seen, len(ids))
}

func TestWavesAreLexicographicAndStable(t *testing.T) {
	ids := []string{"zeta", "alpha", "beta"}
	deps := map[string][]string{}

	waves, err := graph.Waves(ids, deps)
	require.NoError(t, err)
	require.Len(t, waves, 1)
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, waves[0])

	// Stability across repeated calls on identical input.
	again, err := graph.Waves(ids, deps)
	require.NoError(t, err)
	assert.Equal(t, waves, again)
}

func TestWavesIndependentSingleTask(t *testing.T) {
	waves, err := graph.Waves([]string{"only"}, map[string][]string{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"only"}}, waves)
}

func TestCriticalPathFindsLongestChain(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	deps := map[string][]string{
		"b": {"a"},
		"c": {"b"},
		"d": {"a"},
	}

	path, err := graph.CriticalPath(ids, deps)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, path)
}

func TestOrderedInChainTrueForLinearChain(t *testing.T) {
	deps := map[string][]string{"b": {"a"}, "c": {"b"}}
	assert.True(t, graph.OrderedInChain([]string{"a", "b", "c"}, deps))
}

func TestOrderedInChainFalseWhenEdgeMissing(t *testing.T) {
	deps := map[string][]string{"b": {"a"}}
	assert.False(t, graph.OrderedInChain([]string{"a", "b", "c"}, deps))
}

func TestOrderedInChainFalseForBranchingDegree(t *testing.T) {
	deps := map[string][]string{"b": {"a"}, "c": {"a"}}
	assert.False(t, graph.OrderedInChain([]string{"a", "b", "c"}, deps))
}

func TestOrderedInChainSingleTaskIsTrivial(t *testing.T) {
	assert.True(t, graph.OrderedInChain([]string{"solo"}, map[string][]string{}))
}
