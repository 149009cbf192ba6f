package integrator_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/integrator"
)

func TestBootstrapInsertsMarkersAtAnchorMatch(t *testing.T) {
	content := "app = FastAPI(\n    title=\"x\",\n)\n"
	anchor := integrator.Anchor{
		Pattern:  regexp.MustCompile(`app = FastAPI\(`),
		Position: integrator.PositionAfter,
		Fallback: integrator.FallbackEndOfFile,
	}
	out, err := integrator.Bootstrap(content, integrator.RegionBody, anchor)
	require.NoError(t, err)
	assert.Contains(t, out, "# === AUTO:BODY ===")
	assert.Contains(t, out, "# === END:BODY ===")
}

func TestBootstrapIsNoopWhenRegionAlreadyPresent(t *testing.T) {
	content := "# === AUTO:BODY ===\nfoo()\n# === END:BODY ==="
	anchor := integrator.Anchor{Fallback: integrator.FallbackEndOfFile}
	out, err := integrator.Bootstrap(content, integrator.RegionBody, anchor)
	require.NoError(t, err)
	assert.Equal(t, content, out)
}

func TestBootstrapFallsBackToEndOfImports(t *testing.T) {
	content := "import os\nfrom x import y\n\nprint('hi')\n"
	anchor := integrator.Anchor{
		Pattern:  regexp.MustCompile(`does-not-exist`),
		Fallback: integrator.FallbackEndOfImports,
	}
	out, err := integrator.Bootstrap(content, integrator.RegionImports, anchor)
	require.NoError(t, err)
	lines := splitLines(out)
	// markers must land after both import lines and before the print call
	require.Contains(t, out, "# === AUTO:IMPORTS ===")
	importIdx := indexOf(lines, "from x import y")
	markerIdx := indexOf(lines, "# === AUTO:IMPORTS ===")
	printIdx := indexOf(lines, "print('hi')")
	assert.Greater(t, markerIdx, importIdx)
	assert.Less(t, markerIdx, printIdx)
}

func TestBootstrapFallsBackToStartOfFile(t *testing.T) {
	content := "body()\n"
	anchor := integrator.Anchor{Pattern: regexp.MustCompile(`nope`), Fallback: integrator.FallbackStartOfFile}
	out, err := integrator.Bootstrap(content, integrator.RegionConfig, anchor)
	require.NoError(t, err)
	assert.True(t, len(out) > 0 && out[:len(`# === AUTO:CONFIG ===`)] == `# === AUTO:CONFIG ===`)
}

func TestBootstrapSerializeFallbackReturnsTypedError(t *testing.T) {
	anchor := integrator.Anchor{Pattern: regexp.MustCompile(`nope`), Fallback: integrator.FallbackSerialize}
	_, err := integrator.Bootstrap("no match here", integrator.RegionBody, anchor)
	require.Error(t, err)
	var serializeErr *integrator.SerializeRequiredError
	require.ErrorAs(t, err, &serializeErr)
	assert.Equal(t, integrator.RegionBody, serializeErr.Kind)
}

func TestBootstrapErrorFallbackReturnsPlainError(t *testing.T) {
	anchor := integrator.Anchor{Pattern: regexp.MustCompile(`nope`), Fallback: integrator.FallbackError}
	_, err := integrator.Bootstrap("no match here", integrator.RegionBody, anchor)
	assert.Error(t, err)
}

func splitLines(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == '\n' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	out = append(out, cur)
	return out
}

func indexOf(lines []string, target string) int {
	for i, l := range lines {
		if l == target {
			return i
		}
	}
	return -1
}
