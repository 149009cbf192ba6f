package integrator_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/integrator"
)

type routerAdapter struct{}

func (routerAdapter) Name() string { return "router" }
func (routerAdapter) Generate(action string, params map[string]any) (integrator.Generated, error) {
	route, _ := params["path"].(string)
	return integrator.Generated{
		Imports: []string{"import handlers"},
		Body:    []string{"router.add_route(\"" + route + "\")"},
	}, nil
}
func (routerAdapter) ImpliedResources(action string, params map[string]any) []string {
	if route, ok := params["path"].(string); ok {
		return []string{"route:" + route}
	}
	return nil
}
func (routerAdapter) DetectApplicability(repoRoot string) (float64, error) { return 0.9, nil }
func (routerAdapter) Anchors() map[integrator.RegionKind]integrator.Anchor {
	return map[integrator.RegionKind]integrator.Anchor{
		integrator.RegionBody: {
			Pattern:  regexp.MustCompile(`app = FastAPI\(`),
			Position: integrator.PositionAfter,
			Fallback: integrator.FallbackEndOfFile,
		},
		integrator.RegionImports: {
			Fallback: integrator.FallbackStartOfFile,
		},
	}
}

func TestApplyIntentsBootstrapsAndInsertsAcrossTwoIntents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("app = FastAPI(\n)\n"), 0o644))

	intents := []integrator.PlanIntent{
		{Action: "add_router", Parameters: map[string]any{"path": "/users"}},
		{Action: "add_router", Parameters: map[string]any{"path": "/orders"}},
	}
	out, err := integrator.ApplyIntents(path, routerAdapter{}, intents)
	require.NoError(t, err)
	assert.Contains(t, out, "/users")
	assert.Contains(t, out, "/orders")
	assert.Contains(t, out, "import handlers")
	assert.Equal(t, 1, countOccurrences(out, "import handlers"), "duplicate import lines across intents must be deduped")
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
			i += len(sub) - 1
		}
	}
	return n
}
