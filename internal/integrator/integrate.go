package integrator

import (
	"fmt"
	"os"
)

// ApplyIntents applies every intent (in order) to the file at path using
// adapter, bootstrapping whichever regions are needed along the way. It
// returns the final file content without writing it — callers (C12's
// integration step, under the staging lock) decide when to persist it via
// fsatomic.Write.
func ApplyIntents(path string, adapter Adapter, intents []PlanIntent) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read hot file %s: %w", path, err)
	}
	content := string(data)

	for _, intent := range intents {
		generated, err := adapter.Generate(intent.Action, intent.Parameters)
		if err != nil {
			return "", fmt.Errorf("generate for action %s: %w", intent.Action, err)
		}
		content, err = applyGenerated(content, adapter, generated)
		if err != nil {
			return "", fmt.Errorf("apply generated output for action %s: %w", intent.Action, err)
		}
	}
	return content, nil
}

// PlanIntent mirrors plan.Intent's shape without importing internal/plan, to
// keep the integrator decoupled the way internal/graph and internal/conflict
// are — kept as a plain struct adapted by the caller.
type PlanIntent struct {
	Action     string
	Parameters map[string]any
}

func applyGenerated(content string, adapter Adapter, g Generated) (string, error) {
	var err error
	if len(g.Imports) > 0 {
		content, err = insertWithBootstrap(content, RegionImports, g.Imports, adapter.Anchors()[RegionImports])
		if err != nil {
			return "", err
		}
	}
	if len(g.Body) > 0 {
		content, err = insertWithBootstrap(content, RegionBody, g.Body, adapter.Anchors()[RegionBody])
		if err != nil {
			return "", err
		}
	}
	if len(g.Config) > 0 {
		content, err = insertWithBootstrap(content, RegionConfig, g.Config, adapter.Anchors()[RegionConfig])
		if err != nil {
			return "", err
		}
	}
	return content, nil
}

func insertWithBootstrap(content string, kind RegionKind, lines []string, anchor Anchor) (string, error) {
	bootstrapped, err := Bootstrap(content, kind, anchor)
	if err != nil {
		return "", err
	}
	return InsertIntoRegion(bootstrapped, kind, lines)
}
