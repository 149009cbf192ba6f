package integrator

import (
	"fmt"
	"regexp"
	"strings"
)

// Position names where a match's anchor line should be relative to the
// insertion point.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// FallbackMode names what happens when no anchor line matches.
type FallbackMode string

const (
	FallbackEndOfImports FallbackMode = "end_of_imports"
	FallbackStartOfFile  FallbackMode = "start_of_file"
	FallbackEndOfFile    FallbackMode = "end_of_file"
	FallbackSerialize    FallbackMode = "serialize"
	FallbackError        FallbackMode = "error"
)

// Anchor is an adapter's declared insertion point for bootstrapping a
// region that does not yet exist.
type Anchor struct {
	Pattern  *regexp.Regexp
	Position Position
	Fallback FallbackMode
}

// SerializeRequiredError signals that the fallback is "serialize": the
// orchestrator must treat every intent targeting this region as strictly
// sequential across tasks rather than attempt a concurrent bootstrap.
type SerializeRequiredError struct {
	Kind RegionKind
}

func (e *SerializeRequiredError) Error() string {
	return fmt.Sprintf("region %s has no anchor match; fallback requires serializing all intents targeting it", e.Kind)
}

// pythonImportPrefixes and jsImportPrefixes are the two ecosystem heuristics
// end_of_imports recognizes, per original_source's integrator/regions.py.
var pythonImportPrefixes = []string{"import ", "from "}
var jsImportPrefixes = []string{"const ", "import "}

func isImportLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, p := range pythonImportPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	for _, p := range jsImportPrefixes {
		if strings.HasPrefix(trimmed, p) && (strings.Contains(trimmed, "require(") || strings.HasPrefix(trimmed, "import ")) {
			return true
		}
	}
	return false
}

// endOfImportsLine returns the index after the last recognized import line
// at the top of the file (before the first non-import, non-blank line).
func endOfImportsLine(lines []string) int {
	last := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isImportLine(line) {
			last = i + 1
			continue
		}
		break
	}
	return last
}

// Bootstrap inserts kind's region markers into content using anchor,
// returning the updated content with an empty region ready for
// InsertIntoRegion. If no anchor match is found, it falls back per
// anchor.Fallback.
func Bootstrap(content string, kind RegionKind, anchor Anchor) (string, error) {
	lines := strings.Split(content, "\n")
	if start, end, ok := FindRegion(lines, kind); ok {
		_ = start
		_ = end
		return content, nil // already bootstrapped
	}

	insertAt, found := findAnchorLine(lines, anchor)
	if !found {
		switch anchor.Fallback {
		case FallbackEndOfImports:
			insertAt = endOfImportsLine(lines)
		case FallbackStartOfFile:
			insertAt = 0
		case FallbackEndOfFile:
			insertAt = len(lines)
		case FallbackSerialize:
			return "", &SerializeRequiredError{Kind: kind}
		case FallbackError:
			return "", fmt.Errorf("no anchor match for region %s and fallback is error", kind)
		default:
			return "", fmt.Errorf("unknown fallback mode %q", anchor.Fallback)
		}
	}

	block := []string{startMarker(kind), endMarker(kind)}
	var out []string
	out = append(out, lines[:insertAt]...)
	out = append(out, block...)
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n"), nil
}

// findAnchorLine returns the line index to insert at, honoring
// anchor.Position relative to the first matching line.
func findAnchorLine(lines []string, anchor Anchor) (int, bool) {
	if anchor.Pattern == nil {
		return 0, false
	}
	for i, line := range lines {
		if anchor.Pattern.MatchString(line) {
			if anchor.Position == PositionBefore {
				return i, true
			}
			return i + 1, true
		}
	}
	return 0, false
}
