// Package integrator implements the Integrator (C10): deterministic,
// conflict-free concurrent edits to "hot files" via named regions and
// structured intents, with adapter-declared anchors for bootstrapping
// regions that don't exist yet.
package integrator

import (
	"fmt"
	"strings"
)

// RegionKind names the three region categories an action's generated output
// is routed into.
type RegionKind string

const (
	RegionImports RegionKind = "IMPORTS"
	RegionBody    RegionKind = "BODY"
	RegionConfig  RegionKind = "CONFIG"
)

func startMarker(kind RegionKind) string { return fmt.Sprintf("# === AUTO:%s ===", kind) }
func endMarker(kind RegionKind) string   { return fmt.Sprintf("# === END:%s ===", kind) }

// FindRegion locates a named region's start/end marker line indices (start
// inclusive of the marker line, end inclusive of the end-marker line) within
// content's lines. ok is false if either marker is missing.
func FindRegion(lines []string, kind RegionKind) (start, end int, ok bool) {
	start, end = -1, -1
	sm, em := startMarker(kind), endMarker(kind)
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case sm:
			start = i
		case em:
			if start != -1 {
				end = i
			}
		}
	}
	return start, end, start != -1 && end != -1 && end > start
}

// regionBody returns the lines strictly between the start and end markers.
func regionBody(lines []string, start, end int) []string {
	if end <= start+1 {
		return nil
	}
	return append([]string(nil), lines[start+1:end]...)
}

// InsertIntoRegion inserts newLines into the named region, deduplicating
// against the region's existing content by stripped-line equality (so two
// tasks emitting the same import line never duplicate it), and returns the
// full updated file content. If the region does not exist, bootstrap must be
// called first.
func InsertIntoRegion(content string, kind RegionKind, newLines []string) (string, error) {
	lines := strings.Split(content, "\n")
	start, end, ok := FindRegion(lines, kind)
	if !ok {
		return "", fmt.Errorf("region %s not present", kind)
	}
	existing := regionBody(lines, start, end)
	merged := dedupeAppend(existing, newLines)

	var out []string
	out = append(out, lines[:start+1]...)
	out = append(out, merged...)
	out = append(out, lines[end:]...)
	return strings.Join(out, "\n"), nil
}

// dedupeAppend appends each of add to base, skipping any line whose
// stripped (trimmed) form already appears in base or has already been added
// this call.
func dedupeAppend(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, l := range base {
		seen[strings.TrimSpace(l)] = true
	}
	out := append([]string(nil), base...)
	for _, l := range add {
		key := strings.TrimSpace(l)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
