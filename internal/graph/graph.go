// Package graph implements the DAG engine over a plan's task dependency
// relation: cycle detection, wave-based topological layering, critical path,
// and the "is this subset a linear chain" predicate C3 needs. It operates on
// plain ids and a dependency map rather than plan.Task, so it has no import
// dependency on the plan package — plan adapts its Tasks into this shape.
package graph

import (
	"fmt"
	"sort"
)

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota
	gray
	black
)

// CycleError reports a dependency cycle, reconstructed via the DFS parent
// chain so callers can show the exact offending loop.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Cycle)
}

// UnknownDependencyError reports a depends_on reference to an id not present
// in the task set.
type UnknownDependencyError struct {
	TaskID       string
	UnknownDepID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.UnknownDepID)
}

// Validate checks that every dependency reference is known and that the
// induced graph is acyclic. ids must be the complete, deduplicated id set;
// dependsOn maps each id to the ids it depends on.
func Validate(ids []string, dependsOn map[string][]string) error {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	for id, deps := range dependsOn {
		for _, dep := range deps {
			if !known[dep] {
				return &UnknownDependencyError{TaskID: id, UnknownDepID: dep}
			}
		}
	}
	if cyc := findCycle(ids, dependsOn); cyc != nil {
		return &CycleError{Cycle: cyc}
	}
	return nil
}

// findCycle runs three-color DFS over the "depends on" edges and, on a back
// edge, reconstructs the cycle from the active parent chain.
func findCycle(ids []string, dependsOn map[string][]string) []string {
	colors := make(map[string]color, len(ids))
	parent := make(map[string]string, len(ids))
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		deps := append([]string(nil), dependsOn[id]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if dep == id {
				cycle = []string{id, id}
				return true
			}
			switch colors[dep] {
			case gray:
				cycle = reconstructCycle(parent, id, dep)
				return true
			case white:
				parent[dep] = id
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for _, id := range sorted {
		if colors[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

// reconstructCycle walks parent pointers from "from" back to "to" (the gray
// node the back edge points at), producing the loop in traversal order.
func reconstructCycle(parent map[string]string, from, to string) []string {
	path := []string{from}
	cur := from
	for cur != to {
		p, ok := parent[cur]
		if !ok {
			break
		}
		path = append(path, p)
		cur = p
	}
	// reverse so the cycle reads start -> ... -> start
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	path = append(path, to)
	return path
}

// Waves performs minimum-height topological layering via Kahn's algorithm:
// wave k contains every task whose dependencies all resolved in waves < k.
// Order within a wave is lexicographic by id, making the result stable and
// testable across runs on identical input.
func Waves(ids []string, dependsOn map[string][]string) ([][]string, error) {
	if err := Validate(ids, dependsOn); err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		inDegree[id] = len(dependsOn[id])
	}
	for id, deps := range dependsOn {
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	remaining := make(map[string]int, len(ids))
	for id, d := range inDegree {
		remaining[id] = d
	}

	var waves [][]string
	scheduled := 0
	for scheduled < len(ids) {
		var ready []string
		for _, id := range ids {
			if remaining[id] == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// Validate already ruled out cycles; this should be unreachable.
			return nil, fmt.Errorf("graph: no ready tasks but %d unscheduled remain", len(ids)-scheduled)
		}
		sort.Strings(ready)
		waves = append(waves, ready)
		for _, id := range ready {
			remaining[id] = -1 // mark scheduled, excluded from future "ready" scans
			scheduled++
			for _, dep := range dependents[id] {
				remaining[dep]--
			}
		}
	}
	return waves, nil
}

// CriticalPath returns the longest dependency chain (by node count) in the
// graph, as an ordered list of ids from the chain's start to its end.
func CriticalPath(ids []string, dependsOn map[string][]string) ([]string, error) {
	if err := Validate(ids, dependsOn); err != nil {
		return nil, err
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	longest := make(map[string][]string, len(ids))
	var longestFrom func(id string) []string
	memoized := make(map[string]bool, len(ids))
	longestFrom = func(id string) []string {
		if memoized[id] {
			return longest[id]
		}
		memoized[id] = true
		best := []string{id}
		deps := append([]string(nil), dependsOn[id]...)
		sort.Strings(deps)
		for _, dep := range deps {
			candidate := append(append([]string(nil), longestFrom(dep)...), id)
			if len(candidate) > len(best) {
				best = candidate
			}
		}
		longest[id] = best
		return best
	}

	var best []string
	for _, id := range sorted {
		path := longestFrom(id)
		if len(path) > len(best) {
			best = path
		}
	}
	return best, nil
}

// OrderedInChain reports whether ids forms a linear dependency chain within
// the full graph: in-degree and out-degree at most 1 when restricted to the
// subset, with exactly one start and one end. C3 uses this to decide whether
// a set of conflicting tasks is already serialized by their dependencies.
func OrderedInChain(ids []string, dependsOn map[string][]string) bool {
	if len(ids) <= 1 {
		return true
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	inDeg := make(map[string]int, len(ids))
	outDeg := make(map[string]int, len(ids))
	for _, id := range ids {
		for _, dep := range dependsOn[id] {
			if set[dep] {
				inDeg[id]++
				outDeg[dep]++
			}
		}
	}

	starts, ends := 0, 0
	for _, id := range ids {
		if inDeg[id] > 1 || outDeg[id] > 1 {
			return false
		}
		if inDeg[id] == 0 {
			starts++
		}
		if outDeg[id] == 0 {
			ends++
		}
	}
	if starts != 1 || ends != 1 {
		return false
	}

	// Walk from the start; every node must be visited exactly once, confirming
	// a single connected chain rather than disjoint chain fragments that each
	// individually satisfy the degree bounds.
	var start string
	for _, id := range ids {
		if inDeg[id] == 0 {
			start = id
			break
		}
	}
	next := make(map[string]string, len(ids))
	for _, id := range ids {
		for _, dep := range dependsOn[id] {
			if set[dep] {
				next[dep] = id
			}
		}
	}
	visited := map[string]bool{start: true}
	cur := start
	for i := 1; i < len(ids); i++ {
		n, ok := next[cur]
		if !ok || visited[n] {
			return false
		}
		visited[n] = true
		cur = n
	}
	return len(visited) == len(ids)
}
