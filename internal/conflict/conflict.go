// Package conflict implements the Conflict Analyzer (C3): it detects file and
// resource collisions between tasks and decides whether the plan's dependency
// graph already serializes them. Like internal/graph, it operates on plain
// id-keyed inputs so plan can depend on it without a cycle.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/taskmesh/orchestrator/internal/graph"
)

// IntentRef is the minimal shape of a patch intent conflict analysis needs:
// enough to compute implied resources without depending on plan.Intent.
type IntentRef struct {
	Action     string
	Parameters map[string]any
}

// Task is the minimal per-task input to conflict analysis.
type Task struct {
	ID             string
	FilesWrite     []string
	ResourcesWrite []string
	PatchIntents   []IntentRef
}

// Kind distinguishes the two collision classes spec.md names.
type Kind string

const (
	KindFile     Kind = "file"
	KindResource Kind = "resource"
)

// Collision is one unresolved (or resolved) collision over a single key
// (a file path or a resource identifier) among two or more tasks.
type Collision struct {
	Kind     Kind
	Key      string
	TaskIDs  []string // sorted, deterministic
	Resolved bool     // true if the tasks form a dependency chain over Key
}

// SuggestedEdge proposes serializing two tasks: Before must run before After.
// C3 never applies these automatically — a human or the planner decides.
type SuggestedEdge struct {
	Before string
	After  string
}

// Result is the full output of Analyze.
type Result struct {
	Collisions []Collision
	Suggested  []SuggestedEdge
}

// HasUnresolved reports whether any collision lacks a dependency chain,
// which per spec.md is a hard plan-validation error.
func (r Result) HasUnresolved() bool {
	for _, c := range r.Collisions {
		if !c.Resolved {
			return true
		}
	}
	return false
}

// impliedResourceMappers maps a patch intent action to the resource key it
// implies, given its parameters. Unknown actions imply nothing: an adapter
// that introduces a new action without registering here simply contributes
// no conflict signal for it, rather than failing analysis.
var impliedResourceMappers = map[string]func(params map[string]any) (string, bool){
	"add_router": func(p map[string]any) (string, bool) {
		return impliedKey("route", p, "prefix")
	},
	"register_route": func(p map[string]any) (string, bool) {
		return impliedKey("route", p, "prefix", "path")
	},
	"add_di_binding": func(p map[string]any) (string, bool) {
		return impliedKey("di", p, "name")
	},
	"register_provider": func(p map[string]any) (string, bool) {
		return impliedKey("di", p, "name")
	},
	"set_config_key": func(p map[string]any) (string, bool) {
		return impliedKey("config", p, "key")
	},
	"add_middleware": func(p map[string]any) (string, bool) {
		return impliedKey("middleware", p, "class", "name")
	},
}

// impliedKey extracts the first present string parameter from candidates and
// formats it as "<kind>:<value>".
func impliedKey(kind string, params map[string]any, candidates ...string) (string, bool) {
	for _, c := range candidates {
		if v, ok := params[c]; ok {
			if s, ok := v.(string); ok && s != "" {
				return fmt.Sprintf("%s:%s", kind, s), true
			}
		}
	}
	return "", false
}

// ImpliedResources returns the resource keys a single intent implies.
func ImpliedResources(intent IntentRef) []string {
	mapper, ok := impliedResourceMappers[intent.Action]
	if !ok {
		return nil
	}
	key, ok := mapper(intent.Parameters)
	if !ok {
		return nil
	}
	return []string{key}
}

// claimedResources is the union of a task's explicit resources_write and the
// implied resources of its patch_intents.
func claimedResources(t Task) []string {
	set := map[string]bool{}
	for _, r := range t.ResourcesWrite {
		set[r] = true
	}
	for _, intent := range t.PatchIntents {
		for _, r := range ImpliedResources(intent) {
			set[r] = true
		}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Analyze detects file and resource collisions across tasks and classifies
// each as resolved (the colliding tasks form a single dependency chain per
// graph.OrderedInChain) or unresolved (reported as a plan error upstream).
func Analyze(tasks []Task, dependsOn map[string][]string) Result {
	fileOwners := map[string][]string{}
	resourceOwners := map[string][]string{}

	for _, t := range tasks {
		for _, f := range t.FilesWrite {
			fileOwners[f] = append(fileOwners[f], t.ID)
		}
		for _, r := range claimedResources(t) {
			resourceOwners[r] = append(resourceOwners[r], t.ID)
		}
	}

	var result Result
	emit := func(kind Kind, key string, owners []string) {
		if len(owners) < 2 {
			return
		}
		ids := dedupeSorted(owners)
		resolved := graph.OrderedInChain(ids, dependsOn)
		result.Collisions = append(result.Collisions, Collision{
			Kind: kind, Key: key, TaskIDs: ids, Resolved: resolved,
		})
		if !resolved {
			result.Suggested = append(result.Suggested, suggestChain(ids)...)
		}
	}

	for _, key := range sortedKeys(fileOwners) {
		emit(KindFile, key, fileOwners[key])
	}
	for _, key := range sortedKeys(resourceOwners) {
		emit(KindResource, key, resourceOwners[key])
	}

	sort.Slice(result.Collisions, func(i, j int) bool {
		if result.Collisions[i].Kind != result.Collisions[j].Kind {
			return result.Collisions[i].Kind < result.Collisions[j].Kind
		}
		return result.Collisions[i].Key < result.Collisions[j].Key
	})
	return result
}

// suggestChain proposes edges (task[i+1] -> depends on -> task[i]) that would
// serialize an unresolved collision set in id order.
func suggestChain(ids []string) []SuggestedEdge {
	edges := make([]SuggestedEdge, 0, len(ids)-1)
	for i := 0; i+1 < len(ids); i++ {
		edges = append(edges, SuggestedEdge{Before: ids[i], After: ids[i+1]})
	}
	return edges
}

func dedupeSorted(in []string) []string {
	set := map[string]bool{}
	for _, s := range in {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Summary renders a one-line human-readable description of a collision, used
// by the plan validator's error aggregation.
func (c Collision) Summary() string {
	status := "unresolved"
	if c.Resolved {
		status = "resolved by dependency chain"
	}
	return fmt.Sprintf("%s conflict on %q among tasks [%s] (%s)", c.Kind, c.Key, strings.Join(c.TaskIDs, ", "), status)
}
