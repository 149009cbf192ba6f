package plan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/taskmesh/orchestrator/internal/conflict"
	"github.com/taskmesh/orchestrator/internal/graph"
	"github.com/taskmesh/orchestrator/internal/kernelerr"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// Validate runs every hard-error check spec.md §4.1 names, collecting all of
// them before returning, so a planner sees every problem at once instead of
// fixing them one at a time. Soft warnings are returned alongside a nil error
// only when no hard error exists.
func Validate(p Plan) ([]Warning, error) {
	var errs []string

	if len(p.Tasks) == 0 {
		errs = append(errs, "tasks list is absent or empty")
		return nil, &kernelerr.PlanInvalidError{Errors: errs}
	}

	seen := make(map[string]bool, len(p.Tasks))
	ids := make([]string, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" {
			errs = append(errs, "a task is missing its id")
			continue
		}
		if !taskid.Valid(t.ID) {
			errs = append(errs, fmt.Sprintf("task %q has an id that does not match the safe pattern", t.ID))
			continue
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate task id %q", t.ID))
			continue
		}
		seen[t.ID] = true
		ids = append(ids, t.ID)
	}

	for _, t := range p.Tasks {
		if !seen[t.ID] {
			continue
		}
		if len(t.FilesWrite) == 0 {
			errs = append(errs, fmt.Sprintf("task %q has missing or empty files_write", t.ID))
		}
		if len(t.Verification) == 0 {
			errs = append(errs, fmt.Sprintf("task %q has empty verification (every task must have at least one check)", t.ID))
		}
		for i, c := range t.Verification {
			if c.Command == "" {
				errs = append(errs, fmt.Sprintf("task %q verification entry %d is missing a command", t.ID, i))
			}
		}
	}

	dependsOn := make(map[string][]string, len(p.Tasks))
	for _, t := range p.Tasks {
		if !seen[t.ID] {
			continue
		}
		dependsOn[t.ID] = t.DependsOn
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				errs = append(errs, fmt.Sprintf("task %q depends_on unknown task %q", t.ID, dep))
			}
		}
	}

	// Only attempt graph-shape checks once every id reference resolves;
	// otherwise a cycle search over a partially-known id set is meaningless.
	if allDepsKnown(dependsOn, seen) {
		if err := graph.Validate(ids, dependsOn); err != nil {
			var cyc *graph.CycleError
			if errors.As(err, &cyc) {
				errs = append(errs, fmt.Sprintf("dependency cycle: %v", cyc.Cycle))
			} else {
				errs = append(errs, err.Error())
			}
		} else {
			result := conflict.Analyze(toConflictTasks(p.Tasks, seen), dependsOn)
			for _, c := range result.Collisions {
				if !c.Resolved {
					errs = append(errs, c.Summary())
				}
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, &kernelerr.PlanInvalidError{Errors: errs}
	}

	return collectWarnings(p), nil
}

func allDepsKnown(dependsOn map[string][]string, seen map[string]bool) bool {
	for _, deps := range dependsOn {
		for _, d := range deps {
			if !seen[d] {
				return false
			}
		}
	}
	return true
}

func toConflictTasks(tasks []Task, seen map[string]bool) []conflict.Task {
	out := make([]conflict.Task, 0, len(tasks))
	for _, t := range tasks {
		if !seen[t.ID] {
			continue
		}
		refs := make([]conflict.IntentRef, 0, len(t.PatchIntents))
		for _, intent := range t.PatchIntents {
			refs = append(refs, conflict.IntentRef{Action: intent.Action, Parameters: intent.Parameters})
		}
		out = append(out, conflict.Task{
			ID:             t.ID,
			FilesWrite:     t.FilesWrite,
			ResourcesWrite: t.ResourcesWrite,
			PatchIntents:   refs,
		})
	}
	return out
}

// collectWarnings surfaces soft issues that never block the plan: no tests
// among a task's checks (the risk scorer's signal), and a large file count.
func collectWarnings(p Plan) []Warning {
	var warnings []Warning
	for _, t := range p.Tasks {
		if !t.HasTestCheck() {
			warnings = append(warnings, Warning{TaskID: t.ID, Message: "no test-type check among verification entries"})
		}
	}
	if p.TotalFiles() > 10 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("large plan: %d total files written across all tasks", p.TotalFiles())})
	}
	return warnings
}
