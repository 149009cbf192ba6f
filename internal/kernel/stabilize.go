package kernel

import (
	"context"
	"fmt"

	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/verify"
)

// stabilize implements phase 6: after the last wave merges, run the union of
// every merged task's required verification checks once more against the integrated
// main branch. A task-local check passing in isolation says nothing about
// whether two tasks' merged changes still pass together; this gate is what
// catches that.
func (k *Kernel) stabilize(ctx context.Context, p plan.Plan, mergedIDs []string) (verify.RunResult, bool) {
	checks := dedupChecks(p, mergedIDs)
	if len(checks) == 0 {
		return verify.RunResult{}, true
	}

	result := verify.RunChecks(ctx, k.root, checks, nil, true)
	if result.Passed() {
		k.log.LogInfo("stabilization gate passed")
	} else {
		k.log.LogError(fmt.Sprintf("stabilization gate failed: %s", result.FailedAt))
	}
	return result, result.Passed()
}

// dedupChecks collects every merged task's required verification commands,
// deduplicated by command string so a check shared across tasks runs once.
func dedupChecks(p plan.Plan, mergedIDs []string) []plan.Check {
	seen := make(map[string]bool)
	var out []plan.Check
	for _, id := range mergedIDs {
		t, ok := p.TaskByID(id)
		if !ok {
			continue
		}
		for _, c := range t.Verification {
			if !c.Required || seen[c.Command] {
				continue
			}
			seen[c.Command] = true
			out = append(out, c)
		}
	}
	return out
}
