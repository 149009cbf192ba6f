package kernel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskmesh/orchestrator/internal/session"
	"github.com/taskmesh/orchestrator/internal/signal"
	"github.com/taskmesh/orchestrator/internal/taskid"
)

// plannerSessionID names the single, non-parallel planner session: there is
// exactly one planner per `plan` invocation, never one per task.
const plannerSessionID = "plan"

// GeneratePlan spawns a planner session to turn a natural-language request
// into a plan file at outputPath, waits for its done signal, and returns the
// plan's raw bytes. The planner's own reasoning about what tasks to emit is
// out of scope here: this method owns only the orchestration-level
// spawn/verify/wait/collect protocol, identical in shape to RunTask's worker
// spawn but against a fixed session rather than one per task.
func (k *Kernel) GeneratePlan(ctx context.Context, request, outputPath string) ([]byte, error) {
	id, err := taskid.Parse(plannerSessionID)
	if err != nil {
		return nil, err
	}

	promptDir := filepath.Join(k.root, ".orchestrator", "prompts")
	if err := os.MkdirAll(promptDir, 0o755); err != nil {
		return nil, fmt.Errorf("create prompts dir: %w", err)
	}
	promptFile := filepath.Join(promptDir, "plan-request.txt")
	content := fmt.Sprintf(
		"Produce a task plan for the following request.\nWrite the plan as YAML to %s per the plan schema.\nSignal done at %s when finished.\n\nRequest: %s\n",
		outputPath, filepath.Join(k.root, ".orchestrator", "signals", plannerSessionID+".done"), request,
	)
	if err := os.WriteFile(promptFile, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write planner prompt: %w", err)
	}

	if err := k.sup.Spawn(ctx, id, session.RolePlanner, k.root, promptFile, k.cfg.Orchestration.HeapSizeMB); err != nil {
		return nil, fmt.Errorf("spawn planner session: %w", err)
	}
	if err := k.sup.VerifyStarted(ctx, id, session.RolePlanner); err != nil {
		return nil, fmt.Errorf("verify planner started: %w", err)
	}

	if _, err := k.sig.WaitFor(ctx, plannerSessionID, signal.KindDone, session.PollInterval); err != nil {
		return nil, fmt.Errorf("wait for planner: %w", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read generated plan: %w", err)
	}
	return data, nil
}
