package kernel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskmesh/orchestrator/internal/config"
	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/state"
)

// installTimeout bounds each ecosystem's install command.
const installTimeout = 5 * time.Minute

// InstallEnvironment implements Stage 0.5: it runs the install command of
// every ecosystem ecosystemsToInstall selects, then computes the environment
// hash and returns it for the caller to persist in state. No worker may spawn
// before this completes.
func (k *Kernel) InstallEnvironment(ctx context.Context, p plan.Plan) (state.Environment, error) {
	for _, eco := range ecosystemsToInstall(k.cfg.Dependencies.Ecosystems, p, k.root) {
		k.log.LogInfo(fmt.Sprintf("stage 0.5: installing %s dependencies (%s)", eco.Name, eco.InstallCommand))
		if err := runInstallCommand(ctx, k.root, eco.InstallCommand); err != nil {
			return state.Environment{}, fmt.Errorf("install %s dependencies: %w", eco.Name, err)
		}
	}

	env, err := k.computeEnvironmentHash()
	if err != nil {
		return state.Environment{}, err
	}
	env.RecordedAt = time.Now().UTC().Format(time.RFC3339)
	return env, nil
}

// ecosystemsToInstall selects the configured ecosystems with an install
// command whose lockfile already exists in the repo. When any task in the
// plan declares deps_required, every configured ecosystem with an install
// command is selected; declared packages are not matched to an ecosystem.
func ecosystemsToInstall(ecosystems []config.EcosystemConfig, p plan.Plan, root string) []config.EcosystemConfig {
	needsNewDeps := false
	for _, t := range p.Tasks {
		if len(t.DepsRequired.Runtime) > 0 || len(t.DepsRequired.Dev) > 0 {
			needsNewDeps = true
			break
		}
	}

	var selected []config.EcosystemConfig
	for _, eco := range ecosystems {
		if eco.InstallCommand == "" {
			continue
		}
		if lockfilePresent(root, eco.LockfileName) || needsNewDeps {
			selected = append(selected, eco)
		}
	}
	return selected
}

func runInstallCommand(ctx context.Context, dir, command string) error {
	ctx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command %q failed: %w (output: %s)", command, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func lockfilePresent(root, name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(root, name))
	return err == nil
}
