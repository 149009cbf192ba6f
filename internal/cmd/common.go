// Package cmd implements the orchestrator's CLI surface (spec.md's External
// Interfaces section): plan, status, validate, abort, cleanup, worktrees,
// init, resume, preflight. Each subcommand is a thin cobra wrapper around
// internal/kernel; the actual orchestration logic lives there.
package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/taskmesh/orchestrator/internal/config"
	"github.com/taskmesh/orchestrator/internal/history"
	"github.com/taskmesh/orchestrator/internal/kernel"
	"github.com/taskmesh/orchestrator/internal/klog"
)

// ExitCodeError carries a specific process exit code through cobra's
// error-return path. main.go checks for it instead of the blanket exit-1 a
// plain error would produce, so TaskBlocked can surface spec.md's exit
// code 2.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitCodeError) Unwrap() error { return e.Err }

// exitWithCode returns nil for code 0, otherwise an *ExitCodeError carrying
// it through cobra's RunE return path.
func exitWithCode(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitCodeError{Code: code}
}

// printRunReport prints a kernel.RunReport summary in the teacher's
// LogSummary style.
func printRunReport(cmd *cobra.Command, report kernel.RunReport) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nRun summary (%s):\n", report.RequestID)
	fmt.Fprintf(w, "  merged:   %d\n", len(report.Merged))
	fmt.Fprintf(w, "  failed:   %d\n", len(report.Failed))
	fmt.Fprintf(w, "  blocked:  %d\n", len(report.Blocked))
	fmt.Fprintf(w, "  iterations: %d\n", report.Iterations)
	fmt.Fprintf(w, "  stabilize passed: %v\n", report.StabilizePassed)
	if len(report.Blocked) > 0 {
		fmt.Fprintf(w, "  blocked tasks: %v\n", report.Blocked)
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(w, "  failed tasks: %v\n", report.Failed)
	}
}

// AgentLauncherEnv names the environment variable overriding the agent
// launcher binary name, resolved once per spec.md §4.7 rather than sourcing
// shell profiles.
const AgentLauncherEnv = "ORCHESTRATOR_AGENT_LAUNCHER"

// DefaultAgentLauncher is the binary name resolved on PATH when
// ORCHESTRATOR_AGENT_LAUNCHER is unset.
const DefaultAgentLauncher = "claude"

// resolveLauncherPath resolves the agent launcher's absolute path once, per
// C7's spawning protocol. Never falls back to sourcing shell profiles.
func resolveLauncherPath() (string, error) {
	name := os.Getenv(AgentLauncherEnv)
	if name == "" {
		name = DefaultAgentLauncher
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("agent launcher %q not found on PATH: %w", name, err)
	}
	return path, nil
}

// newConsoleLogger builds the default klog.Logger for interactive CLI use.
func newConsoleLogger(cfg *config.Config, verbose bool) klog.Logger {
	level := cfg.LogLevel
	if verbose {
		level = "trace"
	}
	return klog.NewConsoleLogger(os.Stdout, level, cfg.Console.EnableColor)
}

// openHistory opens the run-history ledger at its standard location. A
// failure to open history is never fatal to a CLI command: it degrades to
// recording nothing, with a warning on stderr.
func openHistory() *history.Store {
	dbPath, err := config.GetHistoryDBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		return nil
	}
	store, err := history.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: history unavailable: %v\n", err)
		return nil
	}
	return store
}

// buildKernel assembles a Kernel rooted at the current working directory
// using the project's .orchestrator.yaml config, the default console
// logger, and the resolved agent launcher.
func buildKernel(verbose bool) (*kernel.Kernel, *config.Config, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.LoadConfigFromRoot(root)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	launcherPath, err := resolveLauncherPath()
	if err != nil {
		return nil, nil, err
	}
	log := newConsoleLogger(cfg, verbose)
	hist := openHistory()
	return kernel.New(root, cfg, log, launcherPath, hist), cfg, nil
}

// exitCodeFor maps an orchestration outcome to spec.md's CLI exit codes:
// 0 success, 1 general failure, 2 task blocked needing human intervention.
func exitCodeFor(blocked []string, err error) int {
	if err != nil {
		return 1
	}
	if len(blocked) > 0 {
		return 2
	}
	return 0
}
