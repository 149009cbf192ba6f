package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand assembles the orchestrator's root cobra command and every
// subcommand named in spec.md's External Interfaces section.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Multi-agent task orchestration kernel",
		Long: `orchestrator drives a validated task plan through environment setup,
dependency-ordered wave execution across detached agent sessions,
per-task verification, worktree merge, and a final stabilization gate.

A plan is produced by "plan", inspected with "status", and can be
replayed safely after an interruption with "resume".`,
		Version:      Version,
		SilenceUsage: true,
	}

	root.PersistentFlags().Bool("verbose", false, "show trace-level logging")

	root.AddCommand(
		NewPlanCommand(),
		NewValidateCommand(),
		NewStatusCommand(),
		NewAbortCommand(),
		NewCleanupCommand(),
		NewWorktreesCommand(),
		NewInitCommand(),
		NewResumeCommand(),
		NewPreflightCommand(),
	)
	return root
}
