package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskmesh/orchestrator/internal/worktree"
)

// NewCleanupCommand implements `cleanup [--force]`: prunes git's worktree
// bookkeeping and removes directories under .worktrees/ that git no longer
// lists as worktrees (worktree.Manager.CleanupStale). Worktrees git still
// lists are left in place, and --force does not change what is removed.
func NewCleanupCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale worktrees from a prior orchestration",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			mgr := worktree.New(root)
			if err := mgr.CleanupStale(context.Background()); err != nil {
				return fmt.Errorf("cleanup stale worktrees: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stale worktrees removed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "accepted; does not change what cleanup removes")
	return cmd
}
