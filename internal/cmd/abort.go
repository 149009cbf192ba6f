package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewAbortCommand implements `abort [--force]`: tears down every session
// and worktree belonging to the current orchestration and deletes its
// state file.
func NewAbortCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "abort",
		Short: "Abort the current orchestration, tearing down sessions and worktrees",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			k, _, err := buildKernel(verbose)
			if err != nil {
				return err
			}
			defer k.Close()

			branches, err := k.Abort(context.Background(), force)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "orchestration aborted")
			for _, b := range branches {
				fmt.Fprintf(w, "  uncommitted work saved to branch %s\n", b)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "discard uncommitted worker work instead of saving a recovery branch")
	return cmd
}
