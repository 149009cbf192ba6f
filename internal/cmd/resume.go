package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/state"
)

// NewResumeCommand implements `resume [--dry-run] [--force]`: reloads the
// plan an interrupted orchestration was executing from its persisted path
// and continues from the last consistent state.
func NewResumeCommand() *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted orchestration",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			k, _, err := buildKernel(verbose)
			if err != nil {
				return err
			}
			defer k.Close()

			root, err := os.Getwd()
			if err != nil {
				return err
			}
			store := state.New(root)
			if !store.Exists() {
				return fmt.Errorf("no orchestration state at %s to resume", store.Path())
			}
			st, err := store.Load()
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}
			if st.PlanPath == "" {
				return fmt.Errorf("state file has no recorded plan path; cannot resume")
			}

			source, err := os.ReadFile(st.PlanPath)
			if err != nil {
				return fmt.Errorf("read persisted plan %s: %w", st.PlanPath, err)
			}
			format := plan.FormatYAML
			if strings.HasSuffix(st.PlanPath, ".json") {
				format = plan.FormatJSON
			}
			p, _, err := plan.Parse(source, format)
			if err != nil {
				return fmt.Errorf("parse persisted plan: %w", err)
			}

			result, err := k.Resume(context.Background(), p, st.Environment.Hash, dryRun, force)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(result.Interrupted) == 0 {
				fmt.Fprintln(w, "no interrupted tasks found")
				return nil
			}
			fmt.Fprintf(w, "interrupted tasks: %v\n", result.Interrupted)
			for id, branch := range result.RecoveryBranch {
				fmt.Fprintf(w, "  %s: uncommitted work saved to %s\n", id, branch)
			}
			if dryRun {
				fmt.Fprintln(w, "dry run: no changes made")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be resumed without mutating state")
	cmd.Flags().BoolVar(&force, "force", false, "discard uncommitted worker work instead of saving a recovery branch")
	return cmd
}
