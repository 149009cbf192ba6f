package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskmesh/orchestrator/internal/plan"
)

// NewPlanCommand implements `plan <request>`: spawn a planner session,
// collect the plan file it produces, run the risk gate, and either execute
// immediately (auto-approved or --yes) or print the verdict and stop.
func NewPlanCommand() *cobra.Command {
	var yes bool
	var outputPath string

	cmd := &cobra.Command{
		Use:   "plan <request>",
		Short: "Generate and optionally execute a task plan from a natural-language request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			k, _, err := buildKernel(verbose)
			if err != nil {
				return err
			}
			defer k.Close()

			if outputPath == "" {
				outputPath = filepath.Join(".orchestrator", "plans", "generated-plan.yaml")
			}

			ctx := context.Background()
			source, err := k.GeneratePlan(ctx, args[0], outputPath)
			if err != nil {
				return fmt.Errorf("generate plan: %w", err)
			}

			prepared, err := k.PreparePlan(source, plan.FormatYAML)
			if err != nil {
				return fmt.Errorf("prepared plan invalid: %w", err)
			}
			for _, w := range prepared.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w.Message)
			}
			fmt.Fprint(cmd.OutOrStdout(), plan.RenderSummaryMarkdown(prepared.Plan, prepared.Waves, prepared.Risk.AutoApprove, prepared.Risk.Score))

			if !prepared.Risk.AutoApprove && !yes {
				fmt.Fprintln(cmd.OutOrStdout(), "plan requires approval; re-run with --yes to execute")
				return nil
			}

			report, err := k.Run(ctx, source, plan.FormatYAML, yes)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			printRunReport(cmd, report)
			return exitWithCode(exitCodeFor(report.Blocked, nil))
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "execute immediately without interactive approval")
	cmd.Flags().StringVar(&outputPath, "output", "", "path the planner session writes its plan to")
	return cmd
}
