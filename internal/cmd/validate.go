package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmesh/orchestrator/internal/graph"
	"github.com/taskmesh/orchestrator/internal/plan"
	"github.com/taskmesh/orchestrator/internal/risk"
)

// NewValidateCommand implements `validate <tasks.yaml>`: parse the plan
// file, run phase 1's schema/cycle/conflict checks, and print every error
// at once per spec.md §7's PlanInvalid policy (fail before any side
// effect; surface all errors together, not one at a time).
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <tasks.yaml>",
		Short: "Parse and validate a plan file without executing it",
		Long: `Checks a plan file for:
  - schema errors (missing required fields, malformed entries)
  - dependency cycles
  - file-write conflicts between parallel tasks
  - missing or empty verification commands

Exit code: 0 if valid, 1 if errors found.`,
		Args: cobra.ExactArgs(1),
	}
	var printSummary bool
	cmd.Flags().BoolVar(&printSummary, "summary", false, "print a Markdown wave/risk summary of the plan")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd, args[0], printSummary)
	}
	return cmd
}

func runValidate(cmd *cobra.Command, path string, printSummary bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plan file: %w", err)
	}

	format := plan.FormatYAML
	if strings.HasSuffix(path, ".json") {
		format = plan.FormatJSON
	}

	w := cmd.OutOrStdout()
	p, warnings, err := plan.Parse(data, format)
	if err != nil {
		fmt.Fprintf(w, "invalid: %v\n", err)
		return exitWithCode(1)
	}
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Message)
	}

	fmt.Fprintf(w, "valid: %d task(s), %d contract(s)\n", len(p.Tasks), len(p.Contracts))

	if printSummary {
		ids := make([]string, len(p.Tasks))
		deps := make(map[string][]string, len(p.Tasks))
		for i, t := range p.Tasks {
			ids[i] = t.ID
			deps[t.ID] = t.DependsOn
		}
		waves, err := graph.Waves(ids, deps)
		if err != nil {
			return fmt.Errorf("compute wave schedule: %w", err)
		}
		result := risk.Score(riskInputFromPlan(p), risk.DefaultConfig())
		fmt.Fprintln(w)
		fmt.Fprint(w, plan.RenderSummaryMarkdown(p, waves, result.AutoApprove, result.Score))
	}
	return nil
}

// riskInputFromPlan mirrors kernel.riskInput without importing internal/kernel
// (the CLI layer stays a consumer of plan/risk directly for this
// preview-only summary, never of the kernel package's execution state).
func riskInputFromPlan(p plan.Plan) risk.Input {
	allPaths := make([]string, 0, p.TotalFiles())
	tasksWithoutTest := 0
	newDeps := 0
	for _, t := range p.Tasks {
		allPaths = append(allPaths, t.FilesWrite...)
		if !t.HasTestCheck() {
			tasksWithoutTest++
		}
		newDeps += len(t.DepsRequired.Runtime) + len(t.DepsRequired.Dev)
	}
	return risk.Input{
		AllFilePaths:        allPaths,
		TaskCount:           len(p.Tasks),
		TotalFiles:          p.TotalFiles(),
		TotalPatchIntents:   p.TotalPatchIntents(),
		ContractCount:       len(p.Contracts),
		NewRuntimeDepsCount: newDeps,
		TasksWithoutTest:    tasksWithoutTest,
	}
}
