package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/taskmesh/orchestrator/internal/config"
	"github.com/taskmesh/orchestrator/internal/history"
	"github.com/taskmesh/orchestrator/internal/state"
)

// statusView is the JSON shape printed by `status --json`.
type statusView struct {
	RequestID       string                       `json:"request_id"`
	OriginalRequest string                        `json:"original_request"`
	CurrentPhase    string                        `json:"current_phase"`
	Iteration       int                           `json:"iteration"`
	Tasks           map[string]state.TaskRecord   `json:"tasks"`
}

// NewStatusCommand implements `status [--json]`: reports the current
// orchestration's in-progress state, or that none is running.
func NewStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current orchestration's state",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			store := state.New(root)
			w := cmd.OutOrStdout()

			if !store.Exists() {
				if asJSON {
					fmt.Fprintln(w, `{"active":false}`)
				} else {
					fmt.Fprintln(w, "no orchestration in progress")
				}
				return printRecentHistory(cmd)
			}

			st, err := store.Load()
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(statusView{
					RequestID: st.RequestID, OriginalRequest: st.OriginalRequest,
					CurrentPhase: st.CurrentPhase, Iteration: st.Iteration, Tasks: st.Tasks,
				})
			}

			fmt.Fprintf(w, "request:  %s\n", st.RequestID)
			fmt.Fprintf(w, "phase:    %s (iteration %d)\n", st.CurrentPhase, st.Iteration)
			ids := make([]string, 0, len(st.Tasks))
			for id := range st.Tasks {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				rec := st.Tasks[id]
				line := fmt.Sprintf("  %-20s %s", id, rec.Status)
				if rec.Error != "" {
					line += fmt.Sprintf(" (%s)", rec.Error)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output machine-readable JSON")
	return cmd
}

// printRecentHistory lists the last few completed runs from the ledger when
// no orchestration is currently in progress.
func printRecentHistory(cmd *cobra.Command) error {
	dbPath, err := config.GetHistoryDBPath()
	if err != nil {
		return nil
	}
	hist, err := history.Open(dbPath)
	if hist == nil || err != nil {
		return nil
	}
	defer hist.Close()

	runs, err := hist.RecentRuns(context.Background(), 5)
	if err != nil || len(runs) == 0 {
		return nil
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "\nrecent runs:")
	for _, r := range runs {
		fmt.Fprintf(w, "  %-20s %d/%d merged, stabilize=%v\n", r.RequestID, r.Merged, r.TotalTasks, r.StabilizePassed)
	}
	return nil
}
