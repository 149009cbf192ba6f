package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/worktree"
)

// NewWorktreesCommand implements `worktrees [--all]`: lists task worktrees.
// Without --all, only worktrees whose task id appears in the current
// orchestration's state file are shown; --all lists every worktree under
// .worktrees/ regardless of which run created it. When no state file exists,
// every worktree under .worktrees/ is listed even without --all.
func NewWorktreesCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "worktrees",
		Short: "List task worktrees",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			mgr := worktree.New(root)
			entries, err := mgr.List(context.Background())
			if err != nil {
				return fmt.Errorf("list worktrees: %w", err)
			}

			var known map[string]bool
			if !all {
				known = currentRunTaskIDs(root)
			}

			w := cmd.OutOrStdout()
			printed := 0
			base := filepath.Join(root, ".worktrees") + string(filepath.Separator)
			for _, e := range entries {
				if !strings.HasPrefix(e.Path, base) {
					continue
				}
				if known != nil && !known[filepath.Base(e.Path)] {
					continue
				}
				fmt.Fprintf(w, "%-30s %-12s %s\n", e.Branch, e.Head, e.Path)
				printed++
			}
			if printed == 0 {
				fmt.Fprintln(w, "no worktrees")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include worktrees from other orchestrations")
	return cmd
}

// currentRunTaskIDs returns the task ids tracked by the current
// orchestration's state file, or nil if none exists.
func currentRunTaskIDs(root string) map[string]bool {
	store := state.New(root)
	if !store.Exists() {
		return nil
	}
	st, err := store.Load()
	if err != nil {
		return nil
	}
	ids := make(map[string]bool, len(st.Tasks))
	for id := range st.Tasks {
		ids[id] = true
	}
	return ids
}
