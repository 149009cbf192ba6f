package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/taskmesh/orchestrator/internal/config"
)

// NewInitCommand implements `init [path]`: scaffolds a default
// .orchestrator.yaml at path (or the current directory), refusing to
// overwrite an existing one.
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Scaffold a default .orchestrator.yaml in the target directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			path := filepath.Join(dir, ".orchestrator.yaml")
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists; remove it first if you want to re-init", path)
			}

			data, err := yaml.Marshal(config.DefaultConfig())
			if err != nil {
				return fmt.Errorf("marshal default config: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	return cmd
}
