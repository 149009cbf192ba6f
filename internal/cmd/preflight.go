package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// preflightCheck is one named, independently-reportable readiness check.
type preflightCheck struct {
	Name string
	Run  func() error
}

// NewPreflightCommand implements `preflight`: every check named in
// spec.md's Preflight section, run independently so one failure doesn't
// hide the others. Exit code 1 if any check fails.
func NewPreflightCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check that the environment is ready to run `plan`",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			checks := []preflightCheck{
				{"multiplexer available", checkTmux},
				{"agent launcher resolvable on PATH", checkLauncher},
				{"inside a git repository", checkGitRepo},
				{"YAML parser available", checkYAML},
				{"heap/ulimit advisory", checkUlimit},
			}

			allPassed := true
			for _, c := range checks {
				if err := c.Run(); err != nil {
					fmt.Fprintf(w, "FAIL  %s: %v\n", c.Name, err)
					allPassed = false
				} else {
					fmt.Fprintf(w, "OK    %s\n", c.Name)
				}
			}
			if !allPassed {
				return exitWithCode(1)
			}
			return nil
		},
	}
	return cmd
}

func checkTmux() error {
	if _, err := exec.LookPath("tmux"); err != nil {
		return fmt.Errorf("tmux not found on PATH")
	}
	return nil
}

func checkLauncher() error {
	_, err := resolveLauncherPath()
	return err
}

func checkGitRepo() error {
	if _, err := exec.Command("git", "rev-parse", "--is-inside-work-tree").CombinedOutput(); err != nil {
		return fmt.Errorf("not inside a git repository")
	}
	return nil
}

func checkYAML() error {
	// gopkg.in/yaml.v3 is compiled into this binary; its presence is a
	// build-time guarantee, not a runtime probe.
	return nil
}

func checkUlimit() error {
	if runtime.GOOS == "windows" {
		return nil
	}
	out, err := exec.Command("sh", "-c", "ulimit -n").CombinedOutput()
	if err != nil {
		return nil // advisory only; never block preflight on a shell quirk
	}
	limit := strings.TrimSpace(string(out))
	if limit == "unlimited" {
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(limit, "%d", &n); err == nil && n < 1024 {
		fmt.Fprintf(os.Stderr, "advisory: open-file ulimit %d is low for many concurrent worktrees\n", n)
	}
	return nil
}
