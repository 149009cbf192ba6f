// Package main provides the CLI entry point for the orchestrator.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/taskmesh/orchestrator/internal/cmd"
)

func main() {
	root := cmd.NewRootCommand()

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *cmd.ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
