package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersEverySubcommand(t *testing.T) {
	root := NewRootCommand()
	require.Equal(t, "orchestrator", root.Use)

	want := []string{"plan", "validate", "status", "abort", "cleanup", "worktrees", "init", "resume", "preflight"}
	got := make(map[string]bool, len(want))
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing subcommand %q", name)
	}
}

func TestRootCommandHasVerboseFlag(t *testing.T) {
	root := NewRootCommand()
	flag := root.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
