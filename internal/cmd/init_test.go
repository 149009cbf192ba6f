package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/taskmesh/orchestrator/internal/config"
)

func TestInitCommandScaffoldsDefaultConfig(t *testing.T) {
	dir := t.TempDir()

	cmd := NewInitCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{dir})

	require.NoError(t, cmd.Execute())

	path := filepath.Join(dir, ".orchestrator.yaml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Contains(t, out.String(), path)
}

func TestInitCommandRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".orchestrator.yaml"), []byte("request: x\n"), 0o644))

	cmd := NewInitCommand()
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitCommandCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "project")

	cmd := NewInitCommand()
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())

	_, err := os.Stat(filepath.Join(dir, ".orchestrator.yaml"))
	require.NoError(t, err)
}
