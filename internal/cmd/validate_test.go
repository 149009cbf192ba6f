package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanYAML = `
request: add login endpoint
tasks:
  - id: a
    description: write handler
    files_write: [src/a.py]
    verification:
      - { command: "echo ok", type: test, required: true }
`

func TestValidateCommandAcceptsValidPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPlanYAML), 0o644))

	cmd := NewValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "valid: 1 task(s)")
}

func TestValidateCommandReportsPlanInvalidErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("request: nothing\ntasks: []\n"), 0o644))

	cmd := NewValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	var exitErr *ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, out.String(), "invalid:")
}

func TestValidateCommandMissingFile(t *testing.T) {
	cmd := NewValidateCommand()
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, cmd.Execute())
}

func TestValidateCommandSummaryRendersWavesAndRisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPlanYAML), 0o644))

	cmd := NewValidateCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--summary", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "valid: 1 task(s)")
	assert.Contains(t, out.String(), "#", "summary output should contain a Markdown heading")
}
