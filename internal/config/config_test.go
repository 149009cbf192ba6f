package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/config"
)

func TestLoadConfigReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Orchestration.MaxIterations)
	assert.Equal(t, 500, cfg.Boundaries.ChurnThreshold)
	assert.False(t, cfg.Approval.AutoApprove)
}

func TestLoadConfigOverlaysOnlyPresentSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("approval:\n  auto_approve: true\n  risk_threshold: 10\n"), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Approval.AutoApprove)
	assert.Equal(t, 10.0, cfg.Approval.RiskThreshold)
	// boundaries section was absent: defaults must survive untouched
	assert.Equal(t, 500, cfg.Boundaries.ChurnThreshold)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("approval: [this is not a map"), 0o644))

	_, err := config.LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroMaxIterations(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Orchestration.MaxIterations = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeConfidence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PatchIntents.MinApplicabilityConfidence = 1.5
	assert.Error(t, cfg.Validate())
}

func TestConsoleEnvOverrideTakesPrecedence(t *testing.T) {
	t.Setenv("ORCHESTRATOR_CONSOLE_COLOR", "0")
	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, cfg.Console.EnableColor)
}

func TestLoadConfigFromRootJoinsOrchestratorYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".orchestrator.yaml"), []byte("log_level: debug\n"), 0o644))

	cfg, err := config.LoadConfigFromRoot(root)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}
