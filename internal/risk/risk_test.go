package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmesh/orchestrator/internal/risk"
)

func TestScoreAutoApprovesSmallPlan(t *testing.T) {
	result := risk.Score(risk.Input{
		AllFilePaths: []string{"src/a.py"},
		TaskCount:    1,
		TotalFiles:   1,
	}, risk.DefaultConfig())

	assert.True(t, result.AutoApprove)
	assert.Zero(t, result.Score)
}

func TestScoreFlagsSensitivePath(t *testing.T) {
	result := risk.Score(risk.Input{
		AllFilePaths: []string{"src/auth/login.py"},
		TaskCount:    1,
		TotalFiles:   1,
	}, risk.DefaultConfig())

	assert.Equal(t, float64(25), result.Score)
	assert.True(t, result.AutoApprove)
	assert.Len(t, result.Factors, 1)
}

func TestScoreRejectsAboveThreshold(t *testing.T) {
	result := risk.Score(risk.Input{
		AllFilePaths:      []string{"src/payment/charge.py", "src/auth/session.py"},
		TaskCount:         8,
		TotalFiles:        15,
		TotalPatchIntents: 6,
		ContractCount:     5,
		TasksWithoutTest:  4,
	}, risk.DefaultConfig())

	assert.False(t, result.AutoApprove)
	assert.Greater(t, result.Score, float64(risk.DefaultThreshold))
}

func TestScoreDropsInvalidRegexWithoutFailing(t *testing.T) {
	cfg := risk.Config{
		Patterns:  []risk.PatternWeight{{Name: "broken", Pattern: "(unclosed", Weight: 99}},
		Threshold: risk.DefaultThreshold,
	}
	result := risk.Score(risk.Input{AllFilePaths: []string{"anything"}, TaskCount: 1}, cfg)

	assert.Equal(t, []string{"broken"}, result.DroppedPatterns)
	assert.Zero(t, result.Score)
}

func TestScoreFractionWithoutTestChecksRounds(t *testing.T) {
	result := risk.Score(risk.Input{
		TaskCount:        3,
		TasksWithoutTest: 1,
	}, risk.DefaultConfig())

	// 1/3 * 20 = 6.67, rounds to 7
	assert.Equal(t, float64(7), result.Score)
}

func TestScoreCustomThreshold(t *testing.T) {
	cfg := risk.DefaultConfig()
	cfg.Threshold = 10
	result := risk.Score(risk.Input{
		AllFilePaths: []string{"src/auth/x.py"},
		TaskCount:    1,
	}, cfg)
	assert.False(t, result.AutoApprove)
}
