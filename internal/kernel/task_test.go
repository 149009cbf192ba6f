package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskmesh/orchestrator/internal/kernelerr"
	"github.com/taskmesh/orchestrator/internal/state"
)

func TestRetryableReflectsKindPolicy(t *testing.T) {
	cases := []struct {
		kind kernelerr.Kind
		want bool
	}{
		{kernelerr.KindCheckFailed, true},
		{kernelerr.KindWorkerTimeout, true},
		{kernelerr.KindWorkerHung, true},
		{kernelerr.KindWorkerCrashed, true},
		{kernelerr.KindSpawnFailed, true},
		{kernelerr.KindMergeConflict, true},
		{kernelerr.KindBoundaryViolation, false},
		{kernelerr.KindTaskBlocked, false},
		{kernelerr.KindEnvMismatch, false},
	}

	for _, c := range cases {
		rec := state.TaskRecord{Status: state.StatusFailed, ErrorKind: c.kind.String()}
		assert.Equal(t, c.want, retryable(rec), "kind %s", c.kind)
	}
}

func TestRetryableFalseForUnknownKind(t *testing.T) {
	rec := state.TaskRecord{Status: state.StatusFailed, ErrorKind: "NotARealKind"}
	assert.False(t, retryable(rec))
}
