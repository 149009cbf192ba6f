package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodeForMapsOutcomes(t *testing.T) {
	assert.Equal(t, 0, exitCodeFor(nil, nil))
	assert.Equal(t, 2, exitCodeFor([]string{"task-a"}, nil))
	assert.Equal(t, 1, exitCodeFor(nil, errors.New("boom")))
	assert.Equal(t, 1, exitCodeFor([]string{"task-a"}, errors.New("boom")), "a hard error always wins over a blocked task")
}

func TestExitWithCodeWrapsNonZero(t *testing.T) {
	assert.NoError(t, exitWithCode(0))

	err := exitWithCode(2)
	var exitErr *ExitCodeError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
