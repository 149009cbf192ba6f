package envhash_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/envhash"
)

func TestComputeReturnsNoLockWhenNoLockfilePresent(t *testing.T) {
	hash, err := envhash.Compute(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, envhash.NoLock, hash)
}

func TestComputeIsDeterministicAndEightHexChars(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.sum"), []byte("module v1.0.0 h1:abc"), 0o644))

	h1, err := envhash.Compute(dir)
	require.NoError(t, err)
	h2, err := envhash.Compute(dir)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 8)
}

func TestComputeChangesWhenLockfileContentChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.sum")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	h1, err := envhash.Compute(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	h2, err := envhash.Compute(dir)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestComputeIsOrderIndependentAcrossMultipleLockfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.sum"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yarn.lock"), []byte("b"), 0o644))

	h1, err := envhash.Compute(dir)
	require.NoError(t, err)

	dir2 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir2, "yarn.lock"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir2, "go.sum"), []byte("a"), 0o644))

	h2, err := envhash.Compute(dir2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hash must not depend on filesystem iteration order")
}

func TestLockfilesReturnsPresentNamesSorted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yarn.lock"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.sum"), []byte("y"), 0o644))

	names := envhash.Lockfiles(dir)
	assert.Equal(t, []string{"go.sum", "yarn.lock"}, names)
}
