package fsatomic_test

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/orchestrator/internal/fsatomic"
)

func TestWriteCreatesFileWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, fsatomic.Write(path, []byte(`{"a":1}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func TestWriteLeavesNoTempSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	require.NoError(t, fsatomic.Write(path, []byte("hello")))

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestWriteOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, fsatomic.Write(path, []byte("first")))
	require.NoError(t, fsatomic.Write(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestIsNotReady(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signal.json")

	assert.True(t, fsatomic.IsNotReady(path))
	require.NoError(t, fsatomic.Write(path, []byte("ready")))
	assert.False(t, fsatomic.IsNotReady(path))
}

func TestLockExcludesConcurrentHolders(t *testing.T) {
	dir := t.TempDir()
	resource := filepath.Join(dir, "resource")

	lockA := fsatomic.NewLock(fsatomic.LockPathFor(resource))
	require.NoError(t, lockA.Lock())
	defer lockA.Unlock()

	lockB := fsatomic.NewLock(fsatomic.LockPathFor(resource))
	ok, err := lockB.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLockWithDeadlineTimesOut(t *testing.T) {
	dir := t.TempDir()
	resource := filepath.Join(dir, "resource")

	holder := fsatomic.NewLock(fsatomic.LockPathFor(resource))
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	waiter := fsatomic.NewLock(fsatomic.LockPathFor(resource))
	err := waiter.LockWithDeadline(100*time.Millisecond, 10*time.Millisecond)
	assert.Error(t, err)
}

func TestWithLockSerializesReadModifyWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counter")
	require.NoError(t, fsatomic.Write(path, []byte("0")))

	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fsatomic.WithLock(path, 2*time.Second, func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				_ = data
				atomic.AddInt64(&successes, 1)
				return fsatomic.Write(path, []byte("1"))
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8), successes)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))
}

func TestReadWithRetrySucceedsOnceValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	require.NoError(t, fsatomic.Write(path, []byte("ok")))

	data, err := fsatomic.ReadWithRetry(path, 3, time.Millisecond, func(b []byte) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestReadWithRetryFailsAfterAttempts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")

	_, err := fsatomic.ReadWithRetry(path, 3, time.Millisecond, func(b []byte) error {
		return nil
	})
	assert.Error(t, err)
}
