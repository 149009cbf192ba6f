// Package fsatomic provides atomic file writes and advisory file locking for
// safe concurrent access across the orchestrator's processes: the supervisor,
// worker agents, and verifier agents never share memory, only a filesystem.
//
// Every mutable artifact the kernel produces — state document, signal files,
// mailbox messages, heartbeats — goes through Write, which creates a temp file
// in the target's own directory and renames it into place. Readers that observe
// a ".tmp-*" sibling or empty content must treat the target as "not yet ready";
// the rename is what makes a write observable at all.
package fsatomic

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Lock wraps a flock-backed advisory lock on a sibling ".lock" file.
type Lock struct {
	flock *flock.Flock
	path  string
}

// NewLock returns a Lock bound to path (the lock file itself, not the
// protected resource). Callers typically derive it via LockPathFor.
func NewLock(path string) *Lock {
	return &Lock{flock: flock.New(path), path: path}
}

// LockPathFor returns the conventional lock file path for a protected resource.
func LockPathFor(resourcePath string) string {
	return resourcePath + ".lock"
}

// Lock blocks until the exclusive lock is acquired.
func (l *Lock) Lock() error {
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *Lock) TryLock() (bool, error) {
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("try lock %s: %w", l.path, err)
	}
	return ok, nil
}

// LockWithDeadline polls TryLock every poll interval until acquired or the
// deadline elapses. A holder that dies leaves only a stale lock file — no OS
// resource leaks, since the kernel lock is released when the process exits.
func (l *Lock) LockWithDeadline(timeout, poll time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.TryLock()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %s acquiring lock %s", timeout, l.path)
		}
		time.Sleep(poll)
	}
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Write writes data to path atomically: create a temp file in the same
// directory, write, fsync, chmod, rename over the target. If interrupted at
// any point, the original file (if any) is left untouched.
func Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s to %s: %w", tmpPath, path, err)
	}
	tmp = nil
	return nil
}

// WithLock acquires an exclusive lock on the path's conventional lock file,
// runs fn, and releases the lock regardless of fn's outcome. This is the
// read-modify-write primitive the State Store builds on.
func WithLock(path string, timeout time.Duration, fn func() error) error {
	lock := NewLock(LockPathFor(path))
	if err := lock.LockWithDeadline(timeout, 50*time.Millisecond); err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}

// IsNotReady reports whether path does not yet exist. Rename makes a write
// atomically visible, so a plain Stat is sufficient; callers that poll for a
// signal or result file use this before attempting to read it.
func IsNotReady(path string) bool {
	_, err := os.Stat(path)
	return err != nil
}

// ReadWithRetry reads path, retrying up to attempts times with backoff if the
// content fails to parse via validate. This tolerates observing the split
// second of an in-flight writer before its rename completes.
func ReadWithRetry(path string, attempts int, backoff time.Duration, validate func([]byte) error) ([]byte, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
		} else if verr := validate(data); verr != nil {
			lastErr = verr
		} else {
			return data, nil
		}
		if i < attempts-1 {
			time.Sleep(backoff)
		}
	}
	return nil, fmt.Errorf("read %s after %d attempts: %w", path, attempts, lastErr)
}
