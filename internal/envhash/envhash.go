// Package envhash computes the deterministic environment fingerprint (C11)
// used to detect a task that ran against a stale dependency set.
package envhash

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
)

// NoLock is the sentinel hash for a repo with no known lockfile present.
const NoLock = "no-lock"

// knownLockfiles lists the lockfile names envhash looks for, across the
// ecosystems `internal/config`'s `dependencies.ecosystems` can declare.
var knownLockfiles = []string{
	"go.sum",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"poetry.lock",
	"Pipfile.lock",
	"requirements.txt",
	"Cargo.lock",
	"Gemfile.lock",
	"composer.lock",
}

// Compute enumerates known lockfiles present at root in deterministic
// (sorted) order and hashes their <filename, bytes> pairs with SHA-256,
// truncated to the first 8 hex characters. An empty set (no lockfile
// present) yields NoLock rather than a hash of nothing, so "no deps
// declared" is never confused with "deps declared but hash happens to
// start with the same bytes as an empty hash would".
func Compute(root string) (string, error) {
	present := make([]string, 0, len(knownLockfiles))
	for _, name := range knownLockfiles {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return NoLock, nil
	}
	sort.Strings(present)

	h := sha256.New()
	for _, name := range present {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			return "", err
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))[:8], nil
}

// Lockfiles returns the subset of knownLockfiles present at root, in the
// same deterministic order Compute hashes them — recorded in state
// alongside the hash so a human can see what produced it.
func Lockfiles(root string) []string {
	present := make([]string, 0, len(knownLockfiles))
	for _, name := range knownLockfiles {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			present = append(present, name)
		}
	}
	sort.Strings(present)
	return present
}
