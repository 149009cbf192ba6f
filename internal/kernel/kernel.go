// Package kernel implements the Orchestration Loop (C12): the supervisor
// process that drives a validated Plan from Stage 0.5 environment install
// through wave execution, verification, merge, and final stabilization,
// wiring together every other component package.
package kernel

import (
	"fmt"
	"path/filepath"

	"github.com/taskmesh/orchestrator/internal/config"
	"github.com/taskmesh/orchestrator/internal/envhash"
	"github.com/taskmesh/orchestrator/internal/history"
	"github.com/taskmesh/orchestrator/internal/klog"
	"github.com/taskmesh/orchestrator/internal/mailbox"
	"github.com/taskmesh/orchestrator/internal/session"
	"github.com/taskmesh/orchestrator/internal/signal"
	"github.com/taskmesh/orchestrator/internal/state"
	"github.com/taskmesh/orchestrator/internal/worktree"
)

// MainBranch is the branch task worktrees are created from and merged back
// into. The orchestrator operates on a single target branch per run.
const MainBranch = "main"

// Kernel bundles every component the orchestration loop coordinates, scoped
// to one project repository root.
type Kernel struct {
	root  string
	cfg   *config.Config
	log   klog.Logger
	store *state.Store
	wt    *worktree.Manager
	sup   *session.Supervisor
	sig   *signal.Dir
	mail  *mailbox.Box
	hist  *history.Store
}

// New constructs a Kernel rooted at root. launcherPath is the agent
// launcher's resolved absolute path (per C7's spawning protocol). hist may be
// nil, in which case run history is not recorded.
func New(root string, cfg *config.Config, log klog.Logger, launcherPath string, hist *history.Store) *Kernel {
	if log == nil {
		log = klog.NoOpLogger{}
	}
	return &Kernel{
		root:  root,
		cfg:   cfg,
		log:   log,
		store: state.New(root),
		wt:    worktree.New(root),
		sup:   session.New(root, launcherPath),
		sig:   signal.New(root),
		mail:  mailbox.New(root),
		hist:  hist,
	}
}

// Close releases the history ledger connection, if one was configured.
func (k *Kernel) Close() error {
	if k.hist == nil {
		return nil
	}
	return k.hist.Close()
}

// History returns the run ledger this Kernel records into, or nil if no
// ledger was configured.
func (k *Kernel) History() *history.Store {
	return k.hist
}

// stagingLockPath is the exclusive lock guarding one merge at a time, per
// spec.md §5's shared-resource table.
func (k *Kernel) stagingLockPath() string {
	return filepath.Join(k.root, ".orchestrator", "staging.lock")
}

// computeEnvironmentHash runs C11 against the repository root.
func (k *Kernel) computeEnvironmentHash() (state.Environment, error) {
	hash, err := envhash.Compute(k.root)
	if err != nil {
		return state.Environment{}, fmt.Errorf("compute environment hash: %w", err)
	}
	return state.Environment{
		Hash:      hash,
		Lockfiles: envhash.Lockfiles(k.root),
	}, nil
}
