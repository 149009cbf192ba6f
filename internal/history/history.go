// Package history implements an append-only ledger of past orchestration
// runs, backed by SQLite per the teacher's learning store. Unlike the state
// file (one mutable document per in-progress run), history only ever grows:
// it exists for `status`-style reporting across runs, never for driving
// orchestration decisions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id        TEXT NOT NULL,
	original_request  TEXT NOT NULL,
	started_at        TEXT NOT NULL,
	finished_at       TEXT NOT NULL,
	total_tasks       INTEGER NOT NULL,
	merged            INTEGER NOT NULL,
	failed            INTEGER NOT NULL,
	blocked           INTEGER NOT NULL,
	iterations        INTEGER NOT NULL,
	stabilize_passed  INTEGER NOT NULL,
	risk_score        REAL NOT NULL,
	auto_approved     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_request_id ON runs(request_id);
`

// Run is one completed orchestration's summary row.
type Run struct {
	ID              int64
	RequestID       string
	OriginalRequest string
	StartedAt       time.Time
	FinishedAt      time.Time
	TotalTasks      int
	Merged          int
	Failed          int
	Blocked         int
	Iterations      int
	StabilizePassed bool
	RiskScore       float64
	AutoApproved    bool
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends one completed run to the ledger. The ledger is
// append-only: there is no UpdateRun, by design.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (request_id, original_request, started_at, finished_at,
			total_tasks, merged, failed, blocked, iterations, stabilize_passed, risk_score, auto_approved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID, r.OriginalRequest,
		r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.UTC().Format(time.RFC3339),
		r.TotalTasks, r.Merged, r.Failed, r.Blocked, r.Iterations,
		boolToInt(r.StabilizePassed), r.RiskScore, boolToInt(r.AutoApproved),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first, up to limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, original_request, started_at, finished_at,
			total_tasks, merged, failed, blocked, iterations, stabilize_passed, risk_score, auto_approved
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started, finished string
		var stabilized, approved int
		if err := rows.Scan(&r.ID, &r.RequestID, &r.OriginalRequest, &started, &finished,
			&r.TotalTasks, &r.Merged, &r.Failed, &r.Blocked, &r.Iterations, &stabilized, &r.RiskScore, &approved); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		r.StabilizePassed = stabilized != 0
		r.AutoApproved = approved != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
