// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudact/bqoptimizer/internal/sqlitedriver"
)

// Run is one execution of a scheduled job.
type Run struct {
	ID          string
	Job         string
	StartedAt   time.Time
	CompletedAt time.Time
	Status      string
	Error       string
	DurationMs  int64
}

// Stats summarizes the recorded runs of a job.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	LastRun   time.Time
	LastError string
}

// Store persists run history to SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewStore opens (creating when missing) the history database at path.
func NewStore(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlitedriver.Open(sqlitedriver.Config{Path: path})
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedule_runs (
		id TEXT PRIMARY KEY,
		job TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_job ON schedule_runs(job);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON schedule_runs(started_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record stores one run.
func (s *Store) Record(ctx context.Context, r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO schedule_runs (id, job, started_at, completed_at, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var errMsg sql.NullString
	if r.Error != "" {
		errMsg = sql.NullString{String: r.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Job,
		r.StartedAt.UnixMilli(),
		r.CompletedAt.UnixMilli(),
		r.Status,
		errMsg,
		r.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// History returns the latest runs of job, newest first.
func (s *Store) History(ctx context.Context, job string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, job, started_at, completed_at, status, error, duration_ms
		FROM schedule_runs
		WHERE job = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, job, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			r                  Run
			started, completed int64
			errMsg             sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Job, &started, &completed, &r.Status, &errMsg, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.CompletedAt = time.UnixMilli(completed)
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Stats counts the recorded runs of job by status.
func (s *Store) Stats(ctx context.Context, job string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM schedule_runs WHERE job = ? GROUP BY status`, job)
	if err != nil {
		return st, fmt.Errorf("failed to query run stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("failed to scan run stats: %w", err)
		}
		st.Total += n
		switch status {
		case StatusSuccess:
			st.Succeeded = n
		case StatusFailed:
			st.Failed = n
		case StatusSkipped:
			st.Skipped = n
		}
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("error iterating run stats: %w", err)
	}
	// Release the connection; in-memory databases have only one.
	rows.Close()

	var (
		last   sql.NullInt64
		errMsg sql.NullString
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT started_at, error FROM schedule_runs
		WHERE job = ? AND status != ?
		ORDER BY started_at DESC, rowid DESC LIMIT 1`, job, StatusSkipped).Scan(&last, &errMsg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return st, fmt.Errorf("failed to query last run: %w", err)
	default:
		st.LastRun = time.UnixMilli(last.Int64)
		st.LastError = errMsg.String
	}
	return st, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
