// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runlog provides a Postgres-backed history of sync runs: one
// row per run recording what was fetched, extracted, and committed, plus
// the human-readable run log for debugging.
package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is a single sync-run record persisted in Postgres.
type Run struct {
	ID             int64
	UserID         string
	Status         string // "running", "success", "failed"
	EmailsFetched  int
	EmailsFailed   int
	SegmentsFound  int
	TripsComputed  int
	TripsArchived  int
	Message        string
	Log            string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// Store provides CRUD operations for sync-run records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a run-log store backed by the given Postgres pool.
// It ensures the sync_runs table exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure run-log schema: %w", err)
	}
	slog.Info("run-log store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sync_runs (
			id               BIGSERIAL PRIMARY KEY,
			user_id          TEXT NOT NULL,
			status           TEXT DEFAULT 'running',
			emails_fetched   INT DEFAULT 0,
			emails_failed    INT DEFAULT 0,
			segments_found   INT DEFAULT 0,
			trips_computed   INT DEFAULT 0,
			trips_archived   INT DEFAULT 0,
			message          TEXT DEFAULT '',
			log              TEXT DEFAULT '',
			started_at       TIMESTAMPTZ DEFAULT NOW(),
			finished_at      TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_runs_user ON sync_runs(user_id);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON sync_runs(started_at);
	`)
	return err
}

// Start inserts a new running record and returns its ID.
func (s *Store) Start(ctx context.Context, userID string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_runs (user_id, status) VALUES ($1, $2) RETURNING id
	`, userID, StatusRunning).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("start run for %s: %w", userID, err)
	}
	return id, nil
}

// Finish updates a run with its final status and counters.
func (s *Store) Finish(ctx context.Context, runID int64, r Run) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_runs
		SET status = $1, emails_fetched = $2, emails_failed = $3,
		    segments_found = $4, trips_computed = $5, trips_archived = $6,
		    message = $7, log = $8, finished_at = NOW()
		WHERE id = $9
	`, r.Status, r.EmailsFetched, r.EmailsFailed, r.SegmentsFound,
		r.TripsComputed, r.TripsArchived, r.Message, r.Log, runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

// Recent returns the most recent runs for a user, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, status, emails_fetched, emails_failed,
		       segments_found, trips_computed, trips_archived,
		       message, log, started_at, finished_at
		FROM sync_runs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", userID, err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// Last returns the most recent run for a user, or nil when none exists.
func (s *Store) Last(ctx context.Context, userID string) (*Run, error) {
	runs, err := s.Recent(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func collectRuns(rows pgx.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Status, &r.EmailsFetched, &r.EmailsFailed,
			&r.SegmentsFound, &r.TripsComputed, &r.TripsArchived,
			&r.Message, &r.Log, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
