// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history persists routing decisions and batch runs to SQLite so
// past selections can be inspected after the fact.
//
// Writes are best effort. A history failure never blocks routing, callers
// log and move on.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	ErrClosed        = errors.New("history store closed")
	ErrDatabaseError = errors.New("database error")
)

// Schema defines the history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS selections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	task_type TEXT NOT NULL,
	complexity TEXT NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	cost_tier TEXT NOT NULL,
	is_local INTEGER NOT NULL,
	policy TEXT NOT NULL,
	reason TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_selections_created ON selections(created_at);

CREATE TABLE IF NOT EXISTS batch_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL,
	total INTEGER NOT NULL,
	succeeded INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	concurrency INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL
);
`

// SelectionRecord is one routing decision as stored.
type SelectionRecord struct {
	ID         int64
	CreatedAt  time.Time
	TaskType   string
	Complexity string
	Provider   string
	Model      string
	CostTier   string
	IsLocal    bool
	Policy     string
	Reason     string
}

// BatchRecord is one batch run summary as stored.
type BatchRecord struct {
	ID          int64
	RunID       string
	CreatedAt   time.Time
	Total       int
	Succeeded   int
	Failed      int
	Concurrency int
	Elapsed     time.Duration
}

// Store persists routing history in a SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default history database path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigroute", "history.db"), nil
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// RecordSelection stores one routing decision.
func (s *Store) RecordSelection(ctx context.Context, rec SelectionRecord) error {
	if s.db == nil {
		return ErrClosed
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selections (created_at, task_type, complexity, provider, model, cost_tier, is_local, policy, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, createdAt.Unix(), rec.TaskType, rec.Complexity, rec.Provider, rec.Model,
		rec.CostTier, boolToInt(rec.IsLocal), rec.Policy, rec.Reason)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// RecordBatch stores one batch run summary.
func (s *Store) RecordBatch(ctx context.Context, rec BatchRecord) error {
	if s.db == nil {
		return ErrClosed
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_runs (run_id, created_at, total, succeeded, failed, concurrency, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, createdAt.Unix(), rec.Total, rec.Succeeded, rec.Failed,
		rec.Concurrency, rec.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// RecentSelections returns up to limit selections, newest first.
func (s *Store) RecentSelections(ctx context.Context, limit int) ([]SelectionRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, task_type, complexity, provider, model, cost_tier, is_local, policy, reason
		FROM selections ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []SelectionRecord
	for rows.Next() {
		var rec SelectionRecord
		var createdAt int64
		var isLocal int
		if err := rows.Scan(&rec.ID, &createdAt, &rec.TaskType, &rec.Complexity,
			&rec.Provider, &rec.Model, &rec.CostTier, &isLocal, &rec.Policy, &rec.Reason); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.IsLocal = isLocal != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentBatches returns up to limit batch runs, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, created_at, total, succeeded, failed, concurrency, elapsed_ms
		FROM batch_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []BatchRecord
	for rows.Next() {
		var rec BatchRecord
		var createdAt, elapsedMS int64
		if err := rows.Scan(&rec.ID, &rec.RunID, &createdAt, &rec.Total,
			&rec.Succeeded, &rec.Failed, &rec.Concurrency, &elapsedMS); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
