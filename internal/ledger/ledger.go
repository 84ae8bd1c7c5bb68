// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ledger records which revision every repository was checked out at,
// per checkout run.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/bake/internal/persistence/sqlite"
)

const schemaVersion = 1

// Action is what a checkout did with a repository.
type Action string

const (
	ActionCheckout  Action = "checkout"
	ActionDirty     Action = "dirty"
	ActionUnmanaged Action = "unmanaged"
	ActionPatched   Action = "patched"
)

// Entry is one row of the ledger.
type Entry struct {
	RunID    string    `json:"run_id"`
	RepoID   string    `json:"repo"`
	URL      string    `json:"url,omitempty"`
	Path     string    `json:"path"`
	Revision string    `json:"revision,omitempty"`
	Action   Action    `json:"action"`
	At       time.Time `json:"at"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	RunID  string
	RepoID string
	Limit  int
}

// Store is the SQLite backed ledger.
type Store struct {
	DB *sql.DB
}

// Open opens (and migrates) the ledger at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS checkouts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		revision TEXT NOT NULL,
		action TEXT NOT NULL,
		at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_checkouts_run ON checkouts(run_id);
	CREATE INDEX IF NOT EXISTS idx_checkouts_repo ON checkouts(repo_id, at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Record appends e. A zero At is set to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" || e.RepoID == "" {
		return fmt.Errorf("ledger: run id and repo id are required")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO checkouts (run_id, repo_id, url, path, revision, action, at_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.RepoID, e.URL, e.Path, e.Revision, string(e.Action), e.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record %s: %w", e.RepoID, err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.RepoID != "" {
		where = append(where, "repo_id = ?")
		args = append(args, f.RepoID)
	}

	query := `SELECT run_id, repo_id, url, path, revision, action, at_ms FROM checkouts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at_ms DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			action string
			atMS   int64
		)
		if err := rows.Scan(&e.RunID, &e.RepoID, &e.URL, &e.Path, &e.Revision, &action, &atMS); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.Action = Action(action)
		e.At = time.UnixMilli(atMS)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
