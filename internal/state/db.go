// Package state persists run history in a local SQLite database.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/forgeline/forgeline/internal/pipeline"
)

// DB wraps the SQLite connection holding run history.
type DB struct {
	conn *sql.DB
	path string
}

// DefaultPath returns the run-history database location under XDG data.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "forgeline", "history.db")
}

// Open opens (creating if needed) the database at path and applies the
// schema. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			instructions TEXT NOT NULL,
			outcome TEXT NOT NULL,
			component_count INTEGER NOT NULL DEFAULT 0,
			done_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			blocked_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
	`)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Run is one persisted submission round.
type Run struct {
	ID             int64
	SessionID      string
	Instructions   string
	Outcome        string
	ComponentCount int
	DoneCount      int
	FailedCount    int
	BlockedCount   int
	CreatedAt      time.Time
}

// RecordRun persists one submission round. It implements pipeline.Recorder.
func (db *DB) RecordRun(ctx context.Context, rec pipeline.RunRecord) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (session_id, instructions, outcome, component_count, done_count, failed_count, blocked_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Instructions, rec.Outcome,
		rec.ComponentCount, rec.DoneCount, rec.FailedCount, rec.BlockedCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunsForSession returns the session's runs, newest first.
func (db *DB) RunsForSession(ctx context.Context, sessionID string) ([]Run, error) {
	return db.queryRuns(ctx, `
		SELECT id, session_id, instructions, outcome, component_count, done_count, failed_count, blocked_count, created_at
		FROM runs WHERE session_id = ? ORDER BY id DESC`, sessionID)
}

// RecentRuns returns the most recent runs across all sessions.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	return db.queryRuns(ctx, `
		SELECT id, session_id, instructions, outcome, component_count, done_count, failed_count, blocked_count, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
}

func (db *DB) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Instructions, &r.Outcome,
			&r.ComponentCount, &r.DoneCount, &r.FailedCount, &r.BlockedCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
