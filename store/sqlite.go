package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements EventStore using SQLite.
// It uses the pure Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite event store.
// The database file is created if it doesn't exist.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS access_events (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		identity    TEXT NOT NULL DEFAULT '',
		client_ip   TEXT NOT NULL DEFAULT '',
		user_agent  TEXT NOT NULL DEFAULT '',
		browser     TEXT NOT NULL DEFAULT '',
		os          TEXT NOT NULL DEFAULT '',
		device_type TEXT NOT NULL DEFAULT '',
		loc_city    TEXT NOT NULL DEFAULT '',
		loc_country TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_access_events_identity
		ON access_events (identity, created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: failed to create schema: %w", err)
	}
	return nil
}

// Save appends an event.
func (s *SQLiteStore) Save(ctx context.Context, event *Event) error {
	query := `INSERT INTO access_events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, query, eventArgs(event)...); err != nil {
		return fmt.Errorf("sqlite: failed to save event: %w", err)
	}
	return nil
}

// Recent returns up to limit events for identity, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, identity string, limit int) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM access_events
	WHERE (? = '' OR identity = ?)
	ORDER BY created_at DESC
	LIMIT ?`

	return queryEvents(ctx, s.db, "sqlite", query, identity, identity, sqlLimit(limit))
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqlLimit maps a non-positive limit to "no limit" for LIMIT clauses.
func sqlLimit(limit int) int64 {
	if limit <= 0 {
		return 1<<31 - 1
	}
	return int64(limit)
}
