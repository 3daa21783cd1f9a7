package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore implements EventStore using MySQL.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQL creates a new MySQL event store on an open database.
func NewMySQL(db *sql.DB) (*MySQLStore, error) {
	if err := createMySQLSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

// NewMySQLFromDSN creates a new MySQL event store from a DSN.
// The DSN format is: user:password@tcp(host:port)/database
func NewMySQLFromDSN(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		return nil, fmt.Errorf("mysql: failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: failed to connect: %w", err)
	}

	return NewMySQL(db)
}

func createMySQLSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS access_events (
		id          VARCHAR(36) PRIMARY KEY,
		kind        VARCHAR(16) NOT NULL,
		outcome     VARCHAR(16) NOT NULL,
		reason      VARCHAR(255) NOT NULL DEFAULT '',
		identity    VARCHAR(255) NOT NULL DEFAULT '',
		client_ip   VARCHAR(45) NOT NULL DEFAULT '',
		user_agent  TEXT,
		browser     VARCHAR(100) NOT NULL DEFAULT '',
		os          VARCHAR(100) NOT NULL DEFAULT '',
		device_type VARCHAR(20) NOT NULL DEFAULT '',
		loc_city    VARCHAR(100) NOT NULL DEFAULT '',
		loc_country VARCHAR(100) NOT NULL DEFAULT '',
		created_at  TIMESTAMP(3) NOT NULL,

		INDEX idx_access_events_identity (identity, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("mysql: failed to create schema: %w", err)
	}
	return nil
}

// Save appends an event.
func (s *MySQLStore) Save(ctx context.Context, event *Event) error {
	query := `INSERT INTO access_events (` + eventColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, query, eventArgs(event)...); err != nil {
		return fmt.Errorf("mysql: failed to save event: %w", err)
	}
	return nil
}

// Recent returns up to limit events for identity, newest first.
func (s *MySQLStore) Recent(ctx context.Context, identity string, limit int) ([]*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM access_events
	WHERE (? = '' OR identity = ?)
	ORDER BY created_at DESC
	LIMIT ?`

	return queryEvents(ctx, s.db, "mysql", query, identity, identity, sqlLimit(limit))
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
