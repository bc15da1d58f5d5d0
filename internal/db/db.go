// Package db provides the SQLite connection and schema for dispatch history.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Dispatch history - append-only record of provider outcomes.
	// One row per provider per dispatch; rows of one dispatch share dispatch_id.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dispatch_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dispatch_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			mode TEXT NOT NULL,
			provider TEXT NOT NULL,
			success INTEGER NOT NULL,
			detail TEXT,
			dry_run INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_history_ts ON dispatch_history(timestamp);
		CREATE INDEX IF NOT EXISTS idx_history_dispatch ON dispatch_history(dispatch_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create dispatch_history table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
