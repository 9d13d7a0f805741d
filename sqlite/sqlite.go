// Package sqlite provides SQLite-based checkpoint storage and output sinks.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fwojciec/modharvest"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// schemaVersion is stored in PRAGMA user_version. Opening a database
// written by a newer schema fails instead of guessing at its layout.
const schemaVersion = 1

// pragmas configure every connection. WAL is skipped for ":memory:".
var pragmas = []struct {
	sql      string
	fileOnly bool
}{
	{sql: "PRAGMA busy_timeout = 5000"},
	{sql: "PRAGMA journal_mode = WAL", fileOnly: true},
	{sql: "PRAGMA foreign_keys = ON"},
}

// Open opens the database connection and migrates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, p := range pragmas {
		if p.fileOnly && db.path == ":memory:" {
			continue
		}
		if _, err := conn.Exec(p.sql); err != nil {
			conn.Close()
			return fmt.Errorf("failed to apply %q: %w", p.sql, err)
		}
	}

	db.db = conn

	if err := db.migrate(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// migrate creates the tables of schemaVersion.
func (db *DB) migrate() error {
	var current int
	if err := db.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current > schemaVersion {
		return modharvest.Errorf(modharvest.EINVALID, "database schema version %d is newer than supported version %d", current, schemaVersion)
	}
	if current == schemaVersion {
		return nil
	}

	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			total_sections INTEGER NOT NULL DEFAULT 0,
			total_modules INTEGER NOT NULL DEFAULT 0,
			raw_structure TEXT NOT NULL DEFAULT '[]',
			completed_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS records (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			section_title TEXT NOT NULL DEFAULT '',
			module_title TEXT NOT NULL DEFAULT '',
			module_id TEXT NOT NULL DEFAULT '',
			video_link TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			failed INTEGER NOT NULL DEFAULT 0,
			content_hash TEXT NOT NULL DEFAULT '',
			markdown TEXT NOT NULL DEFAULT '',
			scraped_at TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_records_module_id ON records(module_id);
	`

	if _, err := db.db.Exec(schema); err != nil {
		return err
	}
	_, err := db.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}
