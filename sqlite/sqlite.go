// Package sqlite stores download history in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// memoryPath opens a private in-memory database.
const memoryPath = ":memory:"

// pragma is a connection setting applied on Open.
type pragma struct {
	stmt     string
	fileOnly bool
}

// Settings for a history database that takes one small upsert per finished
// download from many workers through a single connection. WAL needs a file.
var pragmas = []pragma{
	{stmt: "PRAGMA busy_timeout = 5000"},
	{stmt: "PRAGMA journal_mode = WAL", fileOnly: true},
	{stmt: "PRAGMA synchronous = NORMAL", fileOnly: true},
	{stmt: "PRAGMA temp_store = MEMORY"},
}

// migrations upgrade the schema one version at a time. The applied version
// is kept in PRAGMA user_version. Never edit an entry once released; append.
var migrations = []string{
	// 1: completed downloads keyed by URL identity.
	`CREATE TABLE history (
		id TEXT PRIMARY KEY,
		identity TEXT NOT NULL UNIQUE,
		url TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		completed_at TEXT NOT NULL
	)`,
	// 2: newest-first listing, optionally for one domain.
	`CREATE INDEX idx_history_completed_at ON history(completed_at);
	CREATE INDEX idx_history_domain_completed_at ON history(domain, completed_at)`,
}

// SchemaVersion is the schema version Open migrates to.
var SchemaVersion = len(migrations)

// DB is a history database handle.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB returns a DB for the file at path, or ":memory:" for a throwaway
// database. The database is not opened until Open is called.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open connects, applies pragmas and migrates the schema to SchemaVersion.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; workers queue on the pool instead of on SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, p := range pragmas {
		if p.fileOnly && db.path == memoryPath {
			continue
		}
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return fmt.Errorf("failed to apply %q: %w", p.stmt, err)
		}
	}

	db.db = conn
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		db.db = nil
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// migrate applies every migration newer than the stored version, each in
// its own transaction together with the version bump.
func (db *DB) migrate(ctx context.Context) error {
	var version int
	if err := db.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Version returns the schema version stored in the database.
func (db *DB) Version(ctx context.Context) (int, error) {
	var version int
	err := db.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, err
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
