// Package store keeps the turn journal in SQLite. The journal is append-only
// and written from the turn path, so the connection is tuned for many small
// writes and the occasional diagnostic read.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/forager/internal/logging"
)

// MemoryPath opens a private in-memory journal.
const MemoryPath = ":memory:"

var pragmas = []struct{ stmt, what string }{
	{"PRAGMA journal_mode=WAL", "setting WAL mode"},
	{"PRAGMA synchronous=NORMAL", "setting synchronous mode"},
	{"PRAGMA busy_timeout=5000", "setting busy timeout"},
}

// DB is the journal database.
type DB struct {
	sql  *sql.DB
	path string
	log  *logging.Logger
}

// Open opens or creates the journal at path and brings its schema up to
// date.
func Open(ctx context.Context, path string, log *logging.Logger) (*DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if path == MemoryPath {
		// each pooled connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	for _, p := range pragmas {
		if _, err := sqlDB.ExecContext(ctx, p.stmt); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	db := &DB{sql: sqlDB, path: path, log: log.Sub("store")}
	if err := db.migrate(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	v, err := db.SchemaVersion(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	db.log.Info().Str("path", path).Int("schema", v).Msg("journal opened")
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.log.Info().Str("path", db.path).Msg("closing journal")
	return db.sql.Close()
}

// Path returns the path the journal was opened with.
func (db *DB) Path() string { return db.path }

// SQL returns the underlying *sql.DB.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// SchemaVersion returns the highest applied migration, or 0.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := db.sql.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

// migrate applies every migration newer than the recorded ones, each in its
// own transaction.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")
		if err := db.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
		return fmt.Errorf("recording migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.sql.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("listing applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
