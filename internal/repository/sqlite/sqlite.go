// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// The driver is modernc.org/sqlite, a pure Go translation of SQLite. The
// whole database is one file next to the binary, or ":memory:" for tests.
//
// CONNECTION PRAGMAS:
// PRAGMAs are per-connection, and database/sql hands out a pool of
// connections. Running "PRAGMA foreign_keys=ON" once with Exec would only
// configure whichever connection happened to run it. For file databases the
// pragmas therefore go into the DSN (modernc applies every _pragma parameter
// to each new connection). An in-memory database exists only inside the
// connection that created it, so ":memory:" is pinned to a single connection
// and configured with plain Exec calls.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/todolists/internal/repository"
)

// compile-time check that *DB is a complete storage backend
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath and brings the
// schema up to date.
//
// dbPath examples:
//   - "data/todolists.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests; lost on Close)
func New(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	dsn := dbPath
	if !memory {
		dsn = "file:" + dbPath +
			"?_pragma=foreign_keys(1)" +
			"&_pragma=journal_mode(WAL)" +
			"&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if memory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if memory {
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// schema is idempotent: every statement is IF NOT EXISTS.
//
// items.seq is the creation order used to derive a list's name. It is an
// AUTOINCREMENT key so it never goes backwards, even after deletes.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lists (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT REFERENCES users(id) ON DELETE SET NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_lists_owner_id ON lists(owner_id);

CREATE TABLE IF NOT EXISTS items (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	list_id    TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
	text       TEXT NOT NULL CHECK (text <> ''),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (list_id, text)
);

CREATE TABLE IF NOT EXISTS list_sharees (
	list_id TEXT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (list_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_list_sharees_user_id ON list_sharees(user_id);
`

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}

// withTx runs fn inside a transaction, committing on success and rolling back
// on any error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
