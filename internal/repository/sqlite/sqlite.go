// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE AS THE DEFAULT?
// SQLite is an embedded database: it lives inside the Go binary as a single file.
// No separate database server to install, configure, or manage. That makes it the
// zero-setup default for development and single-node deployments, and ":memory:"
// gives every test its own throwaway database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code. No C compiler is needed and it works everywhere Go works.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and vends the user and book repositories.
//
// Both repositories share the same pool; they are separate types only because
// each needs its own Create/GetByID method set.
type DB struct {
	conn  *sql.DB
	users *UserDB
	books *BookDB
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/booklog.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests, lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database.
	// Pin the pool to one connection so all queries see the same schema.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	db.users = &UserDB{conn: conn}
	db.books = &BookDB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// connPragmas run on every new pool connection. PRAGMA statements are
// per connection, so issuing them once through *sql.DB would only reach
// whichever connection happened to serve that call.
//
//   - foreign_keys: OFF by default in SQLite; books.user_id references users.id
//   - journal_mode: WAL allows concurrent reads WHILE a write is happening
//   - busy_timeout: wait for a writer's lock instead of failing immediately
var connPragmas = []string{"foreign_keys(1)", "journal_mode(WAL)", "busy_timeout(5000)"}

// dsn appends connPragmas to dbPath in the driver's _pragma query form.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(dbPath)
	for _, p := range connPragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// Users returns the user repository backed by this database.
func (db *DB) Users() repository.UserRepository { return db.users }

// Books returns the book repository backed by this database.
func (db *DB) Books() repository.BookRepository { return db.books }

// Ping verifies the database is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent,
// so it is safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			profile_image TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS books (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			caption    TEXT NOT NULL,
			rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			image      TEXT NOT NULL,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_books_created_at ON books(created_at);
		CREATE INDEX IF NOT EXISTS idx_books_user_id ON books(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating books table: %w", err)
	}

	return nil
}

// uniqueViolation translates a SQLite UNIQUE constraint error into an
// apperror.Conflict naming the offending field. Returns nil for any other error.
//
// SQLite reports these as "UNIQUE constraint failed: users.email".
func uniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "users.email"):
		return apperror.Conflict("email", "Email already exists")
	case strings.Contains(msg, "users.username"):
		return apperror.Conflict("username", "Username already exists")
	default:
		return apperror.Conflict("", "Record already exists")
	}
}
