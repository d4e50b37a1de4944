// Package postgres implements the repository interfaces on PostgreSQL.
//
// Queries go through a pgxpool.Pool. Schema migrations are plain SQL files
// embedded into the binary and applied with goose on startup; goose needs a
// database/sql handle, which pgx's stdlib adapter builds on top of the pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/repository"
)

//go:embed migrations/*.sql
var migrations embed.FS

// uniqueViolationCode is the SQLSTATE for unique_violation.
const uniqueViolationCode = "23505"

var _ repository.Store = (*DB)(nil)

// DB owns the connection pool and vends the repositories.
type DB struct {
	pool  *pgxpool.Pool
	users *UserDB
	books *BookDB
}

// New connects to databaseURL, verifies the connection and migrates the schema.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}

	return &DB{
		pool:  pool,
		users: &UserDB{pool: pool},
		books: &BookDB{pool: pool},
	}, nil
}

// migrate applies every pending migration in migrations/.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// The *sql.DB borrows connections from the pool and keeps none idle.
	sqlDB := stdlib.OpenDBFromPool(pool)

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, sqlDB, "migrations")
}

func (db *DB) Users() repository.UserRepository { return db.users }

func (db *DB) Books() repository.BookRepository { return db.books }

func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// uniqueViolation maps a unique_violation on one of the users constraints
// to an apperror.Conflict. Returns nil for any other error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return apperror.Conflict("email", "Email already exists")
	case "users_username_key":
		return apperror.Conflict("username", "Username already exists")
	default:
		return apperror.Conflict("", "Record already exists")
	}
}
