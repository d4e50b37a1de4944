package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users table.
type UserDB struct {
	pool *pgxpool.Pool
}

const userColumns = `id, email, username, password_hash, profile_image, created_at, updated_at`

func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.ProfileImage, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("postgres: inserting user %q: %w", user.Username, err)
	}
	return nil
}

func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getBy(ctx, "id", id)
}

func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getBy(ctx, "email", email)
}

func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getBy(ctx, "username", username)
}

func (u *UserDB) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User
	err := u.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = $1`,
		value,
	).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.ProfileImage, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, fmt.Errorf("postgres: getting user by %s: %w", column, err)
	}
	return &user, nil
}
