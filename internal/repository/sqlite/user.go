package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users table.
type UserDB struct {
	conn *sql.DB
}

const userColumns = `id, email, username, password_hash, profile_image, created_at, updated_at`

// Create inserts a new user. The ID is generated here (xid) and the
// timestamps are set to now; both are written back into the caller's struct.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.ProfileImage,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by exact email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getBy(ctx, "email", email)
}

// GetByUsername retrieves a user by exact username.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.getBy(ctx, "username", username)
}

// getBy runs the single-row lookup shared by the GetBy* methods.
// column is always one of our own constants, never user input.
func (u *UserDB) getBy(ctx context.Context, column, value string) (*model.User, error) {
	var user model.User

	err := u.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.ProfileImage,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	return &user, nil
}
