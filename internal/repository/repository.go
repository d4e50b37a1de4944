// Package repository declares the storage contracts the service layer depends on.
//
// Three backends implement them: repository/sqlite (embedded, the default),
// repository/postgres and repository/mongo. Services only ever see these
// interfaces, so the backend is a one-line decision in the server wiring.
//
// Error contract shared by every backend:
//   - lookups that match nothing return an apperror.ErrNotFound
//   - unique-index violations return an apperror.ErrConflict naming the field
//   - everything else is a wrapped infrastructure error
package repository

import (
	"context"

	"github.com/sakif/booklog/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// Create inserts the user and fills in ID and timestamps.
	// PasswordHash must already be set.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, id string) (*model.Book, error)
	// List returns books newest first with Owner expanded.
	List(ctx context.Context, opts ListOptions) ([]model.Book, error)
	// ListByUser returns every book owned by userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Book, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

// Store bundles the repositories of one backend with its connection lifecycle.
type Store interface {
	Users() UserRepository
	Books() BookRepository
	Ping(ctx context.Context) error
	Close() error
}
