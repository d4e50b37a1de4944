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

// compile-time check that *BookDB implements repository.BookRepository
var _ repository.BookRepository = (*BookDB)(nil)

// BookDB is the books table.
type BookDB struct {
	conn *sql.DB
}

const bookColumns = `id, title, caption, rating, image, user_id, created_at, updated_at`

// Create inserts a new book.
//
// xid IDs start with a timestamp and a per-process counter, so they sort in
// creation order. The listings use id as a tie-breaker behind created_at.
func (b *BookDB) Create(ctx context.Context, book *model.Book) error {
	now := time.Now().UTC()
	book.ID = xid.New().String()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := b.conn.ExecContext(ctx,
		`INSERT INTO books (`+bookColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Caption,
		book.Rating,
		book.Image,
		book.UserID,
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating book: %w", err)
	}

	return nil
}

// GetByID retrieves a single book. Owner is not expanded.
func (b *BookDB) GetByID(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book

	err := b.conn.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`,
		id,
	).Scan(
		&book.ID,
		&book.Title,
		&book.Caption,
		&book.Rating,
		&book.Image,
		&book.UserID,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("Book not found")
		}
		return nil, fmt.Errorf("sqlite: getting book %s: %w", id, err)
	}

	return &book, nil
}

// List returns one page of the global feed, newest first, with the owner's
// username and avatar joined in.
//
// LIMIT/OFFSET pagination is fine at this scale; the service layer has
// already validated and clamped both values.
func (b *BookDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Book, error) {
	rows, err := b.conn.QueryContext(ctx,
		`SELECT b.id, b.title, b.caption, b.rating, b.image, b.user_id, b.created_at, b.updated_at,
		        u.username, u.profile_image
		 FROM books b
		 JOIN users u ON u.id = b.user_id
		 ORDER BY b.created_at DESC, b.id DESC
		 LIMIT ? OFFSET ?`,
		opts.Limit,
		opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing books: %w", err)
	}
	defer rows.Close()

	books := make([]model.Book, 0, opts.Limit)
	for rows.Next() {
		var bk model.Book
		owner := &model.BookOwner{}
		if err := rows.Scan(
			&bk.ID, &bk.Title, &bk.Caption, &bk.Rating, &bk.Image, &bk.UserID,
			&bk.CreatedAt, &bk.UpdatedAt,
			&owner.Username, &owner.ProfileImage,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning book row: %w", err)
		}
		owner.ID = bk.UserID
		bk.Owner = owner
		books = append(books, bk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating books: %w", err)
	}

	return books, nil
}

// ListByUser returns every book owned by userID, newest first.
func (b *BookDB) ListByUser(ctx context.Context, userID string) ([]model.Book, error) {
	rows, err := b.conn.QueryContext(ctx,
		`SELECT `+bookColumns+`
		 FROM books
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing books for user %s: %w", userID, err)
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		var bk model.Book
		if err := rows.Scan(
			&bk.ID, &bk.Title, &bk.Caption, &bk.Rating, &bk.Image, &bk.UserID,
			&bk.CreatedAt, &bk.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning book row: %w", err)
		}
		books = append(books, bk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating books: %w", err)
	}

	return books, nil
}

// Count returns the total number of books across all users.
func (b *BookDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting books: %w", err)
	}
	return n, nil
}

// Delete removes a book by ID. RowsAffected == 0 means it never existed.
func (b *BookDB) Delete(ctx context.Context, id string) error {
	result, err := b.conn.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting book %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("Book not found")
	}

	return nil
}
