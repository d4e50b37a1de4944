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

var _ repository.BookRepository = (*BookDB)(nil)

// BookDB is the books table.
type BookDB struct {
	pool *pgxpool.Pool
}

const bookColumns = `id, title, caption, rating, image, user_id, created_at, updated_at`

func (b *BookDB) Create(ctx context.Context, book *model.Book) error {
	now := time.Now().UTC()
	book.ID = xid.New().String()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := b.pool.Exec(ctx,
		`INSERT INTO books (`+bookColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		book.ID, book.Title, book.Caption, book.Rating, book.Image,
		book.UserID, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating book: %w", err)
	}
	return nil
}

func (b *BookDB) GetByID(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book
	err := b.pool.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`,
		id,
	).Scan(
		&book.ID, &book.Title, &book.Caption, &book.Rating, &book.Image,
		&book.UserID, &book.CreatedAt, &book.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("Book not found")
		}
		return nil, fmt.Errorf("postgres: getting book %s: %w", id, err)
	}
	return &book, nil
}

func (b *BookDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Book, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT b.id, b.title, b.caption, b.rating, b.image, b.user_id, b.created_at, b.updated_at,
		        u.username, u.profile_image
		 FROM books b
		 JOIN users u ON u.id = b.user_id
		 ORDER BY b.created_at DESC, b.id DESC
		 LIMIT $1 OFFSET $2`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing books: %w", err)
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
			return nil, fmt.Errorf("postgres: scanning book row: %w", err)
		}
		owner.ID = bk.UserID
		bk.Owner = owner
		books = append(books, bk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating books: %w", err)
	}
	return books, nil
}

func (b *BookDB) ListByUser(ctx context.Context, userID string) ([]model.Book, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT `+bookColumns+`
		 FROM books
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing books for user %s: %w", userID, err)
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		var bk model.Book
		if err := rows.Scan(
			&bk.ID, &bk.Title, &bk.Caption, &bk.Rating, &bk.Image, &bk.UserID,
			&bk.CreatedAt, &bk.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning book row: %w", err)
		}
		books = append(books, bk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating books: %w", err)
	}
	return books, nil
}

func (b *BookDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting books: %w", err)
	}
	return n, nil
}

func (b *BookDB) Delete(ctx context.Context, id string) error {
	tag, err := b.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting book %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("Book not found")
	}
	return nil
}
