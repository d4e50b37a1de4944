package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/imagehost"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

// Pagination defaults for List.
const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 50

	// MaxPage keeps (page-1)*limit+limit within an int for every limit.
	MaxPage = math.MaxInt / MaxLimit
)

const (
	msgFillBookFields   = "Please fill all fields"
	msgRatingRange      = "Rating must be between 1 and 5"
	msgInvalidImage     = "Invalid image"
	msgNotOwner         = "Unauthorized"
	msgPageNotPositive  = "page must be a positive integer"
	msgLimitNotPositive = "limit must be a positive integer"
)

// Sanitizer strips markup from free text.
type Sanitizer interface {
	Text(string) string
}

// BookEvents receives counts of book lifecycle events.
type BookEvents interface {
	BookCreated()
	BookDeleted()
	ImageCleanupFailed()
}

// BookService creates, lists and deletes books.
type BookService struct {
	books     repository.BookRepository
	images    imagehost.Host
	sanitizer Sanitizer
	events    BookEvents
	logger    *slog.Logger
}

func NewBookService(
	books repository.BookRepository,
	images imagehost.Host,
	sanitizer Sanitizer,
	events BookEvents,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		books:     books,
		images:    images,
		sanitizer: sanitizer,
		events:    events,
		logger:    logger,
	}
}

type CreateBookInput struct {
	Title   string
	Caption string
	Rating  int
	Image   string
}

// Create validates the input, uploads the image and stores the book for
// ownerID.
//
// Nothing is uploaded until every field has passed validation. If the store
// rejects the book after the upload, the image is removed again.
func (s *BookService) Create(ctx context.Context, ownerID string, in CreateBookInput) (*model.Book, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Caption) == "" ||
		strings.TrimSpace(in.Image) == "" || in.Rating == 0 {
		return nil, apperror.ValidationFailed("", msgFillBookFields)
	}
	if in.Rating < model.MinRating || in.Rating > model.MaxRating {
		return nil, apperror.ValidationFailed("rating", msgRatingRange)
	}

	title := s.sanitizer.Text(in.Title)
	caption := s.sanitizer.Text(in.Caption)
	if title == "" || caption == "" {
		return nil, apperror.ValidationFailed("", msgFillBookFields)
	}

	img, err := s.images.Upload(ctx, in.Image)
	if err != nil {
		if errors.Is(err, imagehost.ErrInvalidImage) {
			s.logger.Debug("rejected book image", slog.String("error", err.Error()))
			return nil, apperror.ValidationFailed("image", msgInvalidImage)
		}
		return nil, fmt.Errorf("service/book: uploading image: %w", err)
	}

	book := &model.Book{
		Title:   title,
		Caption: caption,
		Rating:  in.Rating,
		Image:   img.URL,
		UserID:  ownerID,
	}
	if err := s.books.Create(ctx, book); err != nil {
		s.destroyImage(ctx, img.ID, "rolling back upload")
		return nil, fmt.Errorf("service/book: creating book: %w", err)
	}

	s.events.BookCreated()
	s.logger.Info("book created",
		slog.String("book_id", book.ID),
		slog.String("user_id", ownerID),
	)

	return book, nil
}

// List returns one page of books, newest first, with owners expanded.
// limit above MaxLimit is clamped; page above MaxPage is rejected.
func (s *BookService) List(ctx context.Context, page, limit int) (*model.BookPage, error) {
	if page < 1 || page > MaxPage {
		return nil, apperror.ValidationFailed("page", msgPageNotPositive)
	}
	if limit < 1 {
		return nil, apperror.ValidationFailed("limit", msgLimitNotPositive)
	}
	limit = min(limit, MaxLimit)

	books, err := s.books.List(ctx, repository.ListOptions{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, fmt.Errorf("service/book: listing page %d: %w", page, err)
	}

	total, err := s.books.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/book: counting books: %w", err)
	}

	return &model.BookPage{
		Books:       books,
		CurrentPage: page,
		TotalBooks:  total,
		TotalPages:  (total + limit - 1) / limit,
	}, nil
}

// ListByUser returns every book owned by userID, newest first.
func (s *BookService) ListByUser(ctx context.Context, userID string) ([]model.Book, error) {
	books, err := s.books.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/book: listing books of user %s: %w", userID, err)
	}
	return books, nil
}

// Delete removes bookID if userID owns it.
//
// When the image lives on the configured host it is destroyed first. That
// step is best effort: a failure is logged and counted, and the book is
// deleted regardless.
func (s *BookService) Delete(ctx context.Context, userID, bookID string) error {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/book: loading book %s: %w", bookID, err)
	}

	if book.UserID != userID {
		return apperror.Unauthorized(msgNotOwner)
	}

	if s.images.Owns(book.Image) {
		if id := imagehost.PublicID(book.Image); id != "" {
			s.destroyImage(ctx, id, "deleting book")
		}
	}

	if err := s.books.Delete(ctx, bookID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/book: deleting book %s: %w", bookID, err)
	}

	s.events.BookDeleted()
	s.logger.Info("book deleted",
		slog.String("book_id", bookID),
		slog.String("user_id", userID),
	)
	return nil
}

func (s *BookService) destroyImage(ctx context.Context, id, during string) {
	if err := s.images.Destroy(ctx, id); err != nil {
		s.events.ImageCleanupFailed()
		s.logger.Warn("image cleanup failed",
			slog.String("image_id", id),
			slog.String("during", during),
			slog.String("error", err.Error()),
		)
	}
}
