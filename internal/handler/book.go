package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/auth"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/service"
)

// Books is the slice of service.BookService the book routes use.
type Books interface {
	Create(ctx context.Context, ownerID string, in service.CreateBookInput) (*model.Book, error)
	List(ctx context.Context, page, limit int) (*model.BookPage, error)
	ListByUser(ctx context.Context, userID string) ([]model.Book, error)
	Delete(ctx context.Context, userID, bookID string) error
}

// BookHandler serves /api/books. Every route sits behind auth.RequireAuth,
// so the caller is always available from the request context.
type BookHandler struct {
	books  Books
	logger *slog.Logger
}

func NewBookHandler(books Books, logger *slog.Logger) *BookHandler {
	return &BookHandler{books: books, logger: logger}
}

type createBookRequest struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
	Rating  int    `json:"rating"`
	Image   string `json:"image"`
}

// HandleCreate stores a new book owned by the caller.
//
// HTTP: POST /api/books
// REQUEST BODY: {"title": "...", "caption": "...", "rating": 4, "image": "data:image/png;base64,..."}
// RESPONSE: 201 Book
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	book, err := h.books.Create(r.Context(), user.ID, service.CreateBookInput{
		Title:   req.Title,
		Caption: req.Caption,
		Rating:  req.Rating,
		Image:   req.Image,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

// HandleList returns one page of every user's books.
//
// HTTP: GET /api/books?page=2&limit=5
// RESPONSE: 200 {"books": [...], "currentPage": 2, "totalBooks": 12, "totalPages": 3}
func (h *BookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", service.DefaultPage, msgPageNotPositive)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultLimit, msgLimitNotPositive)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.books.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleListMine returns the caller's books as a plain array.
//
// HTTP: GET /api/books/user
func (h *BookHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	books, err := h.books.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

// HandleDelete removes one of the caller's books.
//
// HTTP: DELETE /api/books/{id}
// RESPONSE: 200 {"message": "Book deleted successfully"}
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.books.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: msgBookDeleted})
}

// caller returns the user attached by the auth gate. A route mounted without
// the gate answers 401 instead of panicking.
func (h *BookHandler) caller(w http.ResponseWriter, r *http.Request) (model.UserView, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthorized(msgMissingIdentity))
		return model.UserView{}, false
	}
	return user, true
}

// queryInt reads a positive integer query parameter, falling back to def when
// it is absent.
func queryInt(r *http.Request, name string, def int, invalidMsg string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperror.ValidationFailed(name, invalidMsg)
	}
	return n, nil
}
