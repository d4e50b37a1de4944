package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/auth"
	"github.com/sakif/booklog/internal/handler"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/service"
)

var testUser = model.UserView{
	ID:           "u1",
	Username:     "ada",
	Email:        "ada@example.com",
	ProfileImage: model.AvatarURL("ada"),
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockAuth implements handler.Authenticator.
type MockAuth struct {
	CapturedRegister service.RegisterInput
	CapturedLogin    service.LoginInput
	ReturnErr        error
}

func (m *MockAuth) Register(_ context.Context, in service.RegisterInput) (*service.AuthResult, error) {
	m.CapturedRegister = in
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &service.AuthResult{User: testUser, Token: "tok"}, nil
}

func (m *MockAuth) Login(_ context.Context, in service.LoginInput) (*service.AuthResult, error) {
	m.CapturedLogin = in
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &service.AuthResult{User: testUser, Token: "tok"}, nil
}

// MockBooks implements handler.Books.
type MockBooks struct {
	CapturedOwner  string
	CapturedInput  service.CreateBookInput
	CapturedPage   int
	CapturedLimit  int
	CapturedBookID string
	ReturnErr      error
}

func (m *MockBooks) Create(_ context.Context, ownerID string, in service.CreateBookInput) (*model.Book, error) {
	m.CapturedOwner, m.CapturedInput = ownerID, in
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &model.Book{ID: "b1", Title: in.Title, Caption: in.Caption, Rating: in.Rating, Image: "https://img.test/b1.png", UserID: ownerID}, nil
}

func (m *MockBooks) List(_ context.Context, page, limit int) (*model.BookPage, error) {
	m.CapturedPage, m.CapturedLimit = page, limit
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return &model.BookPage{Books: []model.Book{}, CurrentPage: page, TotalBooks: 0, TotalPages: 0}, nil
}

func (m *MockBooks) ListByUser(_ context.Context, userID string) ([]model.Book, error) {
	m.CapturedOwner = userID
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return []model.Book{{ID: "b1", UserID: userID}}, nil
}

func (m *MockBooks) Delete(_ context.Context, userID, bookID string) error {
	m.CapturedOwner, m.CapturedBookID = userID, bookID
	return m.ReturnErr
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

// asUser attaches testUser to the request the way the auth gate does.
func asUser(req *http.Request) *http.Request {
	return req.WithContext(auth.WithUser(req.Context(), testUser))
}

// =========================================================================
// Auth routes
// =========================================================================

func TestAuthHandler_HandleRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		m := &MockAuth{}
		h := handler.NewAuthHandler(m, quietLogger())

		body := `{"email":"ada@example.com","username":"ada","password":"secret1"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()

		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, service.RegisterInput{Email: "ada@example.com", Username: "ada", Password: "secret1"}, m.CapturedRegister)

		var resp handler.AuthResponse
		require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&resp))
		assert.Equal(t, "tok", resp.Token)
		assert.Equal(t, testUser, resp.User)
		assert.NotContains(t, rr.Body.String(), "password")
	})

	t.Run("duplicate maps to 400", func(t *testing.T) {
		m := &MockAuth{ReturnErr: apperror.Conflict("email", "Email already exists")}
		h := handler.NewAuthHandler(m, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, handler.CodeValidation, body.Error)
		assert.Equal(t, "Email already exists", body.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		m := &MockAuth{}
		h := handler.NewAuthHandler(m, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":`))
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid request body", decodeError(t, rr).Message)
	})

	t.Run("empty body reaches the service", func(t *testing.T) {
		m := &MockAuth{ReturnErr: apperror.ValidationFailed("", "Please fill in all fields")}
		h := handler.NewAuthHandler(m, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", http.NoBody)
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Please fill in all fields", decodeError(t, rr).Message)
	})

	t.Run("internal errors are not echoed", func(t *testing.T) {
		m := &MockAuth{ReturnErr: errors.New("sqlite: database is locked")}
		h := handler.NewAuthHandler(m, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		h.HandleRegister(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decodeError(t, rr)
		assert.Equal(t, handler.CodeInternal, body.Error)
		assert.Equal(t, "Internal server error", body.Message)
		assert.NotContains(t, rr.Body.String(), "sqlite")
	})

	t.Run("body over the size cap", func(t *testing.T) {
		m := &MockAuth{}
		h := chimiddleware.RequestSize(16)(http.HandlerFunc(handler.NewAuthHandler(m, quietLogger()).HandleRegister))

		body := `{"email":"` + strings.Repeat("a", 64) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Request body too large", decodeError(t, rr).Message)
	})
}

func TestAuthHandler_HandleLogin(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		m := &MockAuth{}
		h := handler.NewAuthHandler(m, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"ada@example.com","password":"secret1"}`))
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, service.LoginInput{Email: "ada@example.com", Password: "secret1"}, m.CapturedLogin)

		var resp handler.AuthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "tok", resp.Token)
		assert.Equal(t, "u1", resp.User.ID)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		m := &MockAuth{ReturnErr: apperror.ValidationFailed("", "Invalid credentials")}
		h := handler.NewAuthHandler(m, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"x","password":"y"}`))
		rr := httptest.NewRecorder()
		h.HandleLogin(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Invalid credentials", decodeError(t, rr).Message)
	})
}

// =========================================================================
// Book routes
// =========================================================================

func TestBookHandler_HandleCreate(t *testing.T) {
	t.Run("created for caller", func(t *testing.T) {
		m := &MockBooks{}
		h := handler.NewBookHandler(m, quietLogger())

		body := `{"title":"Dune","caption":"Spice","rating":5,"image":"data:image/png;base64,AAAA"}`
		req := asUser(httptest.NewRequest(http.MethodPost, "/api/books", strings.NewReader(body)))
		rr := httptest.NewRecorder()
		h.HandleCreate(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "u1", m.CapturedOwner)
		assert.Equal(t, service.CreateBookInput{Title: "Dune", Caption: "Spice", Rating: 5, Image: "data:image/png;base64,AAAA"}, m.CapturedInput)

		var book model.Book
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&book))
		assert.Equal(t, "b1", book.ID)
		assert.Equal(t, "u1", book.UserID)
	})

	t.Run("rating must be a number", func(t *testing.T) {
		m := &MockBooks{}
		h := handler.NewBookHandler(m, quietLogger())

		req := asUser(httptest.NewRequest(http.MethodPost, "/api/books", strings.NewReader(`{"rating":"five"}`)))
		rr := httptest.NewRecorder()
		h.HandleCreate(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, m.CapturedOwner)
	})

	t.Run("no caller", func(t *testing.T) {
		m := &MockBooks{}
		h := handler.NewBookHandler(m, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/books", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		h.HandleCreate(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, handler.CodeUnauthorized, decodeError(t, rr).Error)
	})
}

func TestBookHandler_HandleList(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantPage  int
		wantLimit int
		wantMsg   string
	}{
		{name: "defaults", query: "", wantCode: http.StatusOK, wantPage: 1, wantLimit: 5},
		{name: "explicit", query: "?page=2&limit=5", wantCode: http.StatusOK, wantPage: 2, wantLimit: 5},
		{name: "non-numeric page", query: "?page=two", wantCode: http.StatusBadRequest, wantMsg: "page must be a positive integer"},
		{name: "zero page", query: "?page=0", wantCode: http.StatusBadRequest, wantMsg: "page must be a positive integer"},
		{name: "page beyond int range", query: "?page=9223372036854775808", wantCode: http.StatusBadRequest, wantMsg: "page must be a positive integer"},
		{name: "negative limit", query: "?limit=-1", wantCode: http.StatusBadRequest, wantMsg: "limit must be a positive integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockBooks{}
			h := handler.NewBookHandler(m, quietLogger())

			req := asUser(httptest.NewRequest(http.MethodGet, "/api/books"+tt.query, nil))
			rr := httptest.NewRecorder()
			h.HandleList(rr, req)

			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, tt.wantMsg, decodeError(t, rr).Message)
				return
			}
			assert.Equal(t, tt.wantPage, m.CapturedPage)
			assert.Equal(t, tt.wantLimit, m.CapturedLimit)

			var page map[string]any
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&page))
			assert.Contains(t, page, "books")
			assert.Contains(t, page, "currentPage")
			assert.Contains(t, page, "totalBooks")
			assert.Contains(t, page, "totalPages")
		})
	}
}

func TestBookHandler_HandleListMine(t *testing.T) {
	m := &MockBooks{}
	h := handler.NewBookHandler(m, quietLogger())

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/books/user", nil))
	rr := httptest.NewRecorder()
	h.HandleListMine(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", m.CapturedOwner)

	var books []model.Book
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&books))
	assert.Len(t, books, 1)
}

func TestBookHandler_HandleDelete(t *testing.T) {
	route := func(m *MockBooks) http.Handler {
		r := chi.NewRouter()
		r.Delete("/api/books/{id}", handler.NewBookHandler(m, quietLogger()).HandleDelete)
		return r
	}

	t.Run("deleted", func(t *testing.T) {
		m := &MockBooks{}
		req := asUser(httptest.NewRequest(http.MethodDelete, "/api/books/b42", nil))
		rr := httptest.NewRecorder()
		route(m).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "b42", m.CapturedBookID)
		assert.Equal(t, "u1", m.CapturedOwner)
		assert.JSONEq(t, `{"message":"Book deleted successfully"}`, rr.Body.String())
	})

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"not found", apperror.NotFound("Book not found"), http.StatusNotFound, "Book not found"},
		{"not owner", apperror.Unauthorized("Unauthorized"), http.StatusUnauthorized, "Unauthorized"},
		{"store failure", errors.New("connection reset"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockBooks{ReturnErr: tt.err}
			req := asUser(httptest.NewRequest(http.MethodDelete, "/api/books/b42", nil))
			rr := httptest.NewRecorder()
			route(m).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rr).Message)
		})
	}
}

// =========================================================================
// Health
// =========================================================================

func TestHealthHandler(t *testing.T) {
	t.Run("store up", func(t *testing.T) {
		h := handler.NewHealthHandler(stubPinger{}, quietLogger())
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		h := handler.NewHealthHandler(stubPinger{err: errors.New("dial tcp: refused")}, quietLogger())
		rr := httptest.NewRecorder()
		h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.JSONEq(t, `{"status":"unavailable"}`, rr.Body.String())
	})
}
