package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/service"
)

// Authenticator is the slice of service.AuthService the identity routes use.
type Authenticator interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
}

// AuthHandler serves the identity routes.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account and return a session token
//   - HandleLogin    → check credentials and return a session token
//
// The handler only decodes and encodes. Validation, hashing and token
// issuing all live in the service.
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both register and login.
type AuthResponse struct {
	Token string         `json:"token"`
	User  model.UserView `json:"user"`
}

// HandleRegister creates a user.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"email": "...", "username": "...", "password": "..."}
// RESPONSE: 201 {"token": "...", "user": {...}}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: result.Token, User: result.User})
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
// RESPONSE: 200 {"token": "...", "user": {...}}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: result.Token, User: result.User})
}
