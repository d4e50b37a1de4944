// Package service holds the business rules of the API.
//
// Services sit between the HTTP handlers and the storage/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (rules) → UserRepository (store)
//	                                        ↘ TokenService, PasswordService
//	BookHandler (HTTP) → BookService (rules) → BookRepository (store)
//	                                        ↘ imagehost.Host
//
// Every method returns either a value or an error. Rule violations are
// *apperror.AppError values whose Message is safe to show to clients;
// anything else is an infrastructure failure wrapped with context.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/auth"
	"github.com/sakif/booklog/internal/model"
	"github.com/sakif/booklog/internal/repository"
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3
)

// Client-facing messages for the identity routes.
const (
	msgFillAllFields      = "Please fill in all fields"
	msgPasswordTooShort   = "Password must be at least 6 characters"
	msgPasswordTooLong    = "Password must be at most 72 bytes"
	msgUsernameTooShort   = "Username must be at least 3 characters"
	msgEmailTaken         = "Email already exists"
	msgUsernameTaken      = "Username already exists"
	msgCredentialsMissing = "Email and password are required"
	msgInvalidCredentials = "Invalid credentials"
)

// AuthService registers users and logs them in.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

// AuthResult bundles the public user view with a freshly issued token.
type AuthResult struct {
	User  model.UserView
	Token string
}

// Register validates the input, creates the user, and issues a token.
//
// Checks run in a fixed order and the first failure wins: missing fields,
// password length, username length, email taken, username taken. A unique
// index violation that slips past the lookups (two concurrent registrations)
// comes back from the store as the same conflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)

	if email == "" || username == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("", msgFillAllFields)
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", msgPasswordTooShort)
	}
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return nil, apperror.ValidationFailed("username", msgUsernameTooShort)
	}

	if err := s.ensureUnused(ctx, "email", email, s.users.GetByEmail); err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, "username", username, s.users.GetByUsername); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, email, username, in.Password)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return s.issue(user)
}

// ensureUnused returns a conflict if lookup finds a user for value.
func (s *AuthService) ensureUnused(
	ctx context.Context,
	field, value string,
	lookup func(context.Context, string) (*model.User, error),
) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		if field == "email" {
			return apperror.Conflict(field, msgEmailTaken)
		}
		return apperror.Conflict(field, msgUsernameTaken)
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("service/auth: checking %s: %w", field, err)
	}
}

// createUser hashes the password and persists the user with a generated
// avatar. The plaintext never leaves this function.
func (s *AuthService) createUser(ctx context.Context, email, username, password string) (*model.User, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperror.ValidationFailed("password", msgPasswordTooLong)
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		ProfileImage: model.AvatarURL(username),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}
	return user, nil
}

// Login checks the credentials and issues a token. An unknown email and a
// wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("", msgCredentialsMissing)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("", msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.ValidationFailed("", msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: verifying password for user %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user.View(), Token: token}, nil
}
