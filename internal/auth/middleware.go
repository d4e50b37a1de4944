package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/booklog/internal/apperror"
	"github.com/sakif/booklog/internal/model"
)

// contextKey is a package-private type so no other package can read or
// overwrite the identity stored by RequireAuth.
type contextKey string

const userKey contextKey = "user"

// Rejection reasons passed to RejectionRecorder.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonUnknownUser  = "unknown_user"
	ReasonStoreError   = "store_error"
)

// Messages sent back with a 401 from RequireAuth.
const (
	msgNoToken      = "No authentication token, access denied"
	msgTokenInvalid = "Token is not valid"
	msgUnknownUser  = "Token is invalid"
)

// UserFinder is the slice of the user repository the gate needs.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RejectionRecorder counts requests turned away by the gate.
type RejectionRecorder interface {
	AuthRejected(reason string)
}

// RequireAuth is a middleware that enforces authentication on protected
// routes.
//
// It reads the token from the Authorization header (an optional "Bearer "
// prefix is stripped), validates it, loads the user it names, and stores the
// public view of that user in the request context. Otherwise it answers 401
// and the chain stops:
//
//	no header, or nothing after "Bearer "  → "No authentication token, access denied"
//	bad signature, expired, malformed      → "Token is not valid"
//	user no longer exists                  → "Token is invalid"
//
// A store failure while loading the user is logged and reported as
// "Token is not valid". rec may be nil.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService, users UserFinder, logger *slog.Logger, rec RejectionRecorder) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter, reason, message string) {
		if rec != nil {
			rec.AuthRejected(reason)
		}
		writeUnauthorized(w, message)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				reject(w, ReasonMissingToken, msgNoToken)
				return
			}

			userID, err := tokens.Validate(token)
			if err != nil {
				logger.Debug("rejected token", "error", err, "path", r.URL.Path)
				reject(w, ReasonInvalidToken, msgTokenInvalid)
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					reject(w, ReasonUnknownUser, msgUnknownUser)
					return
				}
				logger.Error("loading token user", "error", err, "user_id", userID)
				reject(w, ReasonStoreError, msgTokenInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user.View())))
		})
	}
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user model.UserView) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached by RequireAuth.
// ok is false on routes that are not behind the gate.
func UserFromContext(ctx context.Context) (model.UserView, bool) {
	user, ok := ctx.Value(userKey).(model.UserView)
	return user, ok && user.ID != ""
}

// bearerToken reads the Authorization header. An absent header and a bare
// "Bearer " both yield "".
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
