package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and writeError so that all
// responses share one shape.
//
// CONSISTENT ERROR FORMAT:
//   {"error": "not_found", "message": "Book not found"}
//
// "error" is a machine code the client can switch on, "message" is the text
// shown to a person.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/booklog/internal/apperror"
)

// Machine-readable error codes.
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal_error"
)

const (
	msgInternal         = "Internal server error"
	msgInvalidBody      = "Invalid request body"
	msgBodyTooLarge     = "Request body too large"
	msgMissingIdentity  = "No authentication token, access denied"
	msgBookDeleted      = "Book deleted successfully"
	msgPageNotPositive  = "page must be a positive integer"
	msgLimitNotPositive = "limit must be a positive integer"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse is the body of operations that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written. Once Encode
// calls w.Write the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation, ErrConflict → 400 validation_error
//	ErrUnauthorized           → 401 unauthorized
//	ErrNotFound               → 404 not_found
//	anything else             → 500 internal_error
//
// Only *apperror.AppError messages reach the client. Everything else is
// logged with the request id and replaced by a fixed message, since a raw
// error can carry SQL, file paths or bucket names.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := statusFor(err)
		if status != http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Error: code, Message: appErr.Message})
			return
		}
	}

	logger.Error("request failed",
		slog.String("request_id", chimiddleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   CodeInternal,
		Message: msgInternal,
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
//
// The body size cap is applied upstream (chi's RequestSize middleware wraps
// the body in an http.MaxBytesReader); here an overflow only needs to be
// recognised so the client gets a clear message.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperror.ValidationFailed("", msgInvalidBody)
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperror.ValidationFailed("", msgBodyTooLarge)
		case errors.Is(err, io.EOF):
			// An empty body is the same as an empty object: every field is
			// missing, and the service reports that.
			return nil
		default:
			return apperror.ValidationFailed("", msgInvalidBody)
		}
	}
	return nil
}
