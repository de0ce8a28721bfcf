package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so the API has one
// body shape for errors:
//
//	{"error": "not_found", "message": "post not found with id 7"}
//
// Validation errors also carry the offending field:
//
//	{"error": "empty_content", "message": "comment content must not be empty", "field": "content"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/starblog/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorMapping pairs a sentinel with the status and type it is reported as.
// Order matters: kinds come before the category they unwrap to.
var errorMapping = []struct {
	target    error
	status    int
	errorType string
}{
	{apperror.ErrEmptyContent, http.StatusBadRequest, "empty_content"},
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// The service layer never knows about status codes; this is the one place
// where apperror categories become HTTP. errors.Is walks the whole chain, so
// fmt.Errorf("creating comment: %w", apperror.Wrap(apperror.ErrPostNotFound, ...))
// still maps to 404.
//
// Unknown errors become a generic 500. Their text may contain SQL or file
// paths and is only logged.
func writeError(w http.ResponseWriter, err error) {
	for _, m := range errorMapping {
		if !errors.Is(err, m.target) {
			continue
		}

		resp := ErrorResponse{Error: m.errorType, Message: m.target.Error()}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			resp.Message = appErr.Message
			resp.Field = appErr.Field
		}
		writeJSON(w, m.status, resp)
		return
	}

	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("", "invalid JSON body")
	}
	return nil
}

const maxBodyBytes = 1 << 20
