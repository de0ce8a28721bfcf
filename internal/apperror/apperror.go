// Package apperror defines the error taxonomy shared by every layer.
//
// Two levels of sentinel exist:
//
//   - categories (ErrNotFound, ErrValidation, ...) which the HTTP layer maps to
//     a status code
//   - kinds (ErrPostNotFound, ErrTokenExpired, ...) which callers branch on
//
// Every kind unwraps to exactly one category, so
// errors.Is(err, ErrNotFound) holds for an err wrapping ErrPostNotFound.
package apperror

import (
	"errors"
	"fmt"
)

// Categories.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Kinds.
var (
	ErrInvalidCredentials = newKind("invalid credentials", ErrUnauthorized)
	ErrTokenMissing       = newKind("token missing", ErrUnauthorized)
	ErrTokenExpired       = newKind("token expired", ErrUnauthorized)
	ErrTokenInvalid       = newKind("token invalid", ErrUnauthorized)

	ErrDuplicateEmail = newKind("duplicate email", ErrConflict)

	ErrUserNotFound    = newKind("user not found", ErrNotFound)
	ErrPostNotFound    = newKind("post not found", ErrNotFound)
	ErrCommentNotFound = newKind("comment not found", ErrNotFound)

	ErrEmptyContent = newKind("empty content", ErrValidation)
)

type kindError struct {
	msg      string
	category error
}

func newKind(msg string, category error) error {
	return &kindError{msg: msg, category: category}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.category }

type AppError struct {
	Err     error  // kind or category sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap attaches a user-facing message to a kind or category sentinel.
func Wrap(kind error, message string) *AppError {
	return &AppError{
		Err:     kind,
		Message: message,
	}
}

// NotFound reports a missing row by id. kind is one of the *NotFound kinds,
// so the message reads "post not found with id 7".
func NotFound(kind error, id int64) *AppError {
	return &AppError{
		Err:     kind,
		Message: fmt.Sprintf("%s with id %d", kind, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for a missing or unusable credential.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
