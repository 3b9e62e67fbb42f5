// Package apperror defines the application's error taxonomy.
//
// Every error that crosses a layer boundary (repository → service → handler)
// either IS one of the sentinels below or WRAPS one. Callers never compare
// messages; they ask errors.Is(err, apperror.ErrNotFound) and friends.
//
// The handler layer is the only place that turns these into HTTP outcomes:
//
//	ErrValidation      → re-render the form with field errors (200)
//	ErrNotFound        → 404
//	ErrAuthRequired    → 302 to the login page
//	ErrUnauthenticated → re-render the login form with a non-field error
//	ErrForbidden       → 403
//	ErrConflict        → never reaches HTTP; services translate it first
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication failed")
	ErrAuthRequired    = errors.New("authentication required")
)

type AppError struct {
	Err     error  // sentinel this error belongs to
	Message string // human-readable error message
	Field   string // optional: form field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a storage-level uniqueness violation. field names the
// column (or form field) whose value collided.
func Conflict(resource, field string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict on %s", resource, field),
		Field:   field,
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

// Unauthenticated reports a credential mismatch. The message is shown to
// the user as-is, so it must not reveal which credential was wrong.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// AuthRequired reports that an anonymous caller attempted a protected action.
func AuthRequired(action string) *AppError {
	return &AppError{
		Err:     ErrAuthRequired,
		Message: fmt.Sprintf("you must be logged in to %s", action),
	}
}
