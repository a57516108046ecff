// Package apperr holds the business error taxonomy shared by the services.
//
// Each failure carries one of the sentinel kinds below so callers branch with
// errors.Is, while the literal user-facing message stays on the error value.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidOperation    = errors.New("invalid operation")
	ErrMatchLocked         = errors.New("match is locked")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(msg string) error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func InvalidOperation(msg string) error {
	return &Error{Kind: ErrInvalidOperation, Message: msg}
}

// Message returns the user-facing text of a business error, or fallback for
// anything else.
func Message(err error, fallback string) string {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrUnauthorized, ErrInvalidOperation, ErrMatchLocked, ErrConcurrencyConflict} {
		if errors.Is(err, kind) {
			return err.Error()
		}
	}
	return fallback
}
