package service

import (
	"errors"
	"fmt"

	"intake-backend/models"
	"intake-backend/repository"
)

// Kind classifies service failures for transport mapping.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindProvider   Kind = "provider"
	KindParse      Kind = "parse"
	KindConflict   Kind = "conflict"
	KindStorage    Kind = "storage"
)

// Error is a typed failure carrying a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation failures.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Details returns the cause text, or "" when there is none.
func (e *Error) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func ValidationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFoundError(message string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: err}
}

func ProviderError(message string, err error) *Error {
	return &Error{Kind: KindProvider, Message: message, Err: err}
}

func ParseError(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

func ConflictError(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

func StorageError(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// fromStore classifies a repository error.
func fromStore(message string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return NotFoundError(message, err)
	case errors.Is(err, repository.ErrConflict):
		return ConflictError(message, err)
	case errors.Is(err, models.ErrInvalidQuestion):
		return &Error{Kind: KindValidation, Message: message, Err: err}
	default:
		return StorageError(message, err)
	}
}
