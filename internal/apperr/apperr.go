// Package apperr defines the error type shared by the locator registry, the
// short URL storage backends and the HTTP layer. Every error carries a wire
// code so handlers can render {message, code} without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
)

// Code is the machine-readable error kind sent to clients.
type Code string

const (
	CodeSlugExists         Code = "SLUG_EXISTS"
	CodeNotFound           Code = "NOT_FOUND"
	CodeLocatorNotFound    Code = "LOCATOR_NOT_FOUND"
	CodeDuplicateLocatorID Code = "DUPLICATE_LOCATOR_ID"
	CodeInvalid            Code = "INVALID"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrSlugExists         = &Error{Code: CodeSlugExists}
	ErrNotFound           = &Error{Code: CodeNotFound}
	ErrLocatorNotFound    = &Error{Code: CodeLocatorNotFound}
	ErrDuplicateLocatorID = &Error{Code: CodeDuplicateLocatorID}
	ErrInvalid            = &Error{Code: CodeInvalid}
	ErrUnavailable        = &Error{Code: CodeUnavailable}
)

// Error is an error with a Code. Message is safe to show to clients.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New builds an error with a formatted, user-facing message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Code)
	case e.Message == "":
		return e.Err.Error()
	case e.Err == nil:
		return e.Message
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// SlugExists is returned by storage when a slug is already taken.
func SlugExists(slug string) *Error {
	return New(CodeSlugExists, "Slug %q already exists.", slug)
}

// NotFoundByID is returned by storage for an unknown record id.
func NotFoundByID(id string) *Error {
	return New(CodeNotFound, "No short url with id %q", id)
}

// NotFoundBySlug is returned by storage for an unknown slug.
func NotFoundBySlug(slug string) *Error {
	return New(CodeNotFound, "No short url with slug %q", slug)
}

// LocatorNotFound is returned when a locator id has not been registered.
func LocatorNotFound(id string) *Error {
	return New(CodeLocatorNotFound, "Locator %q not found.", id)
}
