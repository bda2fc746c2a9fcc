package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zeebo/errs"
)

// Kind is the category a workflow failure is reported under.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindUnauthorized
	KindNotFound
	KindConflict
	KindServerError
)

var (
	// GeocodeError wraps failures of the geocoding API.
	GeocodeError = errs.Class("geocode")
	// MediaError wraps failures of the media host.
	MediaError = errs.Class("media")
	// PushError wraps failures of the web push transport.
	PushError = errs.Class("push")
)

// Error is a failure mapped to a caller-facing message and HTTP status.
// The wrapped cause is only meant for logs.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, cause: cause}
}

// InvalidInput reports malformed request data (400).
func InvalidInput(message string) *Error {
	return newError(KindInvalidInput, http.StatusBadRequest, message, nil)
}

// Unprocessable reports missing or semantically invalid request data (422).
func Unprocessable(message string, cause error) *Error {
	return newError(KindInvalidInput, http.StatusUnprocessableEntity, message, cause)
}

func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, http.StatusUnauthorized, message, nil)
}

// Forbidden is only used for failed logins, where the caller is not identified yet.
func Forbidden(message string) *Error {
	return newError(KindUnauthorized, http.StatusForbidden, message, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, http.StatusNotFound, message, nil)
}

func Conflict(message string, cause error) *Error {
	return newError(KindConflict, http.StatusConflict, message, cause)
}

func ServerError(message string, cause error) *Error {
	return newError(KindServerError, http.StatusInternalServerError, message, cause)
}

// KindOf returns the Kind of err, or KindServerError for errors that were never mapped.
func KindOf(err error) Kind {
	var mapped *Error
	if errors.As(err, &mapped) {
		return mapped.Kind
	}
	return KindServerError
}
