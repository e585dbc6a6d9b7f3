package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so handlers can pick the HTTP status without
// inspecting message text.
type Kind int

const (
	Validation Kind = iota
	Unauthorized
	Forbidden
	NotFound
	Cooldown
	Internal
)

type Error struct {
	Kind    Kind
	Message string
	Details any
}

func (e *Error) Error() string {
	return e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured payload returned alongside the error
// message, e.g. remaining cooldown seconds.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// Status maps an error to its HTTP status code. Anything that is not an
// *Error is treated as an unexpected internal failure.
func Status(err error) int {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Cooldown:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
