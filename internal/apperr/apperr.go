// Package apperr defines the error kinds surfaced to API clients and their
// HTTP status mapping.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamBadResponse = errors.New("upstream bad response")
	ErrInternal            = errors.New("internal error")
)

// Error carries a kind, a client-facing message and an optional status
// override. Err holds the underlying cause, which is never shown to clients.
type Error struct {
	Kind    error
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStatus returns an error that renders with an explicit HTTP status,
// used when an upstream status is passed through unchanged.
func WithStatus(kind error, status int, message string) *Error {
	return &Error{Kind: kind, Message: message, Status: status}
}

func InvalidInput(message string) *Error { return New(ErrInvalidInput, message) }
func NotFound(message string) *Error     { return New(ErrNotFound, message) }
func Unauthorized(message string) *Error { return New(ErrUnauthorized, message) }
func Conflict(message string) *Error     { return New(ErrConflict, message) }

func Internal(message string, err error) *Error {
	return Wrap(ErrInternal, message, err)
}

// HTTPStatus resolves the status code and client message for err.
// Unknown errors become 500 with a generic message.
func HTTPStatus(err error) (int, string) {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, "Internal server error"
	}
	if e.Status != 0 {
		return e.Status, e.Message
	}

	switch {
	case errors.Is(e.Kind, ErrInvalidInput):
		return http.StatusUnprocessableEntity, e.Message
	case errors.Is(e.Kind, ErrConflict):
		return http.StatusConflict, e.Message
	case errors.Is(e.Kind, ErrUnauthorized):
		return http.StatusUnauthorized, e.Message
	case errors.Is(e.Kind, ErrNotFound):
		return http.StatusNotFound, e.Message
	case errors.Is(e.Kind, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, e.Message
	case errors.Is(e.Kind, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, e.Message
	case errors.Is(e.Kind, ErrUpstreamBadResponse):
		return http.StatusBadGateway, e.Message
	default:
		return http.StatusInternalServerError, e.Message
	}
}
