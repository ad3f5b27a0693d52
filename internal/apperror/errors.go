// Package apperror provides domain-specific error types for healthcore.
// Every error carries a Kind from a small closed set, an HTTP status code
// and a user-safe message. The Echo error handler and the endpoint result
// adapter both read these fields, so handlers never format raw errors.
//
// NEVER return raw database or SMTP errors to the client. Wrap them in an
// apperror type first.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. The set is closed: every error that crosses a
// package boundary maps to exactly one Kind.
type Kind int

const (
	// KindInternal is anything not covered below (bugs, marshaling).
	KindInternal Kind = iota

	// KindConfigMissing means required process configuration is absent.
	// Callers usually treat it as "skip", not as a failure.
	KindConfigMissing

	// KindValidation is rejected caller input (bad recipient syntax, bad body).
	KindValidation

	// KindNotFound means the requested record does not exist.
	KindNotFound

	// KindPermission means the caller is not allowed to perform the action.
	KindPermission

	// KindTransport is a mail delivery failure.
	KindTransport

	// KindPersistence is a failed read or write against the store.
	KindPersistence
)

// String returns the machine-readable name used in JSON error bodies.
func (k Kind) String() string {
	switch k {
	case KindConfigMissing:
		return "config_missing"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "forbidden"
	case KindTransport:
		return "transport_error"
	case KindPersistence:
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// AppError is the base error type for all domain errors.
type AppError struct {
	// Kind is the failure class.
	Kind Kind `json:"-"`

	// Code is the HTTP status sent when the error leaves as a response.
	Code int `json:"-"`

	// Type is usually Kind.String(); 401s use "unauthorized".
	Type string `json:"type"`

	// Message is shown to callers as is.
	Message string `json:"message"`

	// Internal is logged, never rendered.
	Internal error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

func newError(kind Kind, code int, message string, internal error) *AppError {
	return &AppError{
		Kind:     kind,
		Code:     code,
		Type:     kind.String(),
		Message:  message,
		Internal: internal,
	}
}

// --- Constructors ---

// NewNotFound is a 404 for a missing record.
func NewNotFound(message string) *AppError {
	return newError(KindNotFound, http.StatusNotFound, message, nil)
}

// NewBadRequest creates a 400 validation error for malformed input.
func NewBadRequest(message string) *AppError {
	return newError(KindValidation, http.StatusBadRequest, message, nil)
}

// NewValidation is a 422 for input that parsed but failed field rules.
func NewValidation(message string) *AppError {
	return newError(KindValidation, http.StatusUnprocessableEntity, message, nil)
}

// NewUnauthorized is a 401 for requests without a live session.
func NewUnauthorized(message string) *AppError {
	e := newError(KindPermission, http.StatusUnauthorized, message, nil)
	e.Type = "unauthorized"
	return e
}

// NewForbidden is a 403 for an authenticated caller lacking a permission.
func NewForbidden(message string) *AppError {
	return newError(KindPermission, http.StatusForbidden, message, nil)
}

// NewConfigMissing reports absent process configuration.
func NewConfigMissing(message string) *AppError {
	return newError(KindConfigMissing, http.StatusServiceUnavailable, message, nil)
}

// NewTransport wraps a mail delivery failure. The message is the
// transport error text, which holds the server reply.
func NewTransport(err error) *AppError {
	return newError(KindTransport, http.StatusBadGateway, err.Error(), err)
}

// NewPersistence wraps a store failure. The client sees a generic message.
func NewPersistence(err error) *AppError {
	return newError(KindPersistence, http.StatusInternalServerError,
		"An unexpected error occurred. Please try again.", err)
}

var errMissingContext = errors.New("handler reached without required request context")

// NewMissingContext is a 500 for routes registered without the middleware
// their handler depends on.
func NewMissingContext() *AppError {
	return NewInternal(errMissingContext)
}

// NewInternal hides err behind a generic 500 message.
func NewInternal(err error) *AppError {
	return newError(KindInternal, http.StatusInternalServerError,
		"An unexpected error occurred. Please try again.", err)
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// SafeMessage is the text a caller may see for err. Foreign errors get a
// generic message.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode is the HTTP status for err, 500 for foreign errors.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
