// Package apperr defines the request-terminal error taxonomy shared by the gate,
// the forwarder, the billing synchronizer and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a request failure.
type Kind int

// Kind constants enumerate the failure taxonomy.
const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindAccountNotFound
	KindNotAuthorized
	KindQuotaExceeded
	KindRateLimited
	KindValidation
	KindInvalidSignature
	KindUpstreamUnreachable
	KindDownstream
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAccountNotFound:
		return "account_not_found"
	case KindNotAuthorized:
		return "not_authorized"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation_error"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindUpstreamUnreachable:
		return "upstream_unreachable"
	case KindDownstream:
		return "downstream_error"
	default:
		return "internal"
	}
}

// Error is a classified failure carrying a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Status  int // Overrides the kind's default HTTP status when non-zero.
	Details any
	Err     error
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches structured details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// KindOf returns the kind of err, or KindInternal when err is not classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps err to the response status code.
func HTTPStatus(err error) int {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr == nil {
		return http.StatusInternalServerError
	}
	if appErr.Status >= http.StatusBadRequest {
		return appErr.Status
	}
	switch appErr.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindAccountNotFound:
		return http.StatusNotFound
	case KindNotAuthorized:
		return http.StatusForbidden
	case KindQuotaExceeded, KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidation, KindInvalidSignature:
		return http.StatusBadRequest
	case KindUpstreamUnreachable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Envelope builds the JSON error body for err.
func Envelope(err error) map[string]any {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr == nil {
		return map[string]any{"error": "Internal server error", "kind": KindInternal.String()}
	}
	body := map[string]any{"error": appErr.Message, "kind": appErr.Kind.String()}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	return body
}
