// Package apperr defines the error kinds surfaced at the API boundary.
//
// Request-level failures are returned as *Error so handlers can map them to a
// status code and clients can render a specific empty state. Per-item failures
// inside aggregate operations never reach this package; they are swallowed
// where they happen.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for recovery decisions.
type Kind int

const (
	// KindInternal is an unexpected failure.
	KindInternal Kind = iota
	// KindNotFound is a missing ref, commit, PR, branch or file.
	KindNotFound
	// KindInvalidInput is a malformed or missing request parameter.
	KindInvalidInput
	// KindUnavailable is an upstream tool (gh, git) that cannot be reached.
	KindUnavailable
	// KindDegraded marks a result that succeeded with missing parts.
	KindDegraded
	// KindTransient is a delivery or watch failure that may clear on retry.
	KindTransient
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindUnavailable:
		return "unavailable"
	case KindDegraded:
		return "degraded"
	case KindTransient:
		return "transient"
	default:
		return "internal"
	}
}

// Error carries a kind, the failing operation and a message meant for display.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound returns a KindNotFound error.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Invalid returns a KindInvalidInput error.
func Invalid(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Unavailable returns a KindUnavailable error wrapping err.
func Unavailable(op string, err error, format string, args ...any) error {
	return &Error{Kind: KindUnavailable, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Wrap attaches a kind and operation to err. A nil err returns nil.
func Wrap(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the display message of err. For errors outside the
// taxonomy it falls back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
