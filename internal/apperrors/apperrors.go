// Package apperrors defines the error taxonomy the order service reports to
// its callers. Every public operation wraps internal and upstream failures
// into one of these kinds; the original root cause stays attached so logs can
// show the full chain while callers only see the kind's status and message.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	KindInternal            Kind = iota // unexpected failure
	KindInvalidInput                    // malformed request payload
	KindNotFound                        // order does not exist
	KindConflict                        // status change is a no-op or lost a race
	KindUpstreamInvalid                 // collaborator answered, but with an empty/failure result
	KindUpstreamUnavailable             // collaborator unreachable or timed out
	KindDataIntegrity                   // collaborator reply inconsistent with the request
)

// Status returns the caller-facing status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput, KindUpstreamInvalid:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindDataIntegrity:
		return 422
	case KindUpstreamUnavailable:
		return 503
	default:
		return 500
	}
}

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindUpstreamInvalid:
		return "upstream invalid"
	case KindUpstreamUnavailable:
		return "upstream unavailable"
	case KindDataIntegrity:
		return "data integrity"
	default:
		return "internal"
	}
}

// Error carries a taxonomy kind, a caller-facing message and the wrapped
// root cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with no underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a new Error of the given kind.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the taxonomy kind from err, or KindInternal if err carries
// none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message of err, falling back to the
// raw error text for unclassified errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
