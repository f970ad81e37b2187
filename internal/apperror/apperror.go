// Package apperror defines the error kinds returned by the reservation
// engine.  Business-rule outcomes (Validation, NotFound, Conflict,
// LimitExceeded, Unauthorized) carry a message meant for end users;
// Transient wraps storage failures and is never retried internally.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an engine error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindLimitExceeded
	KindUnauthorized
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindLimitExceeded:
		return "LIMIT_EXCEEDED"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindTransient:
		return "TRANSIENT"
	}
	return "UNKNOWN"
}

// Error is the concrete error type produced by the engine.  Details holds
// the ordered list of individual rule violations when more than one rule
// failed (eligibility checks accumulate rather than short-circuit).
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error    { return New(KindValidation, msg) }
func NotFound(msg string) *Error      { return New(KindNotFound, msg) }
func Conflict(msg string) *Error      { return New(KindConflict, msg) }
func LimitExceeded(msg string) *Error { return New(KindLimitExceeded, msg) }
func Unauthorized(msg string) *Error  { return New(KindUnauthorized, msg) }

// ValidationList folds several rule violations into one Validation error.
// The message joins the details so callers that only print Error() still
// see every violation.
func ValidationList(details []string) *Error {
	d := make([]string, len(details))
	copy(d, details)
	return &Error{Kind: KindValidation, Message: strings.Join(d, "; "), Details: d}
}

// Transient wraps a storage-layer failure.
func Transient(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// MessageOf returns the user-facing message of err.  Non-engine errors
// produce a generic message so storage details are not leaked.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindTransient {
			return "temporary storage failure, please retry"
		}
		return e.Message
	}
	return "internal error"
}
