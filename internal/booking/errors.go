package booking

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the caller can act on.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindSlotUnavailable    Kind = "slot_unavailable"
	KindPolicyViolation    Kind = "policy_violation"
	KindInsufficientCredit Kind = "insufficient_credit"
	KindNotFound           Kind = "not_found"
	KindForbidden          Kind = "forbidden"
)

// Error is the typed result of a failed engine operation.  Reason is a
// stable code (for policy violations, the evaluator's reason); Message is
// human-readable.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation         = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrSlotUnavailable    = &Error{Kind: KindSlotUnavailable, Message: "slot unavailable"}
	ErrPolicyViolation    = &Error{Kind: KindPolicyViolation, Message: "policy violation"}
	ErrInsufficientCredit = &Error{Kind: KindInsufficientCredit, Message: "insufficient credit"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden          = &Error{Kind: KindForbidden, Message: "forbidden"}
)

func validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func violation(reason, message string) *Error {
	return &Error{Kind: KindPolicyViolation, Reason: reason, Message: message}
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func slotUnavailable(cause error) *Error {
	return &Error{Kind: KindSlotUnavailable, Message: "the requested slot is no longer available", Cause: cause}
}

// KindOf returns the kind of err, or "" for errors the engine did not
// classify (storage failures and the like).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the reason code carried by err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
