package domain

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors so callers can branch with errors.Is.
type Kind string

const (
	KindInvalidArgument        Kind = "invalid_argument"
	KindAmountMismatch         Kind = "amount_mismatch"
	KindNotFound               Kind = "not_found"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindAlreadySettled         Kind = "already_settled"
	KindAlreadyReconciled      Kind = "already_reconciled"
	KindCrossEntityViolation   Kind = "cross_entity_violation"
	KindGovernanceViolation    Kind = "governance_violation"
)

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
	ErrAmountMismatch         = &Error{Kind: KindAmountMismatch}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrAlreadySettled         = &Error{Kind: KindAlreadySettled}
	ErrAlreadyReconciled      = &Error{Kind: KindAlreadyReconciled}
	ErrCrossEntityViolation   = &Error{Kind: KindCrossEntityViolation}
	ErrGovernanceViolation    = &Error{Kind: KindGovernanceViolation}
)

// Error carries the kind, the offending field (when there is one) and an
// optional wrapped cause.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind only.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// InvalidArgument reports a malformed input field.
func InvalidArgument(field, format string, args ...any) *Error {
	return Errorf(KindInvalidArgument, field, format, args...)
}

// NotFound reports a missing entity of the named type.
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Field: what, Msg: id}
}

// IsConflict reports uniqueness conflicts that are expected under retries.
// Callers may treat them as idempotent no-ops.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySettled) || errors.Is(err, ErrAlreadyReconciled)
}
