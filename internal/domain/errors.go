package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable, caller-visible failure category.
type ErrorKind string

const (
	KindDuplicateSwipe         ErrorKind = "duplicate_swipe"
	KindInsufficientCredits    ErrorKind = "insufficient_credits"
	KindUnknownEntity          ErrorKind = "unknown_entity"
	KindSelfTarget             ErrorKind = "self_target_not_allowed"
	KindIneligibleTarget       ErrorKind = "ineligible_target"
	KindPurchaseAlreadyApplied ErrorKind = "purchase_already_applied"
	KindInvalidArgument        ErrorKind = "invalid_argument"
	KindNotAllowed             ErrorKind = "not_allowed"
)

// Error is a typed engine failure. errors.Is matches on Kind only, so a
// contextual Errorf(KindX, ...) still satisfies errors.Is(err, ErrX).
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrDuplicateSwipe         = &Error{Kind: KindDuplicateSwipe, Msg: "target already swiped"}
	ErrInsufficientCredits    = &Error{Kind: KindInsufficientCredits, Msg: "not enough credits"}
	ErrUnknownEntity          = &Error{Kind: KindUnknownEntity, Msg: "entity not found"}
	ErrSelfTarget             = &Error{Kind: KindSelfTarget, Msg: "cannot swipe on yourself"}
	ErrIneligibleTarget       = &Error{Kind: KindIneligibleTarget, Msg: "target is not eligible"}
	ErrPurchaseAlreadyApplied = &Error{Kind: KindPurchaseAlreadyApplied, Msg: "purchase already applied"}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument, Msg: "invalid argument"}
	ErrNotAllowed             = &Error{Kind: KindNotAllowed, Msg: "operation not allowed"}
)

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
