package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures the way callers need to react to them:
// validation and not-found surface to the user, conflict is a benign
// idempotency signal swallowed internally, upstream marks a collaborator
// failure that must not cascade.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindUpstream:
		return "UPSTREAM_UNAVAILABLE"
	}
	return "UNKNOWN"
}

// Error carries a kind, a caller-facing message and an optional cause.
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

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(message string, cause error) error {
	return &Error{Kind: KindConflict, Message: message, Err: cause}
}

func Upstream(message string, cause error) error {
	return &Error{Kind: KindUpstream, Message: message, Err: cause}
}

// KindOf extracts the kind from any error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool   { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return KindOf(err) == KindConflict }
func IsUpstream(err error) bool   { return KindOf(err) == KindUpstream }
