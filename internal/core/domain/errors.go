package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrDuplicateField       = errors.New("duplicate field")
	ErrTransportFailure     = errors.New("inbound stream failed")
	ErrInternal             = errors.New("internal error")
	ErrSubscriptionReplaced = errors.New("subscription replaced by a newer one")
	ErrSubscriberTooSlow    = errors.New("subscriber could not keep up")
)

type ValidationKind int

const (
	InvalidName ValidationKind = iota
	InvalidEmail
	DuplicateEmail
	DuplicateName
)

func (k ValidationKind) String() string {
	switch k {
	case InvalidName:
		return "invalid_name"
	case InvalidEmail:
		return "invalid_email"
	case DuplicateEmail:
		return "duplicate_email"
	case DuplicateName:
		return "duplicate_name"
	default:
		return "unknown"
	}
}

// ValidationError reports a business rule violation. errors.Is matches it
// against ErrInvalidInput or ErrDuplicateField depending on Kind.
type ValidationError struct {
	Kind    ValidationKind
	Field   string
	Message string
}

func NewValidationError(kind ValidationKind, field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) IsDuplicate() bool {
	return e.Kind == DuplicateEmail || e.Kind == DuplicateName
}

func (e *ValidationError) Unwrap() error {
	if e.IsDuplicate() {
		return ErrDuplicateField
	}
	return ErrInvalidInput
}
