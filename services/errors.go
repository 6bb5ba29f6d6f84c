package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrorKind classifies failures so callers can tell caller mistakes from data corruption.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindBusinessRule
	KindIntegrity
	KindNotFound
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindBusinessRule:
		return "BusinessRuleViolation"
	case KindIntegrity:
		return "IntegrityError"
	case KindNotFound:
		return "NotFoundError"
	case KindTransient:
		return "TransientError"
	default:
		return "UnknownError"
	}
}

// Error is the typed failure returned by every ledger operation.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func BusinessRuleError(op, format string, args ...any) error {
	return &Error{Kind: KindBusinessRule, Op: op, Message: fmt.Sprintf(format, args...)}
}

func IntegrityError(op, format string, args ...any) error {
	return &Error{Kind: KindIntegrity, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func TransientError(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Message: "storage unavailable", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// storageError wraps a gorm failure. Typed errors pass through untouched.
func storageError(op string, err error, what string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError(op, "%s not found", what)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Op: op, Message: "operation cancelled or timed out", Err: err}
	}
	return TransientError(op, err)
}
