// Package apperr defines the error kinds surfaced by the workspace core.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to react differently to
// storage failures, bad input and missing entities.
type Kind int

const (
	KindUnknown Kind = iota
	// KindIO covers filesystem read/write/create failures.
	KindIO
	// KindConfig covers JSON parse/serialize failures against an expected schema.
	KindConfig
	// KindDatabase covers cache query and transaction failures.
	KindDatabase
	// KindNotFound means a referenced entity is absent.
	KindNotFound
	// KindAlreadyExists means a workspace path collision.
	KindAlreadyExists
	// KindInvalid means the caller supplied unusable input.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	case KindDatabase:
		return "database"
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Error is a typed error carrying the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func IO(op string, err error) error       { return newError(KindIO, op, err) }
func Config(op string, err error) error   { return newError(KindConfig, op, err) }
func Database(op string, err error) error { return newError(KindDatabase, op, err) }

// NotFound builds a KindNotFound error with a formatted message.
func NotFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, fmt.Errorf(format, args...))
}

// AlreadyExists builds a KindAlreadyExists error with a formatted message.
func AlreadyExists(op, format string, args ...any) error {
	return newError(KindAlreadyExists, op, fmt.Errorf(format, args...))
}

// Invalid builds a KindInvalid error with a formatted message.
func Invalid(op, format string, args ...any) error {
	return newError(KindInvalid, op, fmt.Errorf(format, args...))
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
