// Package errs provides the engine's error taxonomy: a closed set of
// machine-readable Kinds plus an Error type that carries an operation name,
// a kind, an optional wrapped cause, and a one-line human message. Every
// error the engine returns to a caller is (or wraps) an *errs.Error so that
// callers can branch on Kind without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Op names the operation that failed, e.g. "query.Plan" or "cache.Open".
type Op string

// Kind is the stable, machine-readable error category exposed to callers.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindPolicy
	KindCursor
	KindNotFound
	KindQuarantined
	KindCorrupted
	KindUnavailable
	KindTimeout
	KindInternal
)

// String returns the stable string form used in logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindPolicy:
		return "Policy"
	case KindCursor:
		return "Cursor"
	case KindNotFound:
		return "NotFound"
	case KindQuarantined:
		return "Quarantined"
	case KindCorrupted:
		return "Corrupted"
	case KindUnavailable:
		return "Unavailable"
	case KindTimeout:
		return "Timeout"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the engine's standard error type.
type Error struct {
	Op   Op
	Kind Kind
	Err  error
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b []byte
	if e.Op != "" {
		b = append(b, e.Op...)
		b = append(b, ": "...)
	}
	b = append(b, '[')
	b = append(b, e.Kind.String()...)
	b = append(b, ']')
	if e.Msg != "" {
		b = append(b, ' ')
		b = append(b, e.Msg...)
	}
	if e.Err != nil {
		b = append(b, ": "...)
		b = append(b, e.Err.Error()...)
	}
	return string(b)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error from a mix of Op, Kind, error, and string arguments,
// in any order, matching the construction style the engine uses
// throughout: errs.E(op, errs.KindValidation, "limit out of range").
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Msg = a
		default:
			panic(fmt.Sprintf("errs.E: unsupported argument type %T", a))
		}
	}
	return e
}

// Wrap attaches an operation name to err without changing its Kind. If err
// is already an *Error, its Kind is preserved; otherwise the wrapped error
// is KindInternal, since an un-kinded error reaching this boundary signals
// a gap in the taxonomy.
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Op: op, Kind: existing.Kind, Err: err}
	}
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// WrapMsg is Wrap plus a human-readable message.
func WrapMsg(op Op, kind Kind, msg string, err error) error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, or KindUnknown if err is not (and does
// not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
