// Package tupwerr defines the error taxonomy surfaced at the TUPW API
// boundary. Every error that crosses out of rng, base32ss, packedint,
// tailpad, randpad, blind, protectedbytes, ctrmode, entropy, or tupwcrypto
// is a *Error with one of the Kinds below.
package tupwerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure categories a caller can distinguish between.
type Kind int

const (
	// Argument indicates bad input: key length, source-byte length or
	// entropy, malformed encryption string, unknown/invalid format id,
	// invalid encoding, structurally invalid blinded payload.
	Argument Kind = iota
	// Integrity indicates a MAC mismatch.
	Integrity
	// IndexOutOfRange indicates a protected-array element access with an
	// out-of-bounds index.
	IndexOutOfRange
	// UseAfterDispose indicates an operation invoked on a disposed engine
	// or protected array.
	UseAfterDispose
	// InternalInvariantViolated indicates an unexpected primitive
	// failure, e.g. a cipher reporting the wrong block size.
	InternalInvariantViolated
)

func (k Kind) String() string {
	switch k {
	case Argument:
		return "Argument"
	case Integrity:
		return "Integrity"
	case IndexOutOfRange:
		return "IndexOutOfRange"
	case UseAfterDispose:
		return "UseAfterDispose"
	case InternalInvariantViolated:
		return "InternalInvariantViolated"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned across the TUPW API boundary.
// It never carries secret material or derived key bytes in its message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind, formatted message, and an
// underlying cause retrievable via errors.Unwrap/errors.Is.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is a *Error of the given kind, walking the chain
// via errors.As so callers can check e.g. tupwerr.Is(err, tupwerr.Integrity).
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
