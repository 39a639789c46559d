package identity

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPayload = errors.New("malformed identity payload")
	ErrLengthMismatch   = errors.New("identity payload length mismatch")
	ErrInvalidUniqueID  = errors.New("invalid unique id")
	ErrInvalidEnum      = errors.New("invalid enum value")
)

// LengthMismatchError is returned by Decode when the payload does not have
// ExpectedLength fields. It usually means that the sending gateway runs a
// different protocol version.
type LengthMismatchError struct {
	Expected int
	Actual   int
}

func (err *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d fields, got %d", ErrLengthMismatch, err.Expected, err.Actual)
}

func (err *LengthMismatchError) Unwrap() error {
	return ErrLengthMismatch
}
