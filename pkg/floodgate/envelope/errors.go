package envelope

import (
	"errors"
	"fmt"
)

var ErrCrypto = errors.New("envelope crypto failure")

// CryptoError is returned for every failure while sealing or opening an envelope.
// An identity that failed to open must be treated as unverified.
type CryptoError struct {
	Op  string
	Err error
}

func (err *CryptoError) Error() string {
	return fmt.Sprintf("envelope: %s: %v", err.Op, err.Err)
}

func (err *CryptoError) Unwrap() error {
	return err.Err
}

func (err *CryptoError) Is(target error) bool {
	return target == ErrCrypto
}

func sealErr(err error) error {
	return &CryptoError{Op: "seal", Err: err}
}

func openErr(err error) error {
	return &CryptoError{Op: "open", Err: err}
}
