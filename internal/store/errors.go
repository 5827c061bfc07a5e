package store

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation means the payload was rejected, e.g. empty content.
	ErrValidation = errors.New("validation failed")
	// ErrAuth means the operation needs an authenticated identity.
	ErrAuth = errors.New("authentication required")
	// ErrForbidden means the identity does not own the target.
	ErrForbidden = errors.New("permission denied")
	// ErrNotFound means the target does not exist (anymore).
	ErrNotFound = errors.New("not found")
)

// TransportError is returned when the backend could not be reached or failed
// on its side.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: backend unavailable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a TransportError for op.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
