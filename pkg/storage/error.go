package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by exact-match readers when no record exists for
// the given key. Callers decide whether absence is an error.
var ErrNotFound = errors.New("record not found")

// UnsupportedOperationError signals that a caller invoked an operation this
// backend never implements, e.g. a native SQL query against the in-memory
// store. It is non-recoverable and must propagate to the caller immediately.
type UnsupportedOperationError struct {
	Msg string
}

func (e *UnsupportedOperationError) Error() string {
	return e.Msg
}

// NewUnsupportedOperationErrorf uses fmt.Sprintf(format, a...) to format the message
func NewUnsupportedOperationErrorf(format string, a ...interface{}) error {
	return &UnsupportedOperationError{
		Msg: fmt.Sprintf(format, a...),
	}
}
