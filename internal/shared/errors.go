package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced warehouse, product, position or order
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState occurs when an operation violates a status workflow or
	// runs without required reference data.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict indicates a duplicate or concurrently-modified record.
	ErrConflict = errors.New("conflict")
)

// StorageError wraps a failure of an atomic write unit. The unit rolled back
// in full; nothing was applied.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError tags err with the failed operation name.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
