package database

import (
	"fmt"

	"github.com/pkg/errors"
)

// StorageError is returned when the analytics store cannot be reached or rejects a statement
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func newStorageError(op, table string, err error) *StorageError {
	return &StorageError{Op: op, Table: table, Err: err}
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage %s on %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the driver error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Cause returns the driver error for github.com/pkg/errors
func (e *StorageError) Cause() error {
	return e.Err
}

// IsStorageError reports whether err is, or wraps, a StorageError
func IsStorageError(err error) bool {
	var sErr *StorageError
	return errors.As(err, &sErr)
}
