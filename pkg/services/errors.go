package services

import (
	"errors"
	"fmt"
)

// Errors shared by all adapters at the I/O boundary.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a record violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")

	// ErrUnavailable is returned when a backing store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")
)

// DataFetchError reports a failure reading documents from a DocumentStore.
// The core never retries; the caller decides.
type DataFetchError struct {
	// Op is the operation that failed (e.g., "ListInvoices").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *DataFetchError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("data fetch: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("data fetch: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DataFetchError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *DataFetchError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapDataFetchError wraps err as a DataFetchError if it isn't already one.
func WrapDataFetchError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var fetchErr *DataFetchError
	if errors.As(err, &fetchErr) {
		return err
	}

	return &DataFetchError{Op: op, Err: err, Details: details}
}

// StorageError reports a failure persisting a report or document.
type StorageError struct {
	// Op is the operation that failed (e.g., "SaveReport").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("storage: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("storage: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapStorageError wraps err as a StorageError if it isn't already one.
func WrapStorageError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}

	return &StorageError{Op: op, Err: err, Details: details}
}

// IsDataFetchError reports whether err is or wraps a DataFetchError.
func IsDataFetchError(err error) bool {
	var fetchErr *DataFetchError
	return errors.As(err, &fetchErr)
}

// IsStorageError reports whether err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}
