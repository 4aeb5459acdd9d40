package ustva

import (
	"errors"
	"fmt"
)

// Common computation errors
var (
	// ErrNegativeAmount is returned when a selected document carries a negative
	// net amount, tax amount or tax rate.
	ErrNegativeAmount = errors.New("negative amount")

	// ErrNonFiniteAmount is returned for NaN or infinite numeric input.
	ErrNonFiniteAmount = errors.New("non-finite amount")

	// ErrUnknownKind is returned when a document kind is neither invoice nor expense.
	ErrUnknownKind = errors.New("unknown document kind")

	// ErrNoSelection is returned when Compute is called without a selection.
	ErrNoSelection = errors.New("selection is required")
)

// ComputationError reports malformed numeric input. The computation that
// raised it produced no result.
type ComputationError struct {
	// Op is the operation that failed (e.g., "Compute").
	Op string

	// Err is the underlying error.
	Err error

	// DocumentID identifies the offending document, if any.
	DocumentID string

	// Field names the offending amount (e.g., "tax_amount").
	Field string
}

// Error implements the error interface.
func (e *ComputationError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("ustva: %s failed for document %s (%s): %v", e.Op, e.DocumentID, e.Field, e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("ustva: %s failed (%s): %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("ustva: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ComputationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewComputationError creates a ComputationError for a document field.
func NewComputationError(op string, err error, documentID, field string) *ComputationError {
	return &ComputationError{
		Op:         op,
		Err:        err,
		DocumentID: documentID,
		Field:      field,
	}
}

// IsComputationError reports whether err is or wraps a ComputationError.
func IsComputationError(err error) bool {
	var compErr *ComputationError
	return errors.As(err, &compErr)
}
