package einvoice

import (
	"errors"
	"fmt"
	"strings"
)

// Common e-invoice errors
var (
	// ErrUnsupportedFormat is returned for formats without a generator.
	ErrUnsupportedFormat = errors.New("unsupported e-invoice format")

	// ErrInvalidMetadata is returned when format metadata is incomplete.
	ErrInvalidMetadata = errors.New("invalid format metadata")

	// ErrInvalidSource is returned when an invoice cannot be mapped.
	ErrInvalidSource = errors.New("invalid source invoice")

	// ErrGenerationFailed is returned when XML rendering fails.
	ErrGenerationFailed = errors.New("xml generation failed")

	// ErrInvalidDocument is the sentinel wrapped by every ValidationError.
	ErrInvalidDocument = errors.New("e-invoice violates business rules")
)

// ValidationError carries every business-rule violation found in a document.
// It is non-fatal: callers may display the list or override it.
type ValidationError struct {
	// Op is the operation that produced the result (e.g., "Validate").
	Op string

	// Format is the format the document was checked against.
	Format string

	// Problems lists every violated rule in detection order.
	Problems []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("einvoice: %s: %d problem(s) in %s document: %s",
		e.Op, len(e.Problems), e.Format, strings.Join(e.Problems, "; "))
}

// Unwrap returns ErrInvalidDocument.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// MappingError reports why an invoice could not become a Model.
type MappingError struct {
	Op        string
	InvoiceID string
	Err       error
	Details   string
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("einvoice: %s failed for invoice %s: %s: %v", e.Op, e.InvoiceID, e.Details, e.Err)
	}
	return fmt.Sprintf("einvoice: %s failed for invoice %s: %v", e.Op, e.InvoiceID, e.Err)
}

// Unwrap returns the underlying error.
func (e *MappingError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *MappingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
