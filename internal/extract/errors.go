package extract

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrInvalidPDF is returned when the provided data is not a PDF document
	// or Document AI rejects it as corrupted.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrDocumentTooLarge is returned when the PDF exceeds MaxDocumentSizeBytes.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrProcessingFailed is returned when Document AI processing fails.
	ErrProcessingFailed = errors.New("document AI processing failed")

	// ErrInvalidConfiguration is returned when project or location are missing.
	ErrInvalidConfiguration = errors.New("invalid Document AI configuration")

	// ErrInvalidCredentials is returned when the service account lacks permissions.
	ErrInvalidCredentials = errors.New("invalid Google Cloud credentials")

	// ErrProcessorNotFound is returned when the configured processor does not exist.
	ErrProcessorNotFound = errors.New("Document AI processor not found")

	// ErrQuotaExceeded is returned when Document AI API quota limits are exceeded.
	ErrQuotaExceeded = errors.New("Document AI API quota exceeded")

	// ErrMissingRequiredField is returned when neither an invoice number nor a
	// buyer could be read from the document.
	ErrMissingRequiredField = errors.New("missing required invoice field")
)

// ExtractionError wraps errors with the operation that failed.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "ExtractInvoice").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extract: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("extract: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError wraps err unless it already is an ExtractionError.
func WrapExtractionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return err
	}

	return &ExtractionError{Op: op, Err: err, Details: details}
}
