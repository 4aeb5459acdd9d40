package wizard

import (
	"errors"
	"fmt"
)

// Common wizard errors
var (
	// ErrBusy is returned while a fetch or submit of the same session is in flight.
	ErrBusy = errors.New("operation already in progress")

	// ErrInvalidTransition is returned for navigation the current step does not allow.
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrNotAllowed is returned for selection edits outside the steps that permit them.
	ErrNotAllowed = errors.New("operation not allowed in current step")

	// ErrClosed is returned for any change after the session was submitted or cancelled.
	ErrClosed = errors.New("wizard session is closed")

	// ErrUnknownDocument is returned for an adjustment naming a document not
	// fetched for the period.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrNotSelectable is returned when an adjustment tries to include a
	// non-deductible or ineligible document.
	ErrNotSelectable = errors.New("document cannot be selected")
)

// StepError reports an operation rejected in a given step.
type StepError struct {
	Op   string
	Step Step
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("wizard: %s in step %s: %v", e.Op, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *StepError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
