/*
errors.go - Centralized error types for standing-order templates

ERROR CATEGORIES:
  1. Validation errors - template rejected (empty lines, bad dates, bad interval)
  2. Transition errors - state machine refused the operation
  3. Store errors - missing rows / templates
  4. Corrupt rows - stored rows that no longer decode

USAGE:
  if errors.Is(err, recurring.ErrTemplateCancelled) {
      // cancelled templates are inert
  }

SEE ALSO:
  - guards.go: produces transition errors
  - api/handlers.go: maps these errors to HTTP status codes
*/
package recurring

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTemplateNotFound is returned when no template has the given id.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrRowNotFound is returned by a TabularStore when no row has the key.
	ErrRowNotFound = errors.New("row not found")

	// ErrDuplicateRow is returned by AppendRow when the key already exists.
	ErrDuplicateRow = errors.New("duplicate row key")

	// ErrValidation wraps every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when the current status does not
	// allow the requested operation (e.g. resuming an active template).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTemplateCancelled is returned for any mutation of a cancelled
	// template. Cancelled is terminal.
	ErrTemplateCancelled = errors.New("template is cancelled")

	// ErrCorruptRow wraps every CorruptRowError.
	ErrCorruptRow = errors.New("corrupt template row")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError lists every problem found in a create/update request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid template: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransitionError describes a refused status change.
type TransitionError struct {
	TemplateID TemplateID
	From       Status
	Operation  string
	Reason     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s template %s (status %s): %s", e.Operation, e.TemplateID, e.From, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	if e.From == StatusCancelled {
		return ErrTemplateCancelled
	}
	return ErrInvalidTransition
}

// CorruptRowError is one templates-table row that could not be decoded.
type CorruptRowError struct {
	Key string
	Err error
}

func (e *CorruptRowError) Error() string {
	return fmt.Sprintf("template row %s: %v", e.Key, e.Err)
}

func (e *CorruptRowError) Unwrap() []error {
	return []error{ErrCorruptRow, e.Err}
}

// CorruptRowsError is returned by Store.Active together with the templates
// that did decode.
type CorruptRowsError struct {
	Rows []*CorruptRowError
}

func (e *CorruptRowsError) Error() string {
	if len(e.Rows) == 1 {
		return e.Rows[0].Error()
	}
	return fmt.Sprintf("%d corrupt template rows, first: %v", len(e.Rows), e.Rows[0])
}

func (e *CorruptRowsError) Unwrap() error {
	return ErrCorruptRow
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict returns true if the template's status refused the operation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrTemplateCancelled)
}

// IsNotFound returns true if the error indicates a missing template or row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) || errors.Is(err, ErrRowNotFound)
}
