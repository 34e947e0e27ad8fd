package utils

import (
	"errors"
	"fmt"
)

// ValidationError reports bad input shape: invalid chunking configuration,
// an out-of-range limit, a malformed language pair. Rejected immediately.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a referenced entity that does not exist. Surfaced
// distinctly from validation errors so callers can map it to 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// DimensionMismatchError reports two vectors of different lengths being
// compared. This is a programming-contract violation, never a soft failure.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// CorruptionError reports stored data violating a structural invariant, such
// as a persisted vector whose width differs from the model's output width.
// Fatal for the affected row; never silently coerced.
type CorruptionError struct {
	Subject string
	Detail  string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("corrupted %s: %s", e.Subject, e.Detail)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsDimensionMismatch(err error) bool {
	var dm *DimensionMismatchError
	return errors.As(err, &dm)
}

func IsCorruption(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}
