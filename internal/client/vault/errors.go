package vault

import (
	"errors"
	"strings"

	"go.uber.org/multierr"
)

var (
	// ErrLoadRejected is returned when the backend answers the list request
	// without success.
	ErrLoadRejected = errors.New("vault could not be loaded")
	// ErrDeleteRejected is returned when the backend refuses a delete.
	ErrDeleteRejected = errors.New("failed to delete entry")
	// ErrNotConfirmed is returned when the user declines a delete. Nothing
	// is sent to the backend.
	ErrNotConfirmed = errors.New("delete not confirmed")
)

// FieldError reports one missing required field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + " is required"
}

// ValidationError lists every required field missing from a draft.
type ValidationError struct {
	Fields []string
	err    error
}

func newValidationError(errs error) *ValidationError {
	ve := &ValidationError{err: errs}
	for _, err := range multierr.Errors(errs) {
		var fe *FieldError
		if errors.As(err, &fe) {
			ve.Fields = append(ve.Fields, fe.Field)
		}
	}
	return ve
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid entry"
	}
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Unwrap exposes the individual field errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return multierr.Errors(e.err)
}

// AddRejectedError carries the backend's reason for refusing a new entry.
type AddRejectedError struct {
	Message string
}

func (e *AddRejectedError) Error() string {
	if e.Message == "" {
		return "failed to add credential"
	}
	return "failed to add credential: " + e.Message
}

// ReloadError reports that a write was accepted but the list could not be
// refreshed afterwards. The shown list is stale until the next Load.
type ReloadError struct {
	// Done describes the accepted write, e.g. "entry added".
	Done string
	Err  error
}

func (e *ReloadError) Error() string {
	return e.Done + ", reload failed: " + e.Err.Error()
}

func (e *ReloadError) Unwrap() error { return e.Err }
