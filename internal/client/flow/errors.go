package flow

import "errors"

var (
	// ErrInvalidCredentials is returned when the backend rejects the password.
	ErrInvalidCredentials = errors.New("incorrect password, try again")
	// ErrTokenMismatch is reported when the tapped card is not the one bound
	// to the account. The flow goes back to waiting for a tap.
	ErrTokenMismatch = errors.New("card does not match this account")
	// ErrTokenTimeout is reported when polling gave up before a card was read.
	ErrTokenTimeout = errors.New("timed out waiting for a card tap")
	// ErrMissingUserID is returned when the backend accepts the password but
	// does not say which user it belongs to.
	ErrMissingUserID = errors.New("backend accepted the password without a user id")
	// ErrSuperseded is returned by a call whose session was replaced or
	// cancelled while it was waiting on the backend.
	ErrSuperseded = errors.New("flow was cancelled or restarted")
)

// ValidationKind names a client-side input problem.
type ValidationKind int

const (
	ValidationEmpty ValidationKind = iota + 1
	ValidationMismatch
	ValidationNoToken
)

// ValidationError is returned before any network call when input is
// unusable. It matches other ValidationErrors of the same kind with
// errors.Is.
type ValidationError struct {
	Kind ValidationKind
}

// Sentinels for errors.Is.
var (
	ErrEmptyPassword    = &ValidationError{Kind: ValidationEmpty}
	ErrPasswordMismatch = &ValidationError{Kind: ValidationMismatch}
	ErrNoToken          = &ValidationError{Kind: ValidationNoToken}
)

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ValidationEmpty:
		return "password cannot be empty"
	case ValidationMismatch:
		return "passwords do not match"
	case ValidationNoToken:
		return "please tap your card before submitting"
	default:
		return "invalid input"
	}
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

// RejectedError carries the backend's reason for refusing a registration.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "registration failed"
	}
	return "registration failed: " + e.Message
}
