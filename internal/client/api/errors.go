package api

import (
	"errors"
	"fmt"
)

// TransportError reports that a backend call did not produce a usable
// response: the connection failed or the body was not valid JSON.
type TransportError struct {
	// Op names the backend operation, e.g. "login" or "vault add".
	Op string
	// Status is the HTTP status code, zero when no response arrived.
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
