// Package flow drives the two-factor sign-in and sign-up state machines:
// a password step followed by polling for an RFID tap.
package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/atinyakov/TapKeeper/internal/client/poll"
	"github.com/atinyakov/TapKeeper/internal/models"
)

// AuthPhase is the state of a sign-in attempt.
type AuthPhase int

const (
	AwaitingPassword AuthPhase = iota
	AwaitingToken
	Verifying
	Succeeded
	Failed
)

func (p AuthPhase) String() string {
	switch p {
	case AwaitingPassword:
		return "awaiting_password"
	case AwaitingToken:
		return "awaiting_token"
	case Verifying:
		return "verifying"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// AuthSession is one sign-in attempt. UserID is set once the password is
// accepted; TokenUID holds the tag being verified and is cleared again if
// verification fails.
type AuthSession struct {
	ID       string
	Phase    AuthPhase
	UserID   models.UserID
	TokenUID string
}

// RegistrationPhase is the state of a sign-up attempt.
type RegistrationPhase int

const (
	CollectingPassword RegistrationPhase = iota
	CapturingToken
	ReadyToSubmit
	Submitted
)

func (p RegistrationPhase) String() string {
	switch p {
	case CollectingPassword:
		return "collecting_password"
	case CapturingToken:
		return "awaiting_token"
	case ReadyToSubmit:
		return "ready_to_submit"
	case Submitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// RegistrationSession is one sign-up attempt.
type RegistrationSession struct {
	ID       string
	Phase    RegistrationPhase
	TokenUID string
}

// Variant selects how much of the protocol the login controller enforces.
type Variant int

const (
	// VariantPasswordOnly ends the flow at the password check.
	VariantPasswordOnly Variant = iota
	// VariantBoundToken requires a tap of the tag bound to the account.
	VariantBoundToken
)

func (v Variant) String() string {
	if v == VariantBoundToken {
		return "token"
	}
	return "password"
}

// ParseVariant maps "password" and "token" to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "password", "a":
		return VariantPasswordOnly, nil
	case "token", "b", "":
		return VariantBoundToken, nil
	default:
		return 0, fmt.Errorf("unknown login variant %q", s)
	}
}

// Presenter shows flow progress to the user. Calls may arrive from the
// polling goroutine.
type Presenter interface {
	// PromptToken asks the user to tap their card.
	PromptToken()
	// TokenCaptured tells the user a card was read and the form can be
	// submitted.
	TokenCaptured(uid string)
	// ReportError shows an error produced asynchronously by the flow.
	ReportError(err error)
}

// Navigator moves the user to another area once a flow completes.
type Navigator interface {
	Navigate(path string)
}

type tokenScanner interface {
	ScanToken(ctx context.Context) (string, error)
}

// scanProbe turns one scan call into a poll result: an empty uid means the
// card has not been tapped yet and any error is retried.
func scanProbe(s tokenScanner) poll.Probe[string] {
	return func(ctx context.Context) poll.Result[string] {
		uid, err := s.ScanToken(ctx)
		if err != nil {
			return poll.TransientError[string](err)
		}
		if uid == "" {
			return poll.NotReady[string]()
		}
		return poll.Ready(uid)
	}
}
