package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/atinyakov/TapKeeper/internal/client/api"
	"github.com/atinyakov/TapKeeper/internal/client/flow"
)

// SignIn asks for the password until the backend accepts it, then waits
// until the flow navigates and returns the path. Rejected passwords and an
// unreachable backend lead back to the prompt.
func SignIn(ctx context.Context, login *flow.LoginController, term *Terminal, prompt *Prompter, errOut io.Writer, username string) (string, error) {
	for {
		password, err := prompt.Password("Password: ")
		if err != nil {
			return "", err
		}
		err = login.SubmitPassword(ctx, username, password)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}
	return term.WaitNavigation(ctx)
}

// SignUp collects a confirmed password, waits for a card and submits the
// account. A rejected or failed submission keeps the captured card and
// offers to retry under another username.
func SignUp(ctx context.Context, reg *flow.RegistrationController, term *Terminal, prompt *Prompter, errOut io.Writer, username string) error {
	var password string
	for {
		var err error
		if password, err = prompt.Password("Password: "); err != nil {
			return err
		}
		confirm, err := prompt.Password("Confirm password: ")
		if err != nil {
			return err
		}
		if err = reg.CollectPassword(ctx, password, confirm); err == nil {
			break
		}
		fmt.Fprintf(errOut, "Error: %v\n", err)
	}

	uid, err := term.WaitToken(ctx)
	if err != nil {
		return err
	}

	for {
		err := reg.Submit(ctx, username, password, uid)
		if err == nil {
			break
		}
		var rejected *flow.RejectedError
		if !errors.As(err, &rejected) && !api.IsTransport(err) {
			return err
		}
		fmt.Fprintf(errOut, "Error: %v\n", err)

		answer, err := prompt.Line(fmt.Sprintf("Username (blank to keep %q): ", username))
		if err != nil {
			return err
		}
		if answer != "" {
			username = answer
		}
	}

	_, err = term.WaitNavigation(ctx)
	return err
}
