package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/TapKeeper/internal/client/vault"
)

const shellHelp = "Available commands: help, list, open <id>, reveal <id>, add, delete <id>, reload, logout, exit"

// Shell is the interactive vault view shown after a successful sign-in.
type Shell struct {
	vm     *vault.ViewModel
	prompt *Prompter
	out    io.Writer
	logout func(ctx context.Context) error
}

// NewShell builds a shell over vm. logout is called by the logout command
// and may be nil.
func NewShell(vm *vault.ViewModel, prompt *Prompter, out io.Writer, logout func(ctx context.Context) error) *Shell {
	return &Shell{vm: vm, prompt: prompt, out: out, logout: logout}
}

// Run loads the vault and accepts commands until exit, logout or the end
// of input. Command failures are printed and the loop goes on.
func (s *Shell) Run(ctx context.Context) error {
	s.reload(ctx)

	for {
		line, err := s.prompt.Line("tapkeeper> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Fprintln(s.out, shellHelp)
		case "list":
			s.render()
		case "reload":
			s.reload(ctx)
		case "open":
			if id, ok := s.arg(args, "open <id>"); ok {
				s.vm.ToggleExpanded(id)
				s.render()
			}
		case "reveal":
			if id, ok := s.arg(args, "reveal <id>"); ok {
				s.vm.TogglePassword(id)
				s.render()
			}
		case "add":
			s.add(ctx)
		case "delete":
			if id, ok := s.arg(args, "delete <id>"); ok {
				s.delete(ctx, id)
			}
		case "logout":
			if s.logout != nil {
				if err := s.logout(ctx); err != nil {
					fmt.Fprintf(s.out, "Error: %v\n", err)
					continue
				}
			}
			fmt.Fprintln(s.out, "Logged out")
			return nil
		case "exit":
			fmt.Fprintln(s.out, "Bye")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func (s *Shell) arg(args []string, usage string) (string, bool) {
	if len(args) < 2 {
		fmt.Fprintf(s.out, "Usage: %s\n", usage)
		return "", false
	}
	return args[1], true
}

func (s *Shell) render() {
	if err := s.vm.Render(s.out); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Shell) reload(ctx context.Context) {
	if err := s.vm.Load(ctx); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.render()
}

func (s *Shell) add(ctx context.Context) {
	draft, err := s.prompt.Draft(s.vm.Draft())
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.vm.SetDraft(draft)
	err = s.vm.Add(ctx)
	var stale *vault.ReloadError
	switch {
	case errors.As(err, &stale):
		fmt.Fprintf(s.out, "Entry added, but the list could not be reloaded: %v\n", stale.Err)
		return
	case err != nil:
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Entry added")
	s.render()
}

func (s *Shell) delete(ctx context.Context, id string) {
	err := s.vm.Delete(ctx, id, vault.ConfirmFunc(s.prompt.Confirm))
	switch {
	case errors.Is(err, vault.ErrNotConfirmed):
		fmt.Fprintln(s.out, "Cancelled")
	case err != nil:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	default:
		fmt.Fprintln(s.out, "Entry deleted")
		s.render()
	}
}
