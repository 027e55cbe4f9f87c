// Package cli holds the terminal pieces of the TapKeeper client: line and
// password prompts, a presenter that turns flow callbacks into blocking
// waits, and the interactive vault shell.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinyakov/TapKeeper/internal/models"
	"golang.org/x/term"
)

// Prompter reads answers from one input stream.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	// readPassword reads one masked line. Nil falls back to a plain line.
	readPassword func() ([]byte, error)
}

// NewPrompter reads from in and writes prompts to out. When in is a
// terminal, passwords are read without echo.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.readPassword = func() ([]byte, error) { return term.ReadPassword(fd) }
	}
	return p
}

// Line prints prompt and returns the next input line without surrounding
// spaces. io.EOF is returned once the input is exhausted.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if line == "" {
			return "", io.EOF
		}
	default:
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Password prompts for a secret with masked input where possible.
func (p *Prompter) Password(prompt string) (string, error) {
	if p.readPassword == nil {
		return p.Line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *Prompter) Confirm(prompt string) bool {
	answer, err := p.Line(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// Draft asks for the fields of a vault entry. Fields already set in prev
// are shown in brackets and kept when the answer is blank, so a rejected
// entry can be corrected without retyping it.
func (p *Prompter) Draft(prev models.CredentialDraft) (models.CredentialDraft, error) {
	d := prev
	fields := []struct {
		label  string
		value  *string
		secret bool
	}{
		{"Name", &d.Name, false},
		{"Username", &d.Username, false},
		{"Password", &d.Password, true},
		{"URL (optional)", &d.URL, false},
		{"Notes (optional)", &d.Notes, false},
	}
	for _, f := range fields {
		prompt := f.label + ": "
		read := p.Line
		if f.secret {
			read = p.Password
			if *f.value != "" {
				prompt = f.label + " [keep]: "
			}
		} else if *f.value != "" {
			prompt = fmt.Sprintf("%s [%s]: ", f.label, *f.value)
		}
		answer, err := read(prompt)
		if err != nil {
			return d, err
		}
		if answer != "" {
			*f.value = answer
		}
	}
	return d, nil
}
