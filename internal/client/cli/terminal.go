package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/atinyakov/TapKeeper/internal/client/flow"
)

// Terminal prints flow progress and lets a command block until the flow
// navigates away, captures a card or gives up. It implements both
// flow.Presenter and flow.Navigator.
type Terminal struct {
	out       io.Writer
	captured  chan string
	navigated chan string
	failed    chan error
}

// NewTerminal writes progress messages to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:       out,
		captured:  make(chan string, 1),
		navigated: make(chan string, 1),
		failed:    make(chan error, 1),
	}
}

func (t *Terminal) PromptToken() {
	fmt.Fprintln(t.out, "Tap your card on the reader...")
}

func (t *Terminal) TokenCaptured(uid string) {
	fmt.Fprintf(t.out, "Card read: %s\n", uid)
	offer(t.captured, uid)
}

// ReportError prints err. A polling timeout also ends the current wait.
func (t *Terminal) ReportError(err error) {
	fmt.Fprintf(t.out, "Error: %v\n", err)
	if errors.Is(err, flow.ErrTokenTimeout) {
		offer(t.failed, err)
	}
}

func (t *Terminal) Navigate(path string) {
	offer(t.navigated, path)
}

// WaitNavigation blocks until the flow navigates and returns the path.
func (t *Terminal) WaitNavigation(ctx context.Context) (string, error) {
	select {
	case path := <-t.navigated:
		return path, nil
	case err := <-t.failed:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// WaitToken blocks until a card has been captured and returns its uid.
func (t *Terminal) WaitToken(ctx context.Context) (string, error) {
	select {
	case uid := <-t.captured:
		return uid, nil
	case err := <-t.failed:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// offer replaces any value still waiting in ch with v.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
