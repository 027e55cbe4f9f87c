// Package vault keeps the client-side view of the credential vault: the
// list of cards, their disclosure state and the draft of a new entry.
package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/atinyakov/TapKeeper/internal/models"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DeletePrompt is the question asked before an entry is removed.
const DeletePrompt = "Delete this entry?"

// Backend is the part of the API the vault talks to.
type Backend interface {
	ListCredentials(ctx context.Context) (models.VaultListResponse, error)
	AddCredential(ctx context.Context, draft models.CredentialDraft) (models.StatusResponse, error)
	DeleteCredential(ctx context.Context, id string) (models.StatusResponse, error)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Card is one credential as shown to the user.
type Card struct {
	models.Credential
	Expanded bool
	Revealed bool
}

// MaskedPassword is the password as shown while it is hidden.
func (c Card) MaskedPassword() string {
	if c.Password == "" {
		return ""
	}
	return strings.Repeat("•", 8)
}

// ShownPassword returns the password in clear text if revealed, masked
// otherwise.
func (c Card) ShownPassword() string {
	if c.Revealed {
		return c.Password
	}
	return c.MaskedPassword()
}

// ViewModel holds the rendered vault. All methods are safe for concurrent
// use.
type ViewModel struct {
	backend Backend
	log     *zap.Logger

	mu       sync.Mutex
	creds    []models.Credential
	expanded map[string]bool
	revealed map[string]bool
	draft    models.CredentialDraft

	issued  uint64
	applied uint64
	dropped uint64
}

// NewViewModel returns an empty view model. log may be nil.
func NewViewModel(backend Backend, log *zap.Logger) *ViewModel {
	if log == nil {
		log = zap.NewNop()
	}
	return &ViewModel{
		backend:  backend,
		log:      log.Named("vault"),
		expanded: make(map[string]bool),
		revealed: make(map[string]bool),
	}
}

// Load fetches the vault and replaces the whole card set. When loads
// overlap only the most recently issued one is applied.
func (vm *ViewModel) Load(ctx context.Context) error {
	vm.mu.Lock()
	vm.issued++
	seq := vm.issued
	vm.mu.Unlock()

	resp, err := vm.backend.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load vault: %w", err)
	}
	if !resp.Success {
		return ErrLoadRejected
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if seq <= vm.applied {
		vm.dropped++
		vm.log.Debug("dropping stale vault load", zap.Uint64("seq", seq), zap.Uint64("applied", vm.applied))
		return nil
	}
	vm.applied = seq
	vm.creds = append([]models.Credential(nil), resp.Credentials...)
	vm.expanded = make(map[string]bool)
	vm.revealed = make(map[string]bool)
	vm.log.Debug("vault loaded", zap.Int("count", len(vm.creds)))
	return nil
}

// Dropped reports how many load responses arrived too late to be applied.
func (vm *ViewModel) Dropped() uint64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.dropped
}

// Cards returns a snapshot of the current cards in backend order.
func (vm *ViewModel) Cards() []Card {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	cards := make([]Card, 0, len(vm.creds))
	for _, c := range vm.creds {
		cards = append(cards, Card{
			Credential: c,
			Expanded:   vm.expanded[c.ID],
			Revealed:   vm.revealed[c.ID],
		})
	}
	return cards
}

// ToggleExpanded flips whether the card with id shows its details.
func (vm *ViewModel) ToggleExpanded(id string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.expanded[id] = !vm.expanded[id]
}

// TogglePassword flips whether the card with id shows its password.
func (vm *ViewModel) TogglePassword(id string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.revealed[id] = !vm.revealed[id]
}

// SetDraft replaces the new-entry form.
func (vm *ViewModel) SetDraft(d models.CredentialDraft) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.draft = d
}

// Draft returns the new-entry form.
func (vm *ViewModel) Draft() models.CredentialDraft {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.draft
}

// Validate checks the required fields of d.
func Validate(d models.CredentialDraft) error {
	var errs error
	if strings.TrimSpace(d.Name) == "" {
		errs = multierr.Append(errs, &FieldError{Field: "name"})
	}
	if d.Password == "" {
		errs = multierr.Append(errs, &FieldError{Field: "password"})
	}
	if errs != nil {
		return newValidationError(errs)
	}
	return nil
}

// Add stores the current draft. Once the backend accepts it the draft is
// cleared and the vault reloaded; a failed reload then comes back as a
// *ReloadError. Any earlier failure keeps the draft.
func (vm *ViewModel) Add(ctx context.Context) error {
	draft := vm.Draft()
	if err := Validate(draft); err != nil {
		return err
	}

	resp, err := vm.backend.AddCredential(ctx, draft)
	if err != nil {
		return fmt.Errorf("add credential: %w", err)
	}
	if !resp.Success {
		return &AddRejectedError{Message: resp.Message}
	}

	vm.mu.Lock()
	if vm.draft == draft {
		vm.draft = models.CredentialDraft{}
	}
	vm.mu.Unlock()

	if err := vm.Load(ctx); err != nil {
		return &ReloadError{Done: "entry added", Err: err}
	}
	return nil
}

// Delete removes the entry with id after confirm agrees, then reloads.
func (vm *ViewModel) Delete(ctx context.Context, id string, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		return ErrNotConfirmed
	}

	resp, err := vm.backend.DeleteCredential(ctx, id)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if !resp.Success {
		return ErrDeleteRejected
	}
	if err := vm.Load(ctx); err != nil {
		return &ReloadError{Done: "entry deleted", Err: err}
	}
	return nil
}
