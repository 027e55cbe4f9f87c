package service

import (
	"context"
	"errors"
	"strings"

	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/google/uuid"
)

// ErrCredentialNotFound is returned when a delete matches nothing.
var ErrCredentialNotFound = errors.New("credential not found")

// VaultRepository defines the persistence operations needed by the VaultService.
type VaultRepository interface {
	// ListCredentials returns the live credentials of the user.
	ListCredentials(ctx context.Context, userID string) ([]models.Credential, error)
	// AddCredential stores a credential for the user.
	AddCredential(ctx context.Context, userID string, c models.Credential) error
	// DeleteCredentials soft-deletes credentials and reports how many matched.
	DeleteCredentials(ctx context.Context, userID string, ids []string) (int64, error)
}

// VaultService implements vault business logic for a signed-in user.
type VaultService struct {
	// repo is the underlying persistence repository.
	repo VaultRepository
}

// NewVaultService constructs a VaultService with the provided VaultRepository.
func NewVaultService(repo VaultRepository) *VaultService {
	return &VaultService{repo: repo}
}

// List returns the user's credentials.
func (s *VaultService) List(ctx context.Context, userID string) ([]models.Credential, error) {
	return s.repo.ListCredentials(ctx, userID)
}

// Add stores draft under a fresh id. Name and password are required.
func (s *VaultService) Add(ctx context.Context, userID string, draft models.CredentialDraft) (models.Credential, error) {
	if strings.TrimSpace(draft.Name) == "" || draft.Password == "" {
		return models.Credential{}, ErrMissingFields
	}
	c := draft.Credential(uuid.NewString())
	if err := s.repo.AddCredential(ctx, userID, c); err != nil {
		return models.Credential{}, err
	}
	return c, nil
}

// Delete removes the credential id of the user.
func (s *VaultService) Delete(ctx context.Context, userID, id string) error {
	n, err := s.repo.DeleteCredentials(ctx, userID, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCredentialNotFound
	}
	return nil
}
