// Package service provides authentication and vault business logic,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/atinyakov/TapKeeper/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrMissingFields is returned when a required input is empty.
	ErrMissingFields = errors.New("missing required fields")
	// ErrUserExists is returned when the username or RFID uid is taken.
	ErrUserExists = errors.New("username or RFID already exists")
	// ErrInvalidCredentials is returned when no account matches the password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenMismatch is returned when the tapped card is not bound to the user.
	ErrTokenMismatch = errors.New("RFID does not match")
)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// CreateUser stores a new account; repository.ErrConflict on duplicates.
	CreateUser(ctx context.Context, u models.User) error
	// GetUserByUsername returns repository.ErrNotFound when absent.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// GetUserByID returns repository.ErrNotFound when absent.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// ListUsers returns every account.
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Service implements authentication operations by delegating
// to an AuthRepository.
type Service struct {
	// repo performs the data-layer operations.
	repo AuthRepository
	// cost is the bcrypt work factor.
	cost int
}

// NewAuthService constructs a new Service using the provided repository.
func NewAuthService(repo AuthRepository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// RegisterUser creates an account bound to rfidUID. An empty username
// defaults to the card uid. It returns the new user's id.
func (s *Service) RegisterUser(ctx context.Context, username, password, rfidUID string) (string, error) {
	rfidUID = strings.TrimSpace(rfidUID)
	if password == "" || rfidUID == "" {
		return "", ErrMissingFields
	}
	if strings.TrimSpace(username) == "" {
		username = rfidUID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		RFIDUID:      rfidUID,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "", ErrUserExists
		}
		return "", err
	}
	return u.ID, nil
}

// Authenticate checks password for username. Without a username the
// password is matched against every account.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if password == "" {
		return nil, ErrMissingFields
	}

	if username != "" {
		u, err := s.repo.GetUserByUsername(ctx, username)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		if err != nil {
			return nil, err
		}
		if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
			return nil, ErrInvalidCredentials
		}
		return u, nil
	}

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if bcrypt.CompareHashAndPassword(users[i].PasswordHash, []byte(password)) == nil {
			return &users[i], nil
		}
	}
	return nil, ErrInvalidCredentials
}

// VerifyToken checks that rfidUID is the card bound to userID.
func (s *Service) VerifyToken(ctx context.Context, userID, rfidUID string) error {
	rfidUID = strings.TrimSpace(rfidUID)
	if userID == "" || rfidUID == "" {
		return ErrMissingFields
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTokenMismatch
	}
	if err != nil {
		return err
	}
	if u.RFIDUID != rfidUID {
		return ErrTokenMismatch
	}
	return nil
}
