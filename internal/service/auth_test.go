package service

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/atinyakov/TapKeeper/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockAuthRepo struct {
	CreateUserFunc        func(ctx context.Context, u models.User) error
	GetUserByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	GetUserByIDFunc       func(ctx context.Context, id string) (*models.User, error)
	ListUsersFunc         func(ctx context.Context) ([]models.User, error)
}

func (m *mockAuthRepo) CreateUser(ctx context.Context, u models.User) error {
	return m.CreateUserFunc(ctx, u)
}
func (m *mockAuthRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.GetUserByUsernameFunc(ctx, username)
}
func (m *mockAuthRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.GetUserByIDFunc(ctx, id)
}
func (m *mockAuthRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	return m.ListUsersFunc(ctx)
}

func newTestAuthService(repo AuthRepository) *Service {
	s := NewAuthService(repo)
	s.cost = bcrypt.MinCost
	return s
}

func hashOf(t *testing.T, password string) []byte {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func TestRegisterUser_Success(t *testing.T) {
	var stored models.User
	repo := &mockAuthRepo{CreateUserFunc: func(ctx context.Context, u models.User) error {
		stored = u
		return nil
	}}
	svc := newTestAuthService(repo)

	id, err := svc.RegisterUser(context.Background(), "alice", "secret", " ABC ")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, id)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, "ABC", stored.RFIDUID)
	assert.NoError(t, bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("secret")))
}

func TestRegisterUser_UsernameDefaultsToCard(t *testing.T) {
	var stored models.User
	repo := &mockAuthRepo{CreateUserFunc: func(ctx context.Context, u models.User) error {
		stored = u
		return nil
	}}
	svc := newTestAuthService(repo)

	_, err := svc.RegisterUser(context.Background(), "", "secret", "67 AE 7B B4")
	require.NoError(t, err)
	assert.Equal(t, "67 AE 7B B4", stored.Username)
}

func TestRegisterUser_Errors(t *testing.T) {
	dbErr := errors.New("db down")
	tests := []struct {
		name     string
		password string
		uid      string
		repoErr  error
		want     error
	}{
		{name: "missing password", uid: "ABC", want: ErrMissingFields},
		{name: "missing card", password: "pw", uid: "  ", want: ErrMissingFields},
		{name: "duplicate", password: "pw", uid: "ABC", repoErr: repository.ErrConflict, want: ErrUserExists},
		{name: "repository failure", password: "pw", uid: "ABC", repoErr: dbErr, want: dbErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAuthRepo{CreateUserFunc: func(context.Context, models.User) error { return tt.repoErr }}
			_, err := newTestAuthService(repo).RegisterUser(context.Background(), "u", tt.password, tt.uid)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthenticate_ByUsername(t *testing.T) {
	user := &models.User{ID: "u1", Username: "alice", PasswordHash: hashOf(t, "secret")}
	repo := &mockAuthRepo{GetUserByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
		if username != "alice" {
			return nil, repository.ErrNotFound
		}
		return user, nil
	}}
	svc := newTestAuthService(repo)

	got, err := svc.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	_, err = svc.Authenticate(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "mallory", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "alice", "")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestAuthenticate_PasswordOnly(t *testing.T) {
	users := []models.User{
		{ID: "u1", PasswordHash: hashOf(t, "first")},
		{ID: "u2", PasswordHash: hashOf(t, "second")},
	}
	repo := &mockAuthRepo{ListUsersFunc: func(context.Context) ([]models.User, error) { return users, nil }}
	svc := newTestAuthService(repo)

	got, err := svc.Authenticate(context.Background(), "", "second")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.ID)

	_, err = svc.Authenticate(context.Background(), "", "third")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken(t *testing.T) {
	repo := &mockAuthRepo{GetUserByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
		switch id {
		case "u1":
			return &models.User{ID: "u1", RFIDUID: "ABC"}, nil
		case "broken":
			return nil, errors.New("db down")
		default:
			return nil, repository.ErrNotFound
		}
	}}
	svc := newTestAuthService(repo)

	assert.NoError(t, svc.VerifyToken(context.Background(), "u1", "ABC"))
	assert.ErrorIs(t, svc.VerifyToken(context.Background(), "u1", "XYZ"), ErrTokenMismatch)
	assert.ErrorIs(t, svc.VerifyToken(context.Background(), "ghost", "ABC"), ErrTokenMismatch)
	assert.ErrorIs(t, svc.VerifyToken(context.Background(), "", "ABC"), ErrMissingFields)
	assert.ErrorIs(t, svc.VerifyToken(context.Background(), "u1", ""), ErrMissingFields)

	err := svc.VerifyToken(context.Background(), "broken", "ABC")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenMismatch)
}
