package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atinyakov/TapKeeper/internal/middleware"
	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/atinyakov/TapKeeper/internal/rfid"
	"github.com/atinyakov/TapKeeper/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

// fakeAuthService implements AuthService for testing. Users are keyed by
// password; cards by user id.
type fakeAuthService struct {
	users       map[string]string
	cards       map[string]string
	registerErr error
	registered  []models.RegisterRequest
}

func (f *fakeAuthService) RegisterUser(ctx context.Context, username, password, rfidUID string) (string, error) {
	if f.registerErr != nil {
		return "", f.registerErr
	}
	if password == "" || rfidUID == "" {
		return "", service.ErrMissingFields
	}
	f.registered = append(f.registered, models.RegisterRequest{Username: username, Password: password, RFIDUID: rfidUID})
	return "new-id", nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if password == "" {
		return nil, service.ErrMissingFields
	}
	if password == "explode" {
		return nil, errors.New("db down")
	}
	id, ok := f.users[password]
	if !ok {
		return nil, service.ErrInvalidCredentials
	}
	return &models.User{ID: id}, nil
}

func (f *fakeAuthService) VerifyToken(ctx context.Context, userID, rfidUID string) error {
	if f.cards[userID] != rfidUID {
		return service.ErrTokenMismatch
	}
	return nil
}

func newAuthHandler(svc *fakeAuthService) *AuthHandler {
	return &AuthHandler{
		AuthService: svc,
		Scanner:     rfid.NewQueueReader(4),
		TestReader:  rfid.NewQueueReader(4),
		Sessions:    middleware.NewCookieStore(testKey, false),
	}
}

func do(h http.HandlerFunc, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	h(rec, req)
	return rec
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		service      *fakeAuthService
		expectedCode int
		expectedBody string
	}{
		{
			name:         "invalid JSON",
			body:         `not a json`,
			service:      &fakeAuthService{},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"success":false,"message":"Invalid request."}`,
		},
		{
			name:         "missing card",
			body:         `{"password":"pw"}`,
			service:      &fakeAuthService{},
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"success":false,"message":"All fields are required."}`,
		},
		{
			name:         "duplicate",
			body:         `{"password":"pw","rfid_uid":"ABC"}`,
			service:      &fakeAuthService{registerErr: service.ErrUserExists},
			expectedCode: http.StatusConflict,
			expectedBody: `{"success":false,"message":"Username or RFID already exists."}`,
		},
		{
			name:         "repository failure",
			body:         `{"password":"pw","rfid_uid":"ABC"}`,
			service:      &fakeAuthService{registerErr: errors.New("db down")},
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"success":false,"message":"Server error."}`,
		},
		{
			name:         "success",
			body:         `{"username":"alice","password":"pw","rfid_uid":"ABC"}`,
			service:      &fakeAuthService{},
			expectedCode: http.StatusOK,
			expectedBody: `{"success":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHandler(tt.service)
			rec := do(h.Register, http.MethodPost, "/api/auth/register", tt.body)
			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	svc := &fakeAuthService{users: map[string]string{"correct": "u1"}}

	tests := []struct {
		name         string
		body         string
		expectedCode int
		expectedBody string
	}{
		{name: "invalid JSON", body: `{`, expectedCode: http.StatusBadRequest, expectedBody: `{"success":false,"message":"Invalid request."}`},
		{name: "missing password", body: `{}`, expectedCode: http.StatusBadRequest, expectedBody: `{"success":false,"message":"All fields are required."}`},
		{name: "wrong password", body: `{"password":"nope"}`, expectedCode: http.StatusUnauthorized, expectedBody: `{"success":false,"message":"Invalid credentials."}`},
		{name: "server error", body: `{"password":"explode"}`, expectedCode: http.StatusInternalServerError, expectedBody: `{"success":false,"message":"Server error."}`},
		{name: "success", body: `{"password":"correct"}`, expectedCode: http.StatusOK, expectedBody: `{"success":true,"user_id":"u1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHandler(svc)
			rec := do(h.Login, http.MethodPost, "/api/auth/login", tt.body)
			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
		})
	}
}

func TestAuthHandler_LoginSetsSession(t *testing.T) {
	svc := &fakeAuthService{users: map[string]string{"correct": "u1"}}

	t.Run("bound token", func(t *testing.T) {
		h := newAuthHandler(svc)
		rec := do(h.Login, http.MethodPost, "/api/auth/login", `{"password":"correct"}`)
		req := httptest.NewRequest(http.MethodGet, "/api/vault", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}
		assert.Equal(t, "u1", middleware.PendingUser(h.Sessions, req))
		_, ok := middleware.AuthenticatedUser(h.Sessions, req)
		assert.False(t, ok)
	})

	t.Run("password only", func(t *testing.T) {
		h := newAuthHandler(svc)
		h.PasswordOnly = true
		rec := do(h.Login, http.MethodPost, "/api/auth/login", `{"password":"correct"}`)
		req := httptest.NewRequest(http.MethodGet, "/api/vault", nil)
		for _, c := range rec.Result().Cookies() {
			req.AddCookie(c)
		}
		userID, ok := middleware.AuthenticatedUser(h.Sessions, req)
		assert.True(t, ok)
		assert.Equal(t, "u1", userID)
	})
}

func TestAuthHandler_Verify(t *testing.T) {
	svc := &fakeAuthService{
		users: map[string]string{"correct": "u1"},
		cards: map[string]string{"u1": "ABC"},
	}
	h := newAuthHandler(svc)
	login := do(h.Login, http.MethodPost, "/api/auth/login", `{"password":"correct"}`)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	rec := do(h.Verify, http.MethodPost, "/api/auth/rfid-verify", `{"user_id":"u1"}`, cookies...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Missing fields."}`, rec.Body.String())

	rec = do(h.Verify, http.MethodPost, "/api/auth/rfid-verify", `{"user_id":"u1","rfid_uid":"XYZ"}`, cookies...)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"RFID does not match."}`, rec.Body.String())

	rec = do(h.Verify, http.MethodPost, "/api/auth/rfid-verify", `{"user_id":"u1","rfid_uid":"ABC"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "no password step in this session")

	rec = do(h.Verify, http.MethodPost, "/api/auth/rfid-verify", `{"user_id":"u1","rfid_uid":"ABC"}`, cookies...)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/vault", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	userID, ok := middleware.AuthenticatedUser(h.Sessions, req)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
}

func TestAuthHandler_Scan(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{})

	rec := do(h.Scan, http.MethodGet, "/api/auth/rfid-scan", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":null}`, rec.Body.String())

	h.Scanner.(*rfid.QueueReader).Push("67 AE 7B B4")
	rec = do(h.Scan, http.MethodGet, "/api/auth/rfid-scan", "")
	assert.JSONEq(t, `{"uid":"67 AE 7B B4"}`, rec.Body.String())

	h.Scanner = nil
	rec = do(h.Scan, http.MethodGet, "/api/auth/rfid-scan", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"uid":null}`, rec.Body.String())
}

type failingReader struct{}

func (failingReader) Latest(context.Context) (string, error) { return "", rfid.ErrReaderStopped }

func TestAuthHandler_ScanReaderError(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{})
	h.Scanner = failingReader{}
	rec := do(h.Scan, http.MethodGet, "/api/auth/rfid-scan", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"uid":null}`, rec.Body.String())
}

func TestAuthHandler_TestReader(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{})

	rec := do(h.TestPush, http.MethodPost, "/api/auth/rfid-test", `{"uid":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.TestPush, http.MethodPost, "/api/auth/rfid-test", `{"uid":"ABC"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(h.TestScan, http.MethodGet, "/api/auth/rfid-test", "")
	assert.JSONEq(t, `{"uid":"ABC"}`, rec.Body.String())
	rec = do(h.TestScan, http.MethodGet, "/api/auth/rfid-test", "")
	assert.JSONEq(t, `{"uid":null}`, rec.Body.String())

	h.TestReader = nil
	assert.Equal(t, http.StatusNotFound, do(h.TestScan, http.MethodGet, "/api/auth/rfid-test", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h.TestPush, http.MethodPost, "/api/auth/rfid-test", `{"uid":"A"}`).Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	h := newAuthHandler(&fakeAuthService{})
	rec := do(h.Logout, http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}
