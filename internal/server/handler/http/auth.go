// Package http provides the HTTP handlers of the TapKeeper reference
// backend: two-factor sign-in, registration and the credential vault.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/atinyakov/TapKeeper/internal/middleware"
	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/atinyakov/TapKeeper/internal/rfid"
	"github.com/atinyakov/TapKeeper/internal/service"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// AuthService defines the interface for authentication operations
// required by the HTTP handlers.
type AuthService interface {
	// RegisterUser creates an account bound to a card and returns its id.
	RegisterUser(ctx context.Context, username, password, rfidUID string) (string, error)
	// Authenticate checks a password, optionally scoped to a username.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	// VerifyToken checks that the card belongs to the user.
	VerifyToken(ctx context.Context, userID, rfidUID string) error
}

// AuthHandler handles HTTP requests for registration and the two-step
// sign-in.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Scanner is the card reader polled by GET /api/auth/rfid-scan.
	Scanner rfid.Reader
	// TestReader is the simulated reader behind /api/auth/rfid-test.
	TestReader *rfid.QueueReader
	// Sessions stores the signed session cookie.
	Sessions sessions.Store
	// PasswordOnly completes sign-in after the password step.
	PasswordOnly bool
	// Log receives handler errors. May be nil.
	Log *zap.Logger
}

func (h *AuthHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// Register creates an account. It expects a JSON body with "password" and
// "rfid_uid"; "username" is optional and defaults to the card uid.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, false, "Invalid request.")
		return
	}

	_, err := h.AuthService.RegisterUser(r.Context(), req.Username, req.Password, req.RFIDUID)
	switch {
	case errors.Is(err, service.ErrMissingFields):
		writeStatus(w, http.StatusBadRequest, false, "All fields are required.")
	case errors.Is(err, service.ErrUserExists):
		writeStatus(w, http.StatusConflict, false, "Username or RFID already exists.")
	case err != nil:
		h.log().Error("register failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, false, "Server error.")
	default:
		writeStatus(w, http.StatusOK, true, "")
	}
}

// Login checks the password. On success it answers with the user id the
// client needs for the card step, or, in password-only mode, signs the
// session in directly.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, false, "Invalid request.")
		return
	}

	user, err := h.AuthService.Authenticate(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrMissingFields):
		writeStatus(w, http.StatusBadRequest, false, "All fields are required.")
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		writeStatus(w, http.StatusUnauthorized, false, "Invalid credentials.")
		return
	case err != nil:
		h.log().Error("login failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, false, "Server error.")
		return
	}

	if h.PasswordOnly {
		err = middleware.MarkAuthenticated(h.Sessions, w, r, user.ID)
	} else {
		err = middleware.MarkPasswordVerified(h.Sessions, w, r, user.ID)
	}
	if err != nil {
		h.log().Error("save session", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, false, "Server error.")
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Success: true, UserID: models.UserID(user.ID)})
}

// Scan returns the latest tap on the hardware reader, {"uid": null} when
// there is none.
func (h *AuthHandler) Scan(w http.ResponseWriter, r *http.Request) {
	h.scan(w, r, h.Scanner)
}

// TestScan is Scan against the simulated reader.
func (h *AuthHandler) TestScan(w http.ResponseWriter, r *http.Request) {
	if h.TestReader == nil {
		writeJSON(w, http.StatusNotFound, models.ScanResponse{})
		return
	}
	h.scan(w, r, h.TestReader)
}

func (h *AuthHandler) scan(w http.ResponseWriter, r *http.Request, reader rfid.Reader) {
	if reader == nil {
		writeJSON(w, http.StatusInternalServerError, models.ScanResponse{})
		return
	}
	uid, err := reader.Latest(r.Context())
	if err != nil {
		h.log().Error("rfid scan failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ScanResponse{})
		return
	}
	var resp models.ScanResponse
	if uid != "" {
		resp.UID = &uid
	}
	writeJSON(w, http.StatusOK, resp)
}

// TestPush queues a simulated tap: {"uid": "..."}.
func (h *AuthHandler) TestPush(w http.ResponseWriter, r *http.Request) {
	if h.TestReader == nil {
		writeStatus(w, http.StatusNotFound, false, "Simulated reader disabled.")
		return
	}
	var req models.TestTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UID) == "" {
		writeStatus(w, http.StatusBadRequest, false, "Missing uid.")
		return
	}
	h.TestReader.Push(strings.TrimSpace(req.UID))
	writeStatus(w, http.StatusOK, true, "")
}

// Verify completes sign-in when the tapped card belongs to the user that
// passed the password step in this session.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, false, "Invalid request.")
		return
	}
	userID := string(req.UserID)
	if userID == "" || strings.TrimSpace(req.RFIDUID) == "" {
		writeStatus(w, http.StatusBadRequest, false, "Missing fields.")
		return
	}
	if pending := middleware.PendingUser(h.Sessions, r); pending != userID {
		writeStatus(w, http.StatusUnauthorized, false, "Password step required.")
		return
	}

	err := h.AuthService.VerifyToken(r.Context(), userID, req.RFIDUID)
	switch {
	case errors.Is(err, service.ErrTokenMismatch):
		writeStatus(w, http.StatusUnauthorized, false, "RFID does not match.")
		return
	case err != nil:
		h.log().Error("rfid verify failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, false, "Server error.")
		return
	}

	if err := middleware.MarkAuthenticated(h.Sessions, w, r, userID); err != nil {
		h.log().Error("save session", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, false, "Server error.")
		return
	}
	writeStatus(w, http.StatusOK, true, "")
}

// Logout ends the session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ClearSession(h.Sessions, w, r); err != nil {
		h.log().Error("clear session", zap.Error(err))
	}
	writeStatus(w, http.StatusOK, true, "")
}
