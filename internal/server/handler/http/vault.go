package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/TapKeeper/internal/middleware"
	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/atinyakov/TapKeeper/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// VaultService defines the vault operations required by the HTTP handlers.
type VaultService interface {
	// List returns the user's credentials.
	List(ctx context.Context, userID string) ([]models.Credential, error)
	// Add stores a new credential for the user.
	Add(ctx context.Context, userID string, draft models.CredentialDraft) (models.Credential, error)
	// Delete removes one of the user's credentials.
	Delete(ctx context.Context, userID, id string) error
}

// VaultHandler serves the credential vault of the signed-in user. It must
// run behind middleware.SessionAuth.
type VaultHandler struct {
	// VaultService performs the underlying vault operations.
	VaultService VaultService
	// Log receives handler errors. May be nil.
	Log *zap.Logger
}

func (h *VaultHandler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// List handles GET /api/vault.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	creds, err := h.VaultService.List(r.Context(), userID)
	if err != nil {
		h.log().Error("list credentials", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.VaultListResponse{Message: "Server error."})
		return
	}
	writeJSON(w, http.StatusOK, models.VaultListResponse{Success: true, Credentials: creds})
}

// Add handles POST /api/vault.
func (h *VaultHandler) Add(w http.ResponseWriter, r *http.Request) {
	var draft models.CredentialDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeStatus(w, http.StatusBadRequest, false, "Invalid request.")
		return
	}

	userID := middleware.GetUserIDFromContext(r.Context())
	_, err := h.VaultService.Add(r.Context(), userID, draft)
	switch {
	case errors.Is(err, service.ErrMissingFields):
		writeStatus(w, http.StatusBadRequest, false, "Name and password are required.")
	case err != nil:
		h.log().Error("add credential", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, false, "Server error.")
	default:
		writeStatus(w, http.StatusOK, true, "")
	}
}

// Delete handles DELETE /api/vault/{id}.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := h.VaultService.Delete(r.Context(), userID, id)
	switch {
	case errors.Is(err, service.ErrCredentialNotFound):
		writeStatus(w, http.StatusNotFound, false, "Entry not found.")
	case err != nil:
		h.log().Error("delete credential", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, false, "Server error.")
	default:
		writeStatus(w, http.StatusOK, true, "")
	}
}
