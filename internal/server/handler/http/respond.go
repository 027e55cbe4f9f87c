package http

import (
	"encoding/json"
	"net/http"

	"github.com/atinyakov/TapKeeper/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeStatus(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, models.StatusResponse{Success: success, Message: message})
}
