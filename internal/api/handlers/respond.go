package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/isdelr/reminder-be/internal/services"
	"github.com/rs/zerolog/log"
)

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps a service error onto a status code. Store failures are logged here;
// their detail never reaches the client.
func writeError(w http.ResponseWriter, err error, action string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		http.Error(w, ve.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, services.ErrEmailTaken):
		http.Error(w, "Email already registered", http.StatusConflict)
	case errors.Is(err, services.ErrInvalidCredentials):
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, services.ErrStoreUnavailable):
		log.Error().Err(err).Msg("Failed to " + action)
		http.Error(w, "Storage temporarily unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("Failed to " + action)
		http.Error(w, "Failed to "+action, http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
