package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/reminder-be/internal/auth"
	"github.com/isdelr/reminder-be/internal/services"
)

const maxEventLimit = 100

// EventHandler handles HTTP requests related to the caller's activity log.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20 // Default limit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.service.GetRecentEvents(r.Context(), auth.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, err, "retrieve events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
