package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/reminder-be/internal/auth"
	"github.com/isdelr/reminder-be/internal/models"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/rs/zerolog/log"
)

// ReminderHandler handles HTTP requests for the caller's reminders. Every operation is
// scoped to the authenticated user; another user's reminder looks like a missing one.
type ReminderHandler struct {
	service services.ReminderServiceProvider
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(service services.ReminderServiceProvider) *ReminderHandler {
	return &ReminderHandler{service: service}
}

// GetAll lists the caller's reminders, soonest first.
func (h *ReminderHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	reminders, err := h.service.ListForOwner(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err, "list reminders")
		return
	}
	writeJSON(w, http.StatusOK, reminders)
}

// Create adds a reminder for the caller.
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload models.NewReminder
	if !decodeJSON(w, r, &payload) {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	reminder, err := h.service.CreateReminder(r.Context(), userID, payload)
	if err != nil {
		writeError(w, err, "create reminder")
		return
	}
	log.Info().Str("reminder_id", reminder.ID).Str("user_id", userID).Time("reminder_time", reminder.RemindAt).Msg("Reminder created")
	writeJSON(w, http.StatusCreated, reminder)
}

// Get returns one of the caller's reminders.
func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	reminder, err := h.service.GetReminder(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err, "get reminder")
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// Update replaces a reminder's notes. A null or blank value clears them.
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Notes *string `json:"notes"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}

	reminder, err := h.service.UpdateNotes(r.Context(), chi.URLParam(r, "id"), auth.UserIDFromContext(r.Context()), payload.Notes)
	if err != nil {
		writeError(w, err, "update reminder")
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// Complete marks a reminder done. Completing twice is not an error.
func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.MarkCompleted(r.Context(), id, auth.UserIDFromContext(r.Context())); err != nil {
		writeError(w, err, "complete reminder")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Reminder marked as completed"})
}

// Delete removes a reminder.
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteReminder(r.Context(), id, auth.UserIDFromContext(r.Context())); err != nil {
		writeError(w, err, "delete reminder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
