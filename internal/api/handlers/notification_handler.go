package handlers

import (
	"net/http"

	"github.com/isdelr/reminder-be/internal/auth"
	"github.com/isdelr/reminder-be/internal/notify"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/rs/zerolog/log"
)

// NotificationHandler lets a user check that notifications reach them.
type NotificationHandler struct {
	users  services.UserServiceProvider
	mailer Mailer
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(users services.UserServiceProvider, mailer Mailer) *NotificationHandler {
	return &NotificationHandler{users: users, mailer: mailer}
}

// SendTest delivers a test notification to the caller's address.
func (h *NotificationHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUserByID(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, err, "load user")
		return
	}

	to := notify.Recipient{UserID: user.ID, Address: user.Email, Name: user.FullName}
	if err := h.mailer.SendTest(r.Context(), to); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Test notification failed")
		http.Error(w, "Failed to send test notification", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Test notification sent to " + user.Email})
}
