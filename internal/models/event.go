package models

import "time"

// Event represents a loggable action or notification outcome.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "reminder.create", "reminder.notify.fail"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	UserID    *string   `json:"userId,omitempty"` // Nullable for system-wide events
	CreatedAt time.Time `json:"createdAt"`
}
