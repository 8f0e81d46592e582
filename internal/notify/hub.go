package notify

import (
	"context"
	"time"

	"github.com/isdelr/reminder-be/internal/websocket"
)

// UserBroadcaster pushes a payload to every live connection of one user.
type UserBroadcaster interface {
	SendToUser(userID string, message []byte)
}

// HubChannel mirrors reminder notifications to the owner's open websocket sessions.
type HubChannel struct {
	hub UserBroadcaster
}

// NewHubChannel creates a HubChannel.
func NewHubChannel(hub UserBroadcaster) *HubChannel {
	return &HubChannel{hub: hub}
}

func (c *HubChannel) Name() string { return "hub" }

type duePayload struct {
	ReminderID string     `json:"reminderId,omitempty"`
	Kind       Kind       `json:"kind"`
	Title      string     `json:"title"`
	Category   string     `json:"category,omitempty"`
	DueAt      *time.Time `json:"reminderTime,omitempty"`
	DueLabel   string     `json:"dueLabel,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Subject    string     `json:"subject"`
}

// Send succeeds even when the user has no open session.
func (c *HubChannel) Send(ctx context.Context, to Recipient, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := duePayload{Kind: msg.Kind, Subject: msg.Subject, DueLabel: msg.DueLabel}
	if r := msg.Reminder; r != nil {
		p.ReminderID = r.ID
		p.Title = r.Title
		p.Category = string(r.Category)
		due := r.RemindAt
		p.DueAt = &due
		p.Notes = r.Notes
	}
	action := "notification"
	if msg.Kind == KindReminder {
		action = "reminder.due"
	}
	b, err := websocket.NewMessage(action, p)
	if err != nil {
		return err
	}
	c.hub.SendToUser(to.UserID, b)
	return nil
}
