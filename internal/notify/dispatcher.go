package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/reminder-be/internal/models"
	"github.com/rs/zerolog/log"
)

// Dispatcher renders notifications and delivers them through one Channel.
type Dispatcher struct {
	channel  Channel
	renderer *Renderer
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher. Every send is bounded by timeout.
func NewDispatcher(channel Channel, renderer *Renderer, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		channel:  channel,
		renderer: renderer,
		timeout:  timeout,
	}
}

// Channel reports the name of the underlying delivery channel.
func (d *Dispatcher) Channel() string { return d.channel.Name() }

// Dispatch sends the notification for one claimed reminder. Failures come back wrapped in
// ErrDeliveryFailed; the caller decides what to log. It never reverts the claim.
func (d *Dispatcher) Dispatch(ctx context.Context, due models.DueReminder) error {
	msg, err := d.renderer.Reminder(due.OwnerName, due.Reminder)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	to := Recipient{UserID: due.UserID, Address: due.OwnerEmail, Name: due.OwnerName}
	if err := sendBounded(ctx, d.channel, d.timeout, to, msg); err != nil {
		return err
	}
	log.Info().Str("reminder_id", due.ID).Str("to", due.OwnerEmail).Str("channel", d.channel.Name()).Msg("Reminder notification sent")
	return nil
}

// SendTest delivers a synthetic reminder so a user can check their mail setup.
func (d *Dispatcher) SendTest(ctx context.Context, to Recipient) error {
	msg, err := d.renderer.Test(to.Name, time.Now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return sendBounded(ctx, d.channel, d.timeout, to, msg)
}

// SendWelcome delivers the signup greeting.
func (d *Dispatcher) SendWelcome(ctx context.Context, to Recipient) error {
	msg, err := d.renderer.Welcome(to.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return sendBounded(ctx, d.channel, d.timeout, to, msg)
}
