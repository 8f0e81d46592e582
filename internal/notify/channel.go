// Package notify renders reminder notifications and hands them to a delivery channel.
//
// Delivery is at-most-once: the scanner claims a reminder before calling the dispatcher,
// so a failed send here is logged and never retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isdelr/reminder-be/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrDeliveryFailed wraps every failed or timed out send.
var ErrDeliveryFailed = errors.New("delivery failed")

// Kind distinguishes the messages the service sends.
type Kind string

const (
	KindReminder Kind = "reminder"
	KindTest     Kind = "test"
	KindWelcome  Kind = "welcome"
)

// Recipient is who a message goes to.
type Recipient struct {
	UserID  string
	Address string
	Name    string
}

// Message is a rendered notification.
type Message struct {
	Kind     Kind
	Subject  string
	Text     string
	HTML     string
	Reminder *models.Reminder // nil for non-reminder messages
	DueLabel string           // due instant formatted for display
}

// Channel delivers a rendered message. Implementations must honour ctx cancellation.
type Channel interface {
	Name() string
	Send(ctx context.Context, to Recipient, msg Message) error
}

// LogChannel only logs messages. It stands in for SMTP when mail is not configured.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Send(_ context.Context, to Recipient, msg Message) error {
	log.Info().
		Str("to", to.Address).
		Str("kind", string(msg.Kind)).
		Str("subject", msg.Subject).
		Msg("Email not configured; notification logged instead of sent")
	return nil
}

// fanout sends to a primary channel and mirrors the message to secondary ones.
type fanout struct {
	primary Channel
	mirrors []Channel
}

// Fanout returns a Channel whose result is the primary's. Mirror channels are attempted
// after the primary, whatever its outcome, and their failures are only logged.
func Fanout(primary Channel, mirrors ...Channel) Channel {
	if len(mirrors) == 0 {
		return primary
	}
	return &fanout{primary: primary, mirrors: mirrors}
}

func (f *fanout) Name() string {
	name := f.primary.Name()
	for _, m := range f.mirrors {
		name += "+" + m.Name()
	}
	return name
}

func (f *fanout) Send(ctx context.Context, to Recipient, msg Message) error {
	err := f.primary.Send(ctx, to, msg)
	for _, m := range f.mirrors {
		if merr := m.Send(ctx, to, msg); merr != nil {
			log.Warn().Err(merr).Str("channel", m.Name()).Str("user_id", to.UserID).Msg("Mirror channel failed")
		}
	}
	return err
}

// sendBounded runs ch.Send with a deadline. A channel that ignores ctx still cannot hold
// the caller past the deadline; its goroutine finishes in the background.
func sendBounded(ctx context.Context, ch Channel, timeout time.Duration, to Recipient, msg Message) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("channel %s panicked: %v", ch.Name(), r)
			}
		}()
		done <- ch.Send(ctx, to, msg)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w via %s: %w", ErrDeliveryFailed, ch.Name(), err)
	}
	return nil
}
