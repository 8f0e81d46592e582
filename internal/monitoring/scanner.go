package monitoring

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/isdelr/reminder-be/internal/clock"
	"github.com/isdelr/reminder-be/internal/models"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/rs/zerolog/log"
)

// DefaultLookahead is how far ahead of now a reminder becomes due for notification.
const DefaultLookahead = 5 * time.Minute

// Dispatcher delivers the notification for one claimed reminder.
type Dispatcher interface {
	Dispatch(ctx context.Context, due models.DueReminder) error
}

// ReminderStore is the part of the reminder store the scanner needs.
type ReminderStore interface {
	SelectDueUnnotified(ctx context.Context, windowStart, windowEnd time.Time) ([]models.DueReminder, error)
	ClaimForNotification(ctx context.Context, reminderID string) (bool, error)
}

// ScannerOptions tunes a Scanner. Zero values take defaults.
type ScannerOptions struct {
	Lookahead time.Duration
	// CatchUp scans from the unbounded past instead of now, so reminders that fell due
	// while the process was down are still sent once.
	CatchUp bool
	Workers int
}

// ScanResult summarises one scan.
type ScanResult struct {
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	Selected    int       `json:"selected"`
	Claimed     int       `json:"claimed"`
	Skipped     int       `json:"skipped"` // no longer claimable: completed, deleted or claimed elsewhere
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
}

// Scanner selects reminders entering the due window, claims each one and hands it to
// the dispatcher.
//
// A reminder is claimed (notified=true) before delivery is attempted and the claim is
// never reverted. A failed send is therefore not retried by a later scan: the service
// prefers an occasional missed notification over duplicates.
type Scanner struct {
	store      ReminderStore
	dispatcher Dispatcher
	events     services.EventServiceProvider
	clock      clock.Clock
	opts       ScannerOptions
}

// NewScanner creates a Scanner. events may be nil.
func NewScanner(store ReminderStore, dispatcher Dispatcher, events services.EventServiceProvider, clk clock.Clock, opts ScannerOptions) *Scanner {
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Scanner{
		store:      store,
		dispatcher: dispatcher,
		events:     events,
		clock:      clk,
		opts:       opts,
	}
}

// Window returns the due window for the instant now.
func (s *Scanner) Window(now time.Time) (start, end time.Time) {
	end = now.Add(s.opts.Lookahead)
	if s.opts.CatchUp {
		return time.Time{}, end
	}
	return now, end
}

// Scan runs one pass. Only a failure to query the store is returned; per-reminder
// problems are logged, counted and recorded as events.
func (s *Scanner) Scan(ctx context.Context) (ScanResult, error) {
	now := s.clock.Now()
	start, end := s.Window(now)
	res := ScanResult{WindowStart: start, WindowEnd: end}

	due, err := s.store.SelectDueUnnotified(ctx, start, end)
	if err != nil {
		return res, fmt.Errorf("select due reminders: %w", err)
	}
	res.Selected = len(due)
	if len(due) == 0 {
		log.Debug().Time("window_end", end).Msg("Scanner: no reminders due")
		return res, nil
	}

	var claimed, skipped, sent, failed atomic.Int64
	jobs := make(chan models.DueReminder)
	var wg sync.WaitGroup
	workers := s.opts.Workers
	if workers > len(due) {
		workers = len(due)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				switch s.process(ctx, d) {
				case outcomeSkipped:
					skipped.Add(1)
				case outcomeSent:
					claimed.Add(1)
					sent.Add(1)
				case outcomeSendFailed:
					claimed.Add(1)
					failed.Add(1)
				case outcomeClaimFailed:
					failed.Add(1)
				}
			}
		}()
	}
	for _, d := range due {
		jobs <- d
	}
	close(jobs)
	wg.Wait()

	res.Claimed = int(claimed.Load())
	res.Skipped = int(skipped.Load())
	res.Sent = int(sent.Load())
	res.Failed = int(failed.Load())
	log.Info().
		Int("selected", res.Selected).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("Scanner: processed due reminders")
	return res, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeSendFailed
	outcomeClaimFailed
)

// process claims and dispatches one reminder. A panic is contained here so it cannot
// take the rest of the batch down.
func (s *Scanner) process(ctx context.Context, d models.DueReminder) (out outcome) {
	claimedIt := false
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("reminder_id", d.ID).Msg("Scanner: panic while processing reminder")
			out = outcomeClaimFailed
			if claimedIt {
				out = outcomeSendFailed
			}
		}
	}()

	ok, err := s.store.ClaimForNotification(ctx, d.ID)
	if err != nil {
		log.Error().Err(err).Str("reminder_id", d.ID).Msg("Scanner: failed to claim reminder")
		return outcomeClaimFailed
	}
	if !ok {
		log.Debug().Str("reminder_id", d.ID).Msg("Scanner: reminder no longer claimable, skipping")
		return outcomeSkipped
	}
	claimedIt = true

	if err := s.dispatcher.Dispatch(ctx, d); err != nil {
		log.Error().Err(err).Str("reminder_id", d.ID).Str("user_id", d.UserID).Msg("Scanner: delivery failed; reminder stays claimed")
		s.record(ctx, "reminder.notify.fail", "error",
			fmt.Sprintf("Notification for reminder '%s' could not be delivered: %v", d.Title, err), d.UserID)
		return outcomeSendFailed
	}
	s.record(ctx, "reminder.notify.success", "info",
		fmt.Sprintf("Notification for reminder '%s' sent to %s.", d.Title, d.OwnerEmail), d.UserID)
	return outcomeSent
}

func (s *Scanner) record(ctx context.Context, eventType, level, message, userID string) {
	if s.events == nil {
		return
	}
	uid := userID
	if err := s.events.CreateEvent(ctx, eventType, level, message, &uid); err != nil {
		log.Warn().Err(err).Str("event_type", eventType).Msg("Scanner: failed to record event")
	}
}
