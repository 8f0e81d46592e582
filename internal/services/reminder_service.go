package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/reminder-be/internal/database"
	"github.com/isdelr/reminder-be/internal/models"
	"github.com/rs/zerolog/log"
)

// ReminderServiceProvider is the reminder store. Every owner-facing operation filters on
// the owner id; the scanner-facing ones (SelectDueUnnotified, MarkNotified,
// ClaimForNotification) span all owners.
type ReminderServiceProvider interface {
	CreateReminder(ctx context.Context, ownerID string, in models.NewReminder) (models.Reminder, error)
	ListForOwner(ctx context.Context, ownerID string) ([]models.Reminder, error)
	GetReminder(ctx context.Context, reminderID, ownerID string) (models.Reminder, error)
	UpdateNotes(ctx context.Context, reminderID, ownerID string, notes *string) (models.Reminder, error)
	MarkCompleted(ctx context.Context, reminderID, ownerID string) error
	DeleteReminder(ctx context.Context, reminderID, ownerID string) error
	SelectDueUnnotified(ctx context.Context, windowStart, windowEnd time.Time) ([]models.DueReminder, error)
	MarkNotified(ctx context.Context, reminderID string) error
	ClaimForNotification(ctx context.Context, reminderID string) (bool, error)
}

// ReminderService provides the SQLite-backed reminder store.
type ReminderService struct {
	db           *sql.DB
	eventService EventServiceProvider
}

// NewReminderService creates a new ReminderService. eventService may be nil.
func NewReminderService(db *sql.DB, eventService EventServiceProvider) *ReminderService {
	return &ReminderService{
		db:           db,
		eventService: eventService,
	}
}

const reminderColumns = `reminder_id, user_id, title, category, reminder_time, notes, is_notified, is_completed, created_at`

// CreateReminder validates the input and inserts a new reminder owned by ownerID.
func (s *ReminderService) CreateReminder(ctx context.Context, ownerID string, in models.NewReminder) (models.Reminder, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Reminder{}, invalid("title", "is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return models.Reminder{}, invalid("category", "is required")
	}
	category, ok := models.ParseCategory(in.Category)
	if !ok {
		return models.Reminder{}, invalid("category", fmt.Sprintf("must be one of %v", models.Categories))
	}
	if in.RemindAt.IsZero() {
		return models.Reminder{}, invalid("reminderTime", "is required")
	}
	if !database.Representable(in.RemindAt) {
		return models.Reminder{}, invalid("reminderTime", "must fall between years 0000 and 9999 in UTC")
	}
	if ownerID == "" {
		return models.Reminder{}, invalid("owner", "is required")
	}

	reminder := models.Reminder{
		ID:        uuid.New().String(),
		UserID:    ownerID,
		Title:     title,
		Category:  category,
		RemindAt:  in.RemindAt.UTC().Truncate(time.Millisecond),
		Notes:     cleanNotes(in.Notes),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (reminder_id, user_id, title, category, reminder_time, notes, is_notified, is_completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)`,
		reminder.ID, reminder.UserID, reminder.Title, string(reminder.Category),
		database.FormatTime(reminder.RemindAt), reminder.Notes, database.FormatTime(reminder.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return models.Reminder{}, invalid("owner", "unknown user")
		}
		return models.Reminder{}, storeErr("insert reminder", err)
	}

	s.recordEvent(ctx, "reminder.create", "info", fmt.Sprintf("Reminder '%s' created.", reminder.Title), ownerID)
	return reminder, nil
}

// ListForOwner returns the owner's reminders, soonest first.
func (s *ReminderService) ListForOwner(ctx context.Context, ownerID string) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders WHERE user_id = ? ORDER BY reminder_time ASC, created_at ASC`, ownerID)
	if err != nil {
		return nil, storeErr("list reminders", err)
	}
	defer rows.Close()

	reminders := []models.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			var bad *badRowError
			if errors.As(err, &bad) {
				log.Error().Err(err).Str("user_id", ownerID).Msg("Skipping unreadable reminder row")
				continue
			}
			return nil, storeErr("scan reminder", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list reminders", err)
	}
	return reminders, nil
}

// GetReminder returns one reminder if it belongs to ownerID.
func (s *ReminderService) GetReminder(ctx context.Context, reminderID, ownerID string) (models.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders WHERE reminder_id = ? AND user_id = ?`, reminderID, ownerID)
	r, err := scanReminder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Reminder{}, fmt.Errorf("reminder %s: %w", reminderID, ErrNotFound)
		}
		return models.Reminder{}, storeErr("get reminder", err)
	}
	return r, nil
}

// UpdateNotes replaces the notes of an owned reminder. A nil or blank value clears them.
func (s *ReminderService) UpdateNotes(ctx context.Context, reminderID, ownerID string, notes *string) (models.Reminder, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reminders SET notes = ? WHERE reminder_id = ? AND user_id = ?",
		cleanNotes(notes), reminderID, ownerID)
	if err := affectedOne(res, err, "update notes", reminderID); err != nil {
		return models.Reminder{}, err
	}
	return s.GetReminder(ctx, reminderID, ownerID)
}

// MarkCompleted sets completed and notified in one conditional update. Completing an
// already completed reminder succeeds and changes nothing.
func (s *ReminderService) MarkCompleted(ctx context.Context, reminderID, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE reminders SET is_completed = 1, is_notified = 1 WHERE reminder_id = ? AND user_id = ? AND is_completed = 0",
		reminderID, ownerID)
	if err != nil {
		return storeErr("complete reminder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("complete reminder", err)
	}
	if n == 0 {
		// Either already completed or not the caller's.
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM reminders WHERE reminder_id = ? AND user_id = ?", reminderID, ownerID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reminder %s: %w", reminderID, ErrNotFound)
		}
		if err != nil {
			return storeErr("complete reminder", err)
		}
		return nil
	}
	s.recordEvent(ctx, "reminder.complete", "info", fmt.Sprintf("Reminder %s marked as completed.", reminderID), ownerID)
	return nil
}

// DeleteReminder removes an owned reminder.
func (s *ReminderService) DeleteReminder(ctx context.Context, reminderID, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM reminders WHERE reminder_id = ? AND user_id = ?", reminderID, ownerID)
	if err := affectedOne(res, err, "delete reminder", reminderID); err != nil {
		return err
	}
	s.recordEvent(ctx, "reminder.delete", "warn", fmt.Sprintf("Reminder %s was deleted.", reminderID), ownerID)
	return nil
}

// SelectDueUnnotified returns incomplete, unnotified reminders due within
// [windowStart, windowEnd], joined with the owner's email and name. A zero windowStart
// leaves the window open towards the past.
func (s *ReminderService) SelectDueUnnotified(ctx context.Context, windowStart, windowEnd time.Time) ([]models.DueReminder, error) {
	start := ""
	if !windowStart.IsZero() {
		start = database.FormatTime(windowStart)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.reminder_id, r.user_id, r.title, r.category, r.reminder_time, r.notes,
		       r.is_notified, r.is_completed, r.created_at, u.email, u.full_name
		FROM reminders r
		JOIN users u ON r.user_id = u.id
		WHERE r.reminder_time BETWEEN ? AND ?
		  AND r.is_notified = 0
		  AND r.is_completed = 0
		ORDER BY r.reminder_time ASC`,
		start, database.FormatTime(windowEnd))
	if err != nil {
		return nil, storeErr("select due reminders", err)
	}
	defer rows.Close()

	var due []models.DueReminder
	for rows.Next() {
		var d models.DueReminder
		r, err := scanReminder(rows, &d.OwnerEmail, &d.OwnerName)
		if err != nil {
			// One unreadable row must not hold up everyone else's notifications.
			var bad *badRowError
			if errors.As(err, &bad) {
				log.Error().Err(err).Msg("Scanner: skipping unreadable reminder row")
				continue
			}
			return nil, storeErr("scan due reminder", err)
		}
		d.Reminder = r
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("select due reminders", err)
	}
	return due, nil
}

// MarkNotified sets the notified flag unconditionally. Calling it again is harmless, and so
// is calling it for a reminder that no longer exists.
func (s *ReminderService) MarkNotified(ctx context.Context, reminderID string) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE reminders SET is_notified = 1 WHERE reminder_id = ?", reminderID); err != nil {
		return storeErr("mark notified", err)
	}
	return nil
}

// ClaimForNotification atomically flips notified from false to true for a reminder that is
// still incomplete. It reports true only to the single caller that performed the flip, so
// overlapping scans and a concurrent completion can never both lead to a send.
func (s *ReminderService) ClaimForNotification(ctx context.Context, reminderID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET is_notified = 1
		WHERE reminder_id = ? AND is_notified = 0 AND is_completed = 0`, reminderID)
	if err != nil {
		return false, storeErr("claim reminder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("claim reminder", err)
	}
	return n == 1, nil
}

func (s *ReminderService) recordEvent(ctx context.Context, eventType, level, message, userID string) {
	if s.eventService == nil {
		return
	}
	uid := userID
	// Audit failures never fail the reminder operation itself.
	_ = s.eventService.CreateEvent(ctx, eventType, level, message, &uid)
}

// affectedOne maps an owner-filtered write to ErrNotFound when no row matched.
func affectedOne(res sql.Result, err error, op, reminderID string) error {
	if err != nil {
		return storeErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return fmt.Errorf("reminder %s: %w", reminderID, ErrNotFound)
	}
	return nil
}

func cleanNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	n := strings.TrimSpace(*notes)
	if n == "" {
		return nil
	}
	return &n
}

// scanReminder scans the reminderColumns, followed by any extra destinations.
func scanReminder(scanner interface{ Scan(...interface{}) error }, extra ...interface{}) (models.Reminder, error) {
	var r models.Reminder
	var category, remindAt, createdAt string
	var notes sql.NullString
	dest := append([]interface{}{
		&r.ID, &r.UserID, &r.Title, &category, &remindAt, &notes, &r.IsNotified, &r.IsCompleted, &createdAt,
	}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return models.Reminder{}, err
	}

	r.Category = models.Category(category)
	if notes.Valid {
		n := notes.String
		r.Notes = &n
	}
	var err error
	if r.RemindAt, err = database.ParseTime(remindAt); err != nil {
		return models.Reminder{}, &badRowError{column: "reminder_time", value: remindAt, err: err}
	}
	if r.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return models.Reminder{}, &badRowError{column: "created_at", value: createdAt, err: err}
	}
	return r, nil
}

// badRowError marks a row whose columns were read but hold a value that cannot be decoded.
type badRowError struct {
	column string
	value  string
	err    error
}

func (e *badRowError) Error() string {
	return fmt.Sprintf("bad %s %q: %v", e.column, e.value, e.err)
}

func (e *badRowError) Unwrap() error { return e.err }
