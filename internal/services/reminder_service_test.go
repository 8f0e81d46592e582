package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/reminder-be/internal/database"
	"github.com/isdelr/reminder-be/internal/models"
	"github.com/isdelr/reminder-be/internal/testutil"
)

func newReminderFixture(t *testing.T) (*ReminderService, *EventService, string, string) {
	t.Helper()
	db := testutil.NewDB(t)
	events := NewEventService(db)
	alice := testutil.InsertUser(t, db, "Alice", "alice@example.com")
	bob := testutil.InsertUser(t, db, "Bob", "bob@example.com")
	return NewReminderService(db, events), events, alice, bob
}

func strPtr(s string) *string { return &s }

func TestCreateReminderValidation(t *testing.T) {
	t.Parallel()
	svc, _, alice, _ := newReminderFixture(t)
	ctx := context.Background()
	due := time.Now().Add(time.Hour)
	// Valid RFC 3339 that lands in year 10000 once converted to UTC.
	pastYear9999, err := time.Parse(time.RFC3339, "9999-12-31T23:59:59-01:00")
	if err != nil {
		t.Fatal(err)
	}
	beforeYear0 := time.Date(-1, time.June, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		in    models.NewReminder
		field string
	}{
		{name: "missing title", in: models.NewReminder{Category: "medicine", RemindAt: due}, field: "title"},
		{name: "blank title", in: models.NewReminder{Title: "   ", Category: "medicine", RemindAt: due}, field: "title"},
		{name: "missing category", in: models.NewReminder{Title: "Pills", RemindAt: due}, field: "category"},
		{name: "unknown category", in: models.NewReminder{Title: "Pills", Category: "shopping", RemindAt: due}, field: "category"},
		{name: "missing time", in: models.NewReminder{Title: "Pills", Category: "medicine"}, field: "reminderTime"},
		{name: "time after year 9999", in: models.NewReminder{Title: "Pills", Category: "medicine", RemindAt: pastYear9999}, field: "reminderTime"},
		{name: "time before year 0", in: models.NewReminder{Title: "Pills", Category: "medicine", RemindAt: beforeYear0}, field: "reminderTime"},
	}
	for _, tt := range tests {
		_, err := svc.CreateReminder(ctx, alice, tt.in)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: err = %v, want ValidationError", tt.name, err)
		}
		if ve.Field != tt.field {
			t.Fatalf("%s: Field = %q, want %q", tt.name, ve.Field, tt.field)
		}
	}

	list, err := svc.ListForOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("validation failures wrote %d reminders", len(list))
	}
}

func TestCreateReminderUnknownOwner(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newReminderFixture(t)
	_, err := svc.CreateReminder(context.Background(), "no-such-user", models.NewReminder{
		Title: "Run", Category: "workout", RemindAt: time.Now(),
	})
	if !IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestListForOwnerOrderedAndScoped(t *testing.T) {
	t.Parallel()
	svc, _, alice, bob := newReminderFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		_, err := svc.CreateReminder(ctx, alice, models.NewReminder{
			Title: "r" + string(rune('a'+i)), Category: "Meeting", RemindAt: base.Add(offset),
		})
		if err != nil {
			t.Fatalf("CreateReminder: %v", err)
		}
	}
	if _, err := svc.CreateReminder(ctx, bob, models.NewReminder{Title: "bob", Category: "other", RemindAt: base}); err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	list, err := svc.ListForOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].RemindAt.Before(list[i-1].RemindAt) {
			t.Fatalf("list not ascending: %v before %v", list[i].RemindAt, list[i-1].RemindAt)
		}
	}
	if list[0].Title != "rb" || list[0].Category != models.CategoryMeeting {
		t.Fatalf("first = %+v", list[0])
	}
	if !list[0].RemindAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("RemindAt = %v, want %v", list[0].RemindAt, base.Add(time.Hour))
	}
}

func TestMarkCompletedIdempotentAndSetsNotified(t *testing.T) {
	t.Parallel()
	svc, events, alice, _ := newReminderFixture(t)
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: "Pills", Category: "medicine", RemindAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.MarkCompleted(ctx, r.ID, alice); err != nil {
			t.Fatalf("MarkCompleted #%d: %v", i+1, err)
		}
		got, err := svc.GetReminder(ctx, r.ID, alice)
		if err != nil {
			t.Fatalf("GetReminder: %v", err)
		}
		if !got.IsCompleted || !got.IsNotified {
			t.Fatalf("after MarkCompleted #%d: completed=%v notified=%v", i+1, got.IsCompleted, got.IsNotified)
		}
	}

	evs, err := events.GetRecentEvents(ctx, alice, 10)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	if len(evs) == 0 || evs[0].Type != "reminder.complete" {
		t.Fatalf("events = %+v", evs)
	}
	completes := 0
	for _, e := range evs {
		if e.Type == "reminder.complete" {
			completes++
		}
	}
	if completes != 1 {
		t.Fatalf("recorded %d reminder.complete events, want 1", completes)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	t.Parallel()
	svc, _, alice, bob := newReminderFixture(t)
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: "Standup", Category: "meeting", RemindAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}

	if err := svc.MarkCompleted(ctx, r.ID, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkCompleted by non-owner: err = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteReminder(ctx, r.ID, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteReminder by non-owner: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.UpdateNotes(ctx, r.ID, bob, strPtr("hijack")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateNotes by non-owner: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetReminder(ctx, r.ID, bob); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetReminder by non-owner: err = %v, want ErrNotFound", err)
	}

	got, err := svc.GetReminder(ctx, r.ID, alice)
	if err != nil {
		t.Fatalf("GetReminder: %v", err)
	}
	if got.IsCompleted || got.IsNotified || got.Notes != nil || got.UserID != alice {
		t.Fatalf("record modified by non-owner: %+v", got)
	}
}

func TestDeleteReminder(t *testing.T) {
	t.Parallel()
	svc, _, alice, _ := newReminderFixture(t)
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: "Gym", Category: "workout", RemindAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}
	if err := svc.DeleteReminder(ctx, r.ID, alice); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}
	if err := svc.DeleteReminder(ctx, r.ID, alice); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteReminder: err = %v, want ErrNotFound", err)
	}
}

func TestUpdateNotes(t *testing.T) {
	t.Parallel()
	svc, _, alice, _ := newReminderFixture(t)
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, alice, models.NewReminder{
		Title: "Pills", Category: "medicine", RemindAt: time.Now(), Notes: strPtr("  "),
	})
	if err != nil {
		t.Fatalf("CreateReminder: %v", err)
	}
	if r.Notes != nil {
		t.Fatalf("blank notes should be stored as NULL, got %q", *r.Notes)
	}

	got, err := svc.UpdateNotes(ctx, r.ID, alice, strPtr("after breakfast"))
	if err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	if got.Notes == nil || *got.Notes != "after breakfast" {
		t.Fatalf("Notes = %v", got.Notes)
	}

	got, err = svc.UpdateNotes(ctx, r.ID, alice, nil)
	if err != nil {
		t.Fatalf("UpdateNotes(nil): %v", err)
	}
	if got.Notes != nil {
		t.Fatalf("Notes = %q, want cleared", *got.Notes)
	}
}

func TestSelectDueUnnotifiedWindow(t *testing.T) {
	t.Parallel()
	svc, _, alice, _ := newReminderFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	create := func(title string, due time.Time) models.Reminder {
		r, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: title, Category: "other", RemindAt: due})
		if err != nil {
			t.Fatalf("CreateReminder(%s): %v", title, err)
		}
		return r
	}
	atStart := create("at-start", now)
	inside := create("inside", now.Add(3*time.Minute))
	atEnd := create("at-end", now.Add(5*time.Minute))
	create("after", now.Add(5*time.Minute+time.Millisecond))
	past := create("past", now.Add(-time.Minute))
	done := create("completed", now.Add(time.Minute))
	notified := create("notified", now.Add(2*time.Minute))

	if err := svc.MarkCompleted(ctx, done.ID, alice); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkNotified(ctx, notified.ID); err != nil {
		t.Fatal(err)
	}

	due, err := svc.SelectDueUnnotified(ctx, now, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("SelectDueUnnotified: %v", err)
	}
	want := []string{atStart.ID, inside.ID, atEnd.ID}
	if len(due) != len(want) {
		t.Fatalf("selected %d reminders, want %d: %+v", len(due), len(want), due)
	}
	for i, d := range due {
		if d.ID != want[i] {
			t.Fatalf("due[%d] = %s (%s), want %s", i, d.ID, d.Title, want[i])
		}
		if d.OwnerEmail != "alice@example.com" || d.OwnerName != "Alice" {
			t.Fatalf("owner join = %q/%q", d.OwnerEmail, d.OwnerName)
		}
	}

	// Zero start opens the window to the past.
	due, err = svc.SelectDueUnnotified(ctx, time.Time{}, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("SelectDueUnnotified(catch-up): %v", err)
	}
	if len(due) != 4 || due[0].ID != past.ID {
		t.Fatalf("catch-up selection = %+v", due)
	}
}

func TestMarkNotifiedIdempotent(t *testing.T) {
	t.Parallel()
	svc, _, alice, _ := newReminderFixture(t)
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: "x", Category: "other", RemindAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.MarkNotified(ctx, r.ID); err != nil {
			t.Fatalf("MarkNotified #%d: %v", i+1, err)
		}
	}
	if err := svc.MarkNotified(ctx, "missing"); err != nil {
		t.Fatalf("MarkNotified(missing): %v", err)
	}
	got, _ := svc.GetReminder(ctx, r.ID, alice)
	if !got.IsNotified || got.IsCompleted {
		t.Fatalf("state = notified:%v completed:%v", got.IsNotified, got.IsCompleted)
	}
}

func TestClaimForNotificationSingleWinner(t *testing.T) {
	t.Parallel()
	svc, _, alice, _ := newReminderFixture(t)
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: "x", Category: "other", RemindAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	wins := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.ClaimForNotification(ctx, r.ID)
			if err != nil {
				t.Errorf("ClaimForNotification: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}

func TestClaimForNotificationSkipsCompleted(t *testing.T) {
	t.Parallel()
	svc, _, alice, _ := newReminderFixture(t)
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: "x", Category: "other", RemindAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkCompleted(ctx, r.ID, alice); err != nil {
		t.Fatal(err)
	}
	ok, err := svc.ClaimForNotification(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("completed reminder must not be claimable")
	}
}

func TestUnreadableRowIsSkipped(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	svc := NewReminderService(db, nil)
	alice := testutil.InsertUser(t, db, "Alice", "alice@example.com")
	ctx := context.Background()

	// A row written before instants were range-checked: five-digit year.
	_, err := db.Exec(`
		INSERT INTO reminders (reminder_id, user_id, title, category, reminder_time, notes, is_notified, is_completed, created_at)
		VALUES ('legacy', ?, 'Far future', 'other', '10000-01-01T00:59:59.000Z', NULL, 0, 0, ?)`,
		alice, database.FormatTime(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	good, err := svc.CreateReminder(ctx, alice, models.NewReminder{Title: "Pills", Category: "medicine", RemindAt: now.Add(2 * time.Minute)})
	if err != nil {
		t.Fatal(err)
	}

	// Catch-up window: the bad text sorts inside BETWEEN '' AND end.
	due, err := svc.SelectDueUnnotified(ctx, time.Time{}, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("SelectDueUnnotified: %v", err)
	}
	if len(due) != 1 || due[0].ID != good.ID {
		t.Fatalf("due = %+v, want only %s", due, good.ID)
	}

	list, err := svc.ListForOwner(ctx, alice)
	if err != nil {
		t.Fatalf("ListForOwner: %v", err)
	}
	if len(list) != 1 || list[0].ID != good.ID {
		t.Fatalf("list = %+v, want only %s", list, good.ID)
	}
}
