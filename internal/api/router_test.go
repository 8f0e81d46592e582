package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/reminder-be/internal/auth"
	"github.com/isdelr/reminder-be/internal/models"
	"github.com/isdelr/reminder-be/internal/monitoring"
	"github.com/isdelr/reminder-be/internal/notify"
	"github.com/isdelr/reminder-be/internal/services"
	"github.com/isdelr/reminder-be/internal/testutil"
	"github.com/isdelr/reminder-be/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

type fakeMailer struct {
	mu      sync.Mutex
	welcome []notify.Recipient
	test    []notify.Recipient
	err     error
}

func (m *fakeMailer) SendWelcome(_ context.Context, to notify.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcome = append(m.welcome, to)
	return m.err
}

func (m *fakeMailer) SendTest(_ context.Context, to notify.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.test = append(m.test, to)
	return m.err
}

type fixedTicks struct{}

func (fixedTicks) LastTick() (monitoring.TickStatus, bool) {
	return monitoring.TickStatus{Result: monitoring.ScanResult{Sent: 2}}, true
}

type apiFixture struct {
	t      *testing.T
	server *httptest.Server
	mailer *fakeMailer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.NewDB(t)
	events := services.NewEventService(db)
	mailer := &fakeMailer{}
	router := NewRouter(Deps{
		Users:     services.NewUserService(db).WithHashCost(bcrypt.MinCost),
		Reminders: services.NewReminderService(db, events),
		Events:    events,
		Tokens:    auth.NewTokenIssuer("test-secret", time.Hour),
		Mailer:    mailer,
		Hub:       websocket.NewHub(),
		DB:        db,
		Ticks:     fixedTicks{},
		Channel:   "log+hub",
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiFixture{t: t, server: srv, mailer: mailer}
}

func (f *apiFixture) do(method, path, token string, body interface{}, out interface{}) int {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			f.t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+"/api/v1"+path, &buf)
	if err != nil {
		f.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		f.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			f.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// signup registers a user and returns a session token for them.
func (f *apiFixture) signup(name, email string) string {
	f.t.Helper()
	if code := f.do(http.MethodPost, "/auth/signup", "", signupBody(name, email, "pw-123456"), nil); code != http.StatusCreated {
		f.t.Fatalf("signup %s: status %d", email, code)
	}
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	if code := f.do(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "pw-123456"}, &login); code != http.StatusOK {
		f.t.Fatalf("login %s: status %d", email, code)
	}
	if login.Token == "" || login.User.Email != email {
		f.t.Fatalf("login response = %+v", login)
	}
	return login.Token
}

func signupBody(name, email, password string) map[string]string {
	return map[string]string{"fullName": name, "email": email, "password": password}
}

func TestReminderLifecycle(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.signup("Alice", "alice@example.com")

	var me models.User
	if code := f.do(http.MethodGet, "/auth/me", token, nil, &me); code != http.StatusOK || me.FullName != "Alice" {
		t.Fatalf("me: %d %+v", code, me)
	}

	due := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	var created models.Reminder
	code := f.do(http.MethodPost, "/reminders", token, map[string]interface{}{
		"title": "Take pills", "category": "Medicine", "reminderTime": due, "notes": "after lunch",
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create: status %d", code)
	}
	if created.ID == "" || created.Category != models.CategoryMedicine || !created.RemindAt.Equal(due) || created.IsNotified || created.IsCompleted {
		t.Fatalf("created = %+v", created)
	}

	var list []models.Reminder
	if code := f.do(http.MethodGet, "/reminders", token, nil, &list); code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list: %d %+v", code, list)
	}

	var updated models.Reminder
	if code := f.do(http.MethodPut, "/reminders/"+created.ID, token, map[string]interface{}{"notes": "with water"}, &updated); code != http.StatusOK {
		t.Fatalf("update: status %d", code)
	}
	if updated.Notes == nil || *updated.Notes != "with water" {
		t.Fatalf("notes = %v", updated.Notes)
	}

	if code := f.do(http.MethodPatch, "/reminders/"+created.ID+"/complete", token, nil, nil); code != http.StatusOK {
		t.Fatalf("complete: status %d", code)
	}
	// Completing again is fine.
	if code := f.do(http.MethodPatch, "/reminders/"+created.ID+"/complete", token, nil, nil); code != http.StatusOK {
		t.Fatalf("second complete: status %d", code)
	}
	var got models.Reminder
	f.do(http.MethodGet, "/reminders/"+created.ID, token, nil, &got)
	if !got.IsCompleted || !got.IsNotified {
		t.Fatalf("after complete = %+v", got)
	}

	if code := f.do(http.MethodDelete, "/reminders/"+created.ID, token, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: status %d", code)
	}
	if code := f.do(http.MethodGet, "/reminders/"+created.ID, token, nil, nil); code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", code)
	}

	var events []models.Event
	if code := f.do(http.MethodGet, "/events?limit=10", token, nil, &events); code != http.StatusOK || len(events) == 0 {
		t.Fatalf("events: %d %d", code, len(events))
	}
}

func TestRemindersAreScopedToOwner(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	alice := f.signup("Alice", "alice@example.com")
	bob := f.signup("Bob", "bob@example.com")

	var created models.Reminder
	f.do(http.MethodPost, "/reminders", alice, map[string]interface{}{
		"title": "Gym", "category": "workout", "reminderTime": time.Now().Add(time.Hour),
	}, &created)

	var list []models.Reminder
	f.do(http.MethodGet, "/reminders", bob, nil, &list)
	if len(list) != 0 {
		t.Fatalf("bob sees %d of alice's reminders", len(list))
	}
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/reminders/" + created.ID},
		{http.MethodPatch, "/reminders/" + created.ID + "/complete"},
		{http.MethodDelete, "/reminders/" + created.ID},
	} {
		if code := f.do(tc.method, tc.path, bob, nil, nil); code != http.StatusNotFound {
			t.Errorf("%s %s as bob: status %d, want 404", tc.method, tc.path, code)
		}
	}

	var got models.Reminder
	if code := f.do(http.MethodGet, "/reminders/"+created.ID, alice, nil, &got); code != http.StatusOK || got.IsCompleted {
		t.Fatalf("alice's reminder changed: %d %+v", code, got)
	}
}

func TestAPIErrors(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.signup("Alice", "alice@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"unauthenticated list", http.MethodGet, "/reminders", "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/reminders", "garbage", nil, http.StatusUnauthorized},
		{"empty title", http.MethodPost, "/reminders", token, map[string]interface{}{"title": " ", "category": "other", "reminderTime": time.Now()}, http.StatusBadRequest},
		{"unknown category", http.MethodPost, "/reminders", token, map[string]interface{}{"title": "x", "category": "party", "reminderTime": time.Now()}, http.StatusBadRequest},
		{"time beyond year 9999", http.MethodPost, "/reminders", token, map[string]interface{}{"title": "x", "category": "other", "reminderTime": "9999-12-31T23:59:59-01:00"}, http.StatusBadRequest},
		{"missing time", http.MethodPost, "/reminders", token, map[string]interface{}{"title": "x", "category": "other"}, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/reminders", token, "not an object", http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/reminders/does-not-exist", token, nil, http.StatusNotFound},
		{"duplicate email", http.MethodPost, "/auth/signup", "", signupBody("A", "ALICE@example.com", "pw"), http.StatusConflict},
		{"signup missing name", http.MethodPost, "/auth/signup", "", signupBody("", "new@example.com", "pw"), http.StatusBadRequest},
		{"wrong password", http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope"}, http.StatusUnauthorized},
		{"unknown email", http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		if code := f.do(tt.method, tt.path, tt.token, tt.body, nil); code != tt.want {
			t.Errorf("%s: status %d, want %d", tt.name, code, tt.want)
		}
	}
}

func TestNotificationsAndHealth(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	token := f.signup("Alice", "alice@example.com")

	if code := f.do(http.MethodPost, "/notifications/test", token, nil, nil); code != http.StatusOK {
		t.Fatalf("test notification: status %d", code)
	}
	f.mailer.mu.Lock()
	if len(f.mailer.test) != 1 || f.mailer.test[0].Address != "alice@example.com" {
		t.Fatalf("test mails = %+v", f.mailer.test)
	}
	f.mailer.mu.Unlock()

	// The welcome mail goes out in the background.
	deadline := time.Now().Add(5 * time.Second)
	for {
		f.mailer.mu.Lock()
		n := len(f.mailer.welcome)
		f.mailer.mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("welcome mail was not sent")
		}
		time.Sleep(10 * time.Millisecond)
	}

	var health struct {
		Status   string                 `json:"status"`
		Database string                 `json:"database"`
		Channel  string                 `json:"channel"`
		LastTick *monitoring.TickStatus `json:"lastTick"`
	}
	if code := f.do(http.MethodGet, "/health", "", nil, &health); code != http.StatusOK {
		t.Fatalf("health: status %d", code)
	}
	if health.Status != "ok" || health.Database != "ok" || health.Channel != "log+hub" {
		t.Fatalf("health = %+v", health)
	}
	if health.LastTick == nil || health.LastTick.Result.Sent != 2 {
		t.Fatalf("lastTick = %+v", health.LastTick)
	}
}
