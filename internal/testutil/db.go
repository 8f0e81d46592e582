// Package testutil provides reusable helpers for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/reminder-be/internal/database"
)

// NewDB opens a migrated SQLite database under t.TempDir() and closes it on cleanup.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// InsertUser writes a user row directly and returns its id. The password hash is a
// placeholder, so the user cannot log in.
func InsertUser(t *testing.T, db *sql.DB, fullName, email string) string {
	t.Helper()

	id := uuid.New().String()
	_, err := db.Exec(
		"INSERT INTO users (id, full_name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		id, fullName, email, "x", database.FormatTime(time.Now()))
	if err != nil {
		t.Fatalf("Failed to insert user %s: %v", email, err)
	}
	return id
}
