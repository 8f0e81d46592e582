package models

import (
	"strings"
	"time"
)

// Category is the fixed set of reminder kinds.
type Category string

const (
	CategoryMedicine Category = "medicine"
	CategoryWorkout  Category = "workout"
	CategoryMeeting  Category = "meeting"
	CategoryOther    Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryMedicine, CategoryWorkout, CategoryMeeting, CategoryOther}

// ParseCategory normalises s and reports whether it names a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMedicine, CategoryWorkout, CategoryMeeting, CategoryOther:
		return true
	}
	return false
}

// Emoji is the icon shown next to the category in notifications.
func (c Category) Emoji() string {
	switch c {
	case CategoryMedicine:
		return "💊"
	case CategoryWorkout:
		return "🏋️"
	case CategoryMeeting:
		return "📅"
	default:
		return "📌"
	}
}

// Label is the emoji plus the upper-cased category name, e.g. "💊 MEDICINE".
func (c Category) Label() string {
	return c.Emoji() + " " + strings.ToUpper(string(c))
}

// Reminder is a single time-scheduled reminder owned by one user.
type Reminder struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Title      string    `json:"title"`
	Category   Category  `json:"category"`
	RemindAt   time.Time `json:"reminderTime"`
	Notes      *string   `json:"notes,omitempty"`
	IsNotified bool      `json:"isNotified"`
	// Completing a reminder also marks it notified so a stale scan cannot pick it up.
	IsCompleted bool      `json:"isCompleted"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewReminder is the input for creating a reminder.
type NewReminder struct {
	Title    string    `json:"title"`
	Category string    `json:"category"`
	RemindAt time.Time `json:"reminderTime"`
	Notes    *string   `json:"notes,omitempty"`
}

// DueReminder is a reminder selected for dispatch, joined with its owner's contact details.
type DueReminder struct {
	Reminder
	OwnerEmail string `json:"ownerEmail"`
	OwnerName  string `json:"ownerName"`
}
