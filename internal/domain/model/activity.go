package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// UserActivity is one append-only ledger entry. Entries are never mutated or
// deleted; IDs are ULIDs so the ledger sorts by creation time.
type UserActivity struct {
	ID        string
	UserID    string
	Kind      string // e.g. "payment.succeeded", "booking.cashback", "settlement.duplicate"
	Title     string
	Message   string
	Meta      map[string]string
	CreatedAt time.Time
}

func NewUserActivity(userID, kind, title, message string, meta map[string]string) *UserActivity {
	now := time.Now().UTC()
	return &UserActivity{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		Meta:      meta,
		CreatedAt: now,
	}
}
