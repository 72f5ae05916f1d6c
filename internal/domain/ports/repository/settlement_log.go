package repository

import (
	"context"
	"time"

	"travel-booking-payments/internal/domain/model"
)

// UnmatchedSettlement is a settlement event that could not be correlated to
// exactly one payment. It is persisted with the full raw payload so an
// operator can reconcile it by hand.
type UnmatchedSettlement struct {
	ID              string
	Provider        model.Provider
	ProviderEventID string
	Kind            model.EventKind
	Reason          string // "not_found" | "ambiguous"
	Raw             []byte
	ReceivedAt      time.Time
}

type SettlementLogRepository interface {
	Save(ctx context.Context, tx Tx, u *UnmatchedSettlement) error
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*UnmatchedSettlement, error)
}
