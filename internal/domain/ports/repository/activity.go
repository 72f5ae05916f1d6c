package repository

import (
	"context"

	"travel-booking-payments/internal/domain/model"
)

// ActivityRepository is the append-only user ledger sink.
type ActivityRepository interface {
	Append(ctx context.Context, tx Tx, a *model.UserActivity) error
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.UserActivity, error)
}
