package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByExternalID(ctx context.Context, tx Tx, provider model.Provider, externalID string) (*model.Payment, error)

	// UpdateStatusIfPending flips status only when the row is still pending.
	// It is the single mutual-exclusion point of the settlement engine:
	// concurrent duplicate deliveries race here and exactly one wins.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error)

	// UpdateStatusIf flips from one expected status to another; used for the
	// succeeded -> canceled compensation path.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from, to model.PaymentStatus) (bool, error)

	// ListPendingByAmount supports the last-resort correlation heuristic:
	// pending payments for a provider matching amount and currency, created
	// after `since`, newest first.
	ListPendingByAmount(ctx context.Context, tx Tx, provider model.Provider, amount decimal.Decimal, currency string, since time.Time) ([]*model.Payment, error)

	// MarkApproved records that a two-phase order was approved; idempotent.
	MarkApproved(ctx context.Context, tx Tx, id string, at time.Time) error

	// ListApprovedUncaptured returns still-pending payments whose order was
	// approved before `olderThan` but whose capture never settled. The
	// capture reconciler retries these.
	ListApprovedUncaptured(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)

	// ListRecent serves the admin reconciliation API.
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.Payment, error)
}
