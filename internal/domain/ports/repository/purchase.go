package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain/model"
)

type PurchaseRepository interface {
	Save(ctx context.Context, tx Tx, pu *model.Purchase) error
	FindByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Purchase, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PurchaseStatus) error

	// RecordCashback stores the cashback amount credited at settlement so a
	// later refund reverses exactly that figure.
	RecordCashback(ctx context.Context, tx Tx, id string, amount decimal.Decimal) error

	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Purchase, error)
}
