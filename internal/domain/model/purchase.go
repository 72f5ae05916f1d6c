package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed" // credit / wallet purchases
	PurchaseStatusConfirmed PurchaseStatus = "confirmed" // tour bookings
	PurchaseStatusFailed    PurchaseStatus = "failed"    // credit / wallet purchases
	PurchaseStatusCancelled PurchaseStatus = "cancelled" // tour bookings
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// Purchase is what a Payment bought: a credit pack, a wallet top-up, or a
// tour booking, discriminated by Kind. Exactly one exists per Payment and is
// created in the same transaction.
type Purchase struct {
	ID        string // UUID
	PaymentID string // UUID -> Payment
	UserID    string
	Kind      PackageType
	Status    PurchaseStatus

	// credit
	CreditsPurchased int64
	// wallet / custom-wallet-topup
	AmountPurchased decimal.Decimal
	// all kinds: what the user was charged
	AmountPaid decimal.Decimal

	// tour
	Adults      int
	Children    int
	Infants     int
	TotalAmount decimal.Decimal
	TravelDate  *time.Time
	// cashback actually credited at settlement; a refund reverses this
	// figure, never a recomputation against the current catalog
	CashbackPaid decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SuccessStatus is the terminal status a purchase of this kind reaches on a
// completed settlement: bookings confirm, everything else completes.
func (k PackageType) SuccessStatus() PurchaseStatus {
	if k == PackageTypeTour {
		return PurchaseStatusConfirmed
	}
	return PurchaseStatusCompleted
}

// FailureStatus is the terminal status on a denied or voided settlement.
func (k PackageType) FailureStatus() PurchaseStatus {
	if k == PackageTypeTour {
		return PurchaseStatusCancelled
	}
	return PurchaseStatusFailed
}
