package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // redirected to provider; awaiting settlement
	PaymentStatusSucceeded PaymentStatus = "succeeded" // settlement confirmed, balance applied
	PaymentStatusFailed    PaymentStatus = "failed"    // provider denied the charge
	PaymentStatusCanceled  PaymentStatus = "canceled"  // voided or refunded
)

// Terminal reports whether a status admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed || s == PaymentStatusCanceled
}

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderPayPal Provider = "paypal"
)

// Payment records a single external charge attempt. Rows are never deleted;
// status moves pending -> succeeded|failed|canceled exclusively through the
// settlement engine's conditional updates.
type Payment struct {
	ID         string // UUID; doubles as the correlation token echoed by providers
	UserID     string
	PackageID  string
	Provider   Provider
	Amount     decimal.Decimal // canonical charge amount, computed at checkout time
	Currency   string
	ExternalID string // provider session id (stripe) or order id (paypal)
	Status     PaymentStatus
	Meta       SettlementMeta // everything needed to settle without catalog lookups
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ApprovedAt *time.Time // two-phase flows: order approved, capture not yet settled
	PaidAt     *time.Time // set when succeeded
}
