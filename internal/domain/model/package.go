package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package is a catalog entry the user can buy: a credit pack, a fixed wallet
// top-up, or a tour. Custom wallet top-ups reference a catalog row too, but
// the charge amount comes from the caller within the allowed bounds.
type Package struct {
	ID       string // UUID
	Name     string
	Type     PackageType
	Price    decimal.Decimal // catalog price; ignored for custom-wallet-topup
	Credits  int64           // credit packs only
	Cashback decimal.Decimal // tour cashback percentage, 0 disables
	Active   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Custom wallet top-up bounds (closed interval).
var (
	TopupMinAmount = decimal.NewFromInt(5)
	TopupMaxAmount = decimal.NewFromInt(1000)
)
