package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceRepository mutates user balances through atomic relative updates
// only. There is deliberately no read-modify-write surface here: lost
// updates under concurrent settlement are impossible by construction.
type BalanceRepository interface {
	// AddCredits applies `delta` (may be negative) to the credit counter.
	AddCredits(ctx context.Context, tx Tx, userID string, delta int64) error
	// AddWallet applies `delta` (may be negative) to the wallet balance.
	AddWallet(ctx context.Context, tx Tx, userID string, delta decimal.Decimal) error
}
