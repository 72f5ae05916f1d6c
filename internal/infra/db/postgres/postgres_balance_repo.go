package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/infra/metrics"
)

var _ repository.BalanceRepository = (*balanceRepo)(nil)

// balanceRepo applies relative increments in SQL. Nothing here reads a
// balance first, so concurrent settlements cannot lose updates.
type balanceRepo struct{ pool *pgxpool.Pool }

func NewBalanceRepo(pool *pgxpool.Pool) *balanceRepo {
	return &balanceRepo{pool: pool}
}

func (r *balanceRepo) AddCredits(ctx context.Context, tx repository.Tx, userID string, delta int64) error {
	const q = `
INSERT INTO user_balances (user_id, credits, wallet, updated_at)
VALUES ($1, $2, 0, NOW())
ON CONFLICT (user_id) DO UPDATE SET
  credits = user_balances.credits + $2,
  updated_at = NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, userID, delta)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	metrics.IncBalanceMutation("credits", direction(delta >= 0))
	return nil
}

func (r *balanceRepo) AddWallet(ctx context.Context, tx repository.Tx, userID string, delta decimal.Decimal) error {
	const q = `
INSERT INTO user_balances (user_id, credits, wallet, updated_at)
VALUES ($1, 0, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET
  wallet = user_balances.wallet + $2,
  updated_at = NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, userID, delta)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	metrics.IncBalanceMutation("wallet", direction(delta.Sign() >= 0))
	return nil
}

func direction(positive bool) string {
	if positive {
		return "credit"
	}
	return "debit"
}
