package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/ports/repository"
)

var _ repository.SettlementLogRepository = (*settlementLogRepo)(nil)

// settlementLogRepo persists settlement events that could not be correlated,
// raw payload included, for manual reconciliation.
type settlementLogRepo struct{ pool *pgxpool.Pool }

func NewSettlementLogRepo(pool *pgxpool.Pool) *settlementLogRepo {
	return &settlementLogRepo{pool: pool}
}

func (r *settlementLogRepo) Save(ctx context.Context, tx repository.Tx, u *repository.UnmatchedSettlement) error {
	const q = `
INSERT INTO unmatched_settlements (id, provider, provider_event_id, kind, reason, raw, received_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Provider, u.ProviderEventID, u.Kind, u.Reason, u.Raw, u.ReceivedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *settlementLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*repository.UnmatchedSettlement, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, provider, provider_event_id, kind, reason, raw, received_at FROM unmatched_settlements ORDER BY received_at DESC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*repository.UnmatchedSettlement
	for rows.Next() {
		u := &repository.UnmatchedSettlement{}
		if err := rows.Scan(&u.ID, &u.Provider, &u.ProviderEventID, &u.Kind, &u.Reason, &u.Raw, &u.ReceivedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, u)
	}
	return out, nil
}
