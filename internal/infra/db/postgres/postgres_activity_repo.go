package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/repository"
)

var _ repository.ActivityRepository = (*activityRepo)(nil)

type activityRepo struct{ pool *pgxpool.Pool }

func NewActivityRepo(pool *pgxpool.Pool) *activityRepo {
	return &activityRepo{pool: pool}
}

func (r *activityRepo) Append(ctx context.Context, tx repository.Tx, a *model.UserActivity) error {
	const q = `
INSERT INTO user_activities (id, user_id, kind, title, message, meta, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.UserID, a.Kind, a.Title, a.Message, a.Meta, a.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *activityRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.UserActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, user_id, kind, title, message, meta, created_at FROM user_activities WHERE user_id=$1 ORDER BY id DESC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.UserActivity
	for rows.Next() {
		a := &model.UserActivity{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Kind, &a.Title, &a.Message, &a.Meta, &a.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, a)
	}
	return out, nil
}
