package worker

import (
	"context"

	"github.com/rs/zerolog"

	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/repository"
)

var _ repository.ActivityRepository = (*AsyncActivitySink)(nil)

// AsyncActivitySink decorates the activity ledger so audit writes issued
// outside a transaction never sit on the settlement hot path. Appends that
// arrive with a live tx handle stay synchronous: the handle cannot cross
// goroutines, and in-tx entries must commit or roll back with their payment.
type AsyncActivitySink struct {
	inner repository.ActivityRepository
	pool  *Pool
	log   *zerolog.Logger
}

func NewAsyncActivitySink(inner repository.ActivityRepository, pool *Pool, logger *zerolog.Logger) *AsyncActivitySink {
	sinkLog := logger.With().Str("component", "AsyncActivitySink").Logger()
	return &AsyncActivitySink{inner: inner, pool: pool, log: &sinkLog}
}

func (s *AsyncActivitySink) Append(ctx context.Context, tx repository.Tx, a *model.UserActivity) error {
	if tx != nil {
		return s.inner.Append(ctx, tx, a)
	}
	err := s.pool.Submit(func(taskCtx context.Context) error {
		if err := s.inner.Append(taskCtx, repository.NoTX, a); err != nil {
			s.log.Error().Err(err).Str("activity_id", a.ID).Str("kind", a.Kind).Msg("async activity append failed")
		}
		return nil
	})
	if err != nil {
		// queue saturated; the ledger entry matters more than the latency win
		return s.inner.Append(ctx, repository.NoTX, a)
	}
	return nil
}

func (s *AsyncActivitySink) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.UserActivity, error) {
	return s.inner.ListByUser(ctx, tx, userID, limit)
}
