package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/infra/metrics"
	"travel-booking-payments/internal/usecase"
)

// CaptureReconciler retries captures for two-phase orders that were approved
// but never settled. This closes the crash window between recording an
// approval and the capture call reaching the provider: the provider will not
// redeliver the approval event once it was acked.
type CaptureReconciler struct {
	interval   time.Duration
	staleAfter time.Duration
	payments   repository.PaymentRepository
	settleUC   usecase.SettlementUseCase
	log        *zerolog.Logger
}

func NewCaptureReconciler(interval, staleAfter time.Duration, payments repository.PaymentRepository, settleUC usecase.SettlementUseCase, logger *zerolog.Logger) *CaptureReconciler {
	recLog := logger.With().Str("component", "CaptureReconciler").Logger()
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &CaptureReconciler{
		interval:   interval,
		staleAfter: staleAfter,
		payments:   payments,
		settleUC:   settleUC,
		log:        &recLog,
	}
}

func (w *CaptureReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting capture reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping capture reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *CaptureReconciler) runOnce(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListApprovedUncaptured(ctx, repository.NoTX, cutoff, 100)
	if err != nil {
		w.log.Error().Err(err).Msg("capture reconciler scan failed")
		return
	}
	for _, p := range stale {
		if err := w.settleUC.Capture(ctx, p); err != nil {
			// payment stays pending; retried next tick
			metrics.IncAnomaly(string(p.Provider), "capture_retry_failed")
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("capture retry failed")
			continue
		}
		w.log.Info().Str("payment_id", p.ID).Msg("capture retried")
	}
}
