// File: internal/usecase/settlement_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/infra/logging"
	"travel-booking-payments/internal/infra/metrics"
)

// heuristicWindow bounds the amount/currency correlation fallback for
// provider events that carry neither a correlation token nor an order id.
const heuristicWindow = 24 * time.Hour

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

type SettlementUseCase interface {
	// HandleEvent correlates a canonical settlement event to a payment and
	// applies it. Safe under arbitrary redelivery and concurrency.
	HandleEvent(ctx context.Context, ev *model.SettlementEvent) error

	// Resolve maps an event to exactly one payment, or reports
	// ErrCorrelationNotFound / ErrAmbiguousCorrelation.
	Resolve(ctx context.Context, ev *model.SettlementEvent) (*model.Payment, error)

	// ApplyEvent applies a resolved event to its payment, idempotently.
	ApplyEvent(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) error

	// Capture completes a two-phase flow for an approved payment. Failures
	// are ErrProviderCallFailure and never mark the payment failed.
	Capture(ctx context.Context, p *model.Payment) error

	// Admin reconciliation surface.
	RecentUnmatched(ctx context.Context, limit int) ([]*repository.UnmatchedSettlement, error)
	RecentPayments(ctx context.Context, limit int) ([]*model.Payment, error)
}

type settlementUC struct {
	payments   repository.PaymentRepository
	purchases  repository.PurchaseRepository
	packages   repository.PackageRepository
	balances   repository.BalanceRepository
	activities repository.ActivityRepository
	unmatched  repository.SettlementLogRepository
	gateways   map[model.Provider]adapter.CheckoutGateway
	alerts     adapter.AlertNotifier
	tm         repository.TransactionManager
	timeout    time.Duration // bound on outbound provider calls
	log        *zerolog.Logger
}

func NewSettlementUseCase(
	payments repository.PaymentRepository,
	purchases repository.PurchaseRepository,
	packages repository.PackageRepository,
	balances repository.BalanceRepository,
	activities repository.ActivityRepository,
	unmatched repository.SettlementLogRepository,
	gateways map[model.Provider]adapter.CheckoutGateway,
	alerts adapter.AlertNotifier,
	tm repository.TransactionManager,
	timeout time.Duration,
	logger *zerolog.Logger,
) *settlementUC {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &settlementUC{
		payments:   payments,
		purchases:  purchases,
		packages:   packages,
		balances:   balances,
		activities: activities,
		unmatched:  unmatched,
		gateways:   gateways,
		alerts:     alerts,
		tm:         tm,
		timeout:    timeout,
		log:        logger,
	}
}

func (u *settlementUC) HandleEvent(ctx context.Context, ev *model.SettlementEvent) error {
	ctx = logging.WithProvider(ctx, string(ev.Provider))
	ctx = logging.WithEventID(ctx, ev.ProviderEventID)
	log := logging.With(ctx, u.log)

	p, err := u.Resolve(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrCorrelationNotFound) || errors.Is(err, domain.ErrAmbiguousCorrelation) {
			u.recordUnmatched(ctx, ev, err)
		}
		return err
	}
	ctx = logging.WithPaymentID(ctx, p.ID)

	if ev.Kind == model.EventApproved {
		return u.approveAndCapture(ctx, p, ev)
	}

	if err := u.ApplyEvent(ctx, p, ev); err != nil {
		return err
	}
	log.Debug().Str("kind", string(ev.Kind)).Msg("settlement event handled")
	return nil
}

// Resolve prefers the correlation token minted at checkout, then the exact
// session/order id match, and only then the amount/recency heuristic. The
// heuristic is a known-fragile degraded path: its use is audited, and a tie
// is never guessed at.
func (u *settlementUC) Resolve(ctx context.Context, ev *model.SettlementEvent) (*model.Payment, error) {
	log := logging.With(ctx, u.log)

	if ev.PaymentID != "" {
		p, err := u.payments.FindByID(ctx, repository.NoTX, ev.PaymentID)
		if err == nil {
			metrics.IncCorrelation(string(ev.Provider), "token")
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		log.Warn().Str("token", ev.PaymentID).Msg("correlation token references no payment")
	}

	if ev.ExternalID != "" {
		p, err := u.payments.FindByExternalID(ctx, repository.NoTX, ev.Provider, ev.ExternalID)
		if err == nil {
			metrics.IncCorrelation(string(ev.Provider), "external_id")
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	// Last resort: newest pending payment for this provider with the same
	// amount and currency inside the recency window.
	if ev.Provider == model.ProviderPayPal && ev.Amount.IsPositive() {
		since := time.Now().Add(-heuristicWindow)
		candidates, err := u.payments.ListPendingByAmount(ctx, repository.NoTX, ev.Provider, ev.Amount, ev.Currency, since)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		switch len(candidates) {
		case 0:
			// fall through to not found
		case 1:
			p := candidates[0]
			metrics.IncCorrelation(string(ev.Provider), "heuristic")
			log.Warn().Str("payment_id", p.ID).Msg("correlation resolved by amount/recency heuristic")
			u.appendActivity(ctx, model.NewUserActivity(p.UserID, "settlement.heuristic_correlation",
				"Degraded settlement correlation",
				fmt.Sprintf("Settlement event %s matched payment %s by amount/recency heuristic", ev.ProviderEventID, p.ID),
				map[string]string{"payment_id": p.ID, "provider_event_id": ev.ProviderEventID, "correlation": "heuristic"}))
			u.alert(ctx, "heuristic_correlation",
				fmt.Sprintf("event %s correlated to payment %s by heuristic; verify manually", ev.ProviderEventID, p.ID))
			return p, nil
		default:
			metrics.IncAnomaly(string(ev.Provider), "ambiguous_correlation")
			return nil, domain.ErrAmbiguousCorrelation
		}
	}

	metrics.IncAnomaly(string(ev.Provider), "correlation_not_found")
	return nil, domain.ErrCorrelationNotFound
}

func (u *settlementUC) ApplyEvent(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) error {
	log := logging.With(ctx, u.log)

	if ev.Amount.IsPositive() && !ev.Amount.Equal(p.Amount) {
		// The canonical amount computed at checkout wins; a differing
		// provider figure is an operator signal, not a settlement input.
		log.Warn().
			Str("canonical_amount", p.Amount.String()).
			Str("provider_amount", ev.Amount.String()).
			Msg("provider-reported amount differs from canonical amount")
	}

	switch ev.Kind {
	case model.EventCompleted:
		return u.applyCompleted(ctx, p, ev)
	case model.EventDenied, model.EventVoided:
		return u.applyFailed(ctx, p, ev)
	case model.EventRefunded:
		return u.applyRefunded(ctx, p, ev)
	case model.EventApproved:
		return u.approveAndCapture(ctx, p, ev)
	default:
		return fmt.Errorf("%w: event kind %q", domain.ErrInvalidArgument, ev.Kind)
	}
}

// applyCompleted is the exactly-once core. The status CAS inside the
// transaction is the sole winner-selection point: the loser of a concurrent
// duplicate delivery sees ok=false and leaves every row untouched.
func (u *settlementUC) applyCompleted(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) error {
	log := logging.With(ctx, u.log)
	now := time.Now().UTC()
	duplicate := false

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusSucceeded, &now)
		if err != nil {
			return err
		}
		if !ok {
			duplicate = true
			return nil
		}

		pu, err := u.purchases.FindByPaymentID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if err := u.purchases.UpdateStatus(ctx, tx, pu.ID, p.Meta.Type.SuccessStatus()); err != nil {
			return err
		}

		if err := u.creditBalance(ctx, tx, p); err != nil {
			return err
		}

		if err := u.activities.Append(ctx, tx, u.successActivity(p, ev)); err != nil {
			return err
		}

		// Cashback is chained strictly after the primary transition, inside
		// the same transaction: a crash can never confirm the booking and
		// lose the cashback, and redelivery can never double it.
		if p.Meta.Type == model.PackageTypeTour {
			if err := u.applyCashback(ctx, tx, p, pu); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "error")
		return err
	}

	if duplicate {
		u.recordDuplicate(ctx, p, ev)
		return nil
	}

	metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "applied")
	metrics.IncPayment(string(model.PaymentStatusSucceeded))
	amt, _ := p.Amount.Float64()
	metrics.AddPaymentRevenue(p.Currency, amt)
	log.Info().Str("package_type", string(p.Meta.Type)).Str("amount", p.Amount.String()).Msg("payment settled")
	return nil
}

func (u *settlementUC) applyFailed(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) error {
	log := logging.With(ctx, u.log)
	duplicate := false

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusFailed, nil)
		if err != nil {
			return err
		}
		if !ok {
			duplicate = true
			return nil
		}
		pu, err := u.purchases.FindByPaymentID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if err := u.purchases.UpdateStatus(ctx, tx, pu.ID, p.Meta.Type.FailureStatus()); err != nil {
			return err
		}
		// No balance mutation: none was ever applied for a pending payment.
		return u.activities.Append(ctx, tx, model.NewUserActivity(p.UserID, "payment.failed",
			"Payment failed",
			fmt.Sprintf("Payment of %s %s was %s by the provider", p.Amount.String(), p.Currency, ev.Kind),
			map[string]string{"payment_id": p.ID, "provider_event_id": ev.ProviderEventID}))
	})
	if err != nil {
		metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "error")
		return err
	}
	if duplicate {
		u.recordDuplicate(ctx, p, ev)
		return nil
	}
	metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "applied")
	metrics.IncPayment(string(model.PaymentStatusFailed))
	log.Info().Str("kind", string(ev.Kind)).Msg("payment marked failed")
	return nil
}

// applyRefunded compensates the original mutation, but only when that
// mutation was provably applied: the succeeded->canceled CAS is the proof.
// A refund for a payment that never succeeded is an inconsistency that is
// reported and never auto-corrected.
func (u *settlementUC) applyRefunded(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) error {
	log := logging.With(ctx, u.log)
	var duplicate, inconsistent bool

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.payments.UpdateStatusIf(ctx, tx, p.ID, model.PaymentStatusSucceeded, model.PaymentStatusCanceled)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := u.payments.FindByID(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if cur.Status == model.PaymentStatusCanceled {
				duplicate = true
				return nil
			}
			inconsistent = true
			return nil
		}

		pu, err := u.purchases.FindByPaymentID(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if err := u.purchases.UpdateStatus(ctx, tx, pu.ID, model.PurchaseStatusRefunded); err != nil {
			return err
		}
		if err := u.reverseBalance(ctx, tx, p, pu); err != nil {
			return err
		}
		return u.activities.Append(ctx, tx, model.NewUserActivity(p.UserID, "payment.refunded",
			"Payment refunded",
			fmt.Sprintf("Payment of %s %s was refunded and the credited amount reversed", p.Amount.String(), p.Currency),
			map[string]string{"payment_id": p.ID, "provider_event_id": ev.ProviderEventID}))
	})
	if err != nil {
		metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "error")
		return err
	}

	if duplicate {
		u.recordDuplicate(ctx, p, ev)
		return nil
	}
	if inconsistent {
		metrics.IncAnomaly(string(ev.Provider), "compensation_inconsistency")
		u.alert(ctx, "compensation_inconsistency",
			fmt.Sprintf("refund event %s for payment %s which never succeeded; nothing reversed", ev.ProviderEventID, p.ID))
		log.Error().Msg("refund for a payment that never succeeded")
		return domain.ErrCompensationInconsistency
	}

	metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "applied")
	metrics.IncPayment(string(model.PaymentStatusCanceled))
	log.Info().Msg("payment refunded, balance compensated")
	return nil
}

// approveAndCapture handles the first phase of a two-phase flow. Approval
// moves no money; the capture call does, and its result only ever reaches us
// through the provider's own Completed/Denied events.
func (u *settlementUC) approveAndCapture(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) error {
	if p.Status != model.PaymentStatusPending {
		u.recordDuplicate(ctx, p, ev)
		return nil
	}
	if err := u.payments.MarkApproved(ctx, repository.NoTX, p.ID, time.Now().UTC()); err != nil {
		return err
	}
	metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "applied")
	return u.Capture(ctx, p)
}

func (u *settlementUC) Capture(ctx context.Context, p *model.Payment) error {
	log := logging.With(ctx, u.log)
	gw, ok := u.gateways[p.Provider]
	if !ok {
		return fmt.Errorf("%w: no gateway for provider %q", domain.ErrInvalidArgument, p.Provider)
	}

	ctx2, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if err := gw.Capture(ctx2, p.ExternalID); err != nil {
		// The payment stays pending: only the provider's own denial event
		// may mark it failed. Returning the retryable kind makes the webhook
		// respond 5xx so the provider redelivers, and the capture reconciler
		// retries independently.
		metrics.IncAnomaly(string(p.Provider), "provider_call_failure")
		log.Error().Err(err).Str("external_id", p.ExternalID).Msg("capture call failed")
		return fmt.Errorf("%w: capture %s: %v", domain.ErrProviderCallFailure, p.ExternalID, err)
	}
	log.Info().Str("external_id", p.ExternalID).Msg("capture requested")
	return nil
}

func (u *settlementUC) RecentUnmatched(ctx context.Context, limit int) ([]*repository.UnmatchedSettlement, error) {
	return u.unmatched.ListRecent(ctx, repository.NoTX, limit)
}

func (u *settlementUC) RecentPayments(ctx context.Context, limit int) ([]*model.Payment, error) {
	return u.payments.ListRecent(ctx, repository.NoTX, limit)
}

// ---- balance effects ----

// Balance mutation metrics are emitted by the balance repository, the layer
// that applies them.

func (u *settlementUC) creditBalance(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	switch p.Meta.Type {
	case model.PackageTypeCredit:
		return u.balances.AddCredits(ctx, tx, p.UserID, p.Meta.Credits)
	case model.PackageTypeWallet, model.PackageTypeCustomTopup:
		return u.balances.AddWallet(ctx, tx, p.UserID, p.Meta.Amount)
	case model.PackageTypeTour:
		// Booking confirmation moves no balance; cashback is a separate step.
	}
	return nil
}

func (u *settlementUC) reverseBalance(ctx context.Context, tx repository.Tx, p *model.Payment, pu *model.Purchase) error {
	switch p.Meta.Type {
	case model.PackageTypeCredit:
		return u.balances.AddCredits(ctx, tx, p.UserID, -p.Meta.Credits)
	case model.PackageTypeWallet, model.PackageTypeCustomTopup:
		return u.balances.AddWallet(ctx, tx, p.UserID, p.Meta.Amount.Neg())
	case model.PackageTypeTour:
		// The only mutation a tour settlement applied is the cashback. The
		// figure stored on the purchase at settlement time is reversed, not a
		// recomputation: the catalog percentage may have changed (or the row
		// vanished) since the booking settled.
		if pu.CashbackPaid.IsPositive() {
			return u.balances.AddWallet(ctx, tx, p.UserID, pu.CashbackPaid.Neg())
		}
	}
	return nil
}

// applyCashback credits totalAmount * percentage / 100 to the wallet as a
// second, additive effect with its own activity entry, and stores the credited
// figure on the purchase row so a refund reverses exactly that amount. It
// never replaces the booking confirmation.
func (u *settlementUC) applyCashback(ctx context.Context, tx repository.Tx, p *model.Payment, pu *model.Purchase) error {
	cb, err := u.cashbackAmount(ctx, tx, p)
	if err != nil {
		return err
	}
	if !cb.IsPositive() {
		return nil
	}
	if err := u.balances.AddWallet(ctx, tx, p.UserID, cb); err != nil {
		return err
	}
	if err := u.purchases.RecordCashback(ctx, tx, pu.ID, cb); err != nil {
		return err
	}
	return u.activities.Append(ctx, tx, model.NewUserActivity(p.UserID, "booking.cashback",
		"Cashback credited",
		fmt.Sprintf("Cashback of %s %s credited for your tour booking", cb.String(), p.Currency),
		map[string]string{"payment_id": p.ID, "cashback": cb.String()}))
}

func (u *settlementUC) cashbackAmount(ctx context.Context, tx repository.Tx, p *model.Payment) (decimal.Decimal, error) {
	pkg, err := u.packages.FindByID(ctx, tx, p.PackageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	if !pkg.Cashback.IsPositive() {
		return decimal.Zero, nil
	}
	return p.Amount.Mul(pkg.Cashback).Div(decimal.NewFromInt(100)).Round(2), nil
}

// ---- audit helpers ----

func (u *settlementUC) successActivity(p *model.Payment, ev *model.SettlementEvent) *model.UserActivity {
	switch p.Meta.Type {
	case model.PackageTypeCredit:
		return model.NewUserActivity(p.UserID, "payment.succeeded",
			"Credits purchased",
			fmt.Sprintf("%d credits added to your account", p.Meta.Credits),
			map[string]string{"payment_id": p.ID, "provider_event_id": ev.ProviderEventID, "credits": fmt.Sprintf("%d", p.Meta.Credits)})
	case model.PackageTypeTour:
		return model.NewUserActivity(p.UserID, "booking.confirmed",
			"Tour booking confirmed",
			fmt.Sprintf("Your tour booking of %s %s is confirmed", p.Amount.String(), p.Currency),
			map[string]string{"payment_id": p.ID, "provider_event_id": ev.ProviderEventID})
	default:
		return model.NewUserActivity(p.UserID, "payment.succeeded",
			"Wallet topped up",
			fmt.Sprintf("%s %s added to your wallet", p.Meta.Amount.String(), p.Currency),
			map[string]string{"payment_id": p.ID, "provider_event_id": ev.ProviderEventID, "amount": p.Meta.Amount.String()})
	}
}

// recordDuplicate handles a redelivered event that lost the status race: an
// audit entry, a metric, and nothing else.
func (u *settlementUC) recordDuplicate(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) {
	metrics.IncSettlementEvent(string(ev.Provider), string(ev.Kind), "duplicate")
	logging.With(ctx, u.log).Info().
		Str("kind", string(ev.Kind)).
		Str("status", string(p.Status)).
		Msg("duplicate settlement delivery ignored")
	u.appendActivity(ctx, model.NewUserActivity(p.UserID, "settlement.duplicate",
		"Duplicate settlement delivery",
		fmt.Sprintf("Event %s (%s) redelivered for payment %s; no effect", ev.ProviderEventID, ev.Kind, p.ID),
		map[string]string{"payment_id": p.ID, "provider_event_id": ev.ProviderEventID, "kind": string(ev.Kind)}))
}

func (u *settlementUC) recordUnmatched(ctx context.Context, ev *model.SettlementEvent, cause error) {
	reason := "not_found"
	if errors.Is(cause, domain.ErrAmbiguousCorrelation) {
		reason = "ambiguous"
	}
	rec := &repository.UnmatchedSettlement{
		ID:              uuid.NewString(),
		Provider:        ev.Provider,
		ProviderEventID: ev.ProviderEventID,
		Kind:            ev.Kind,
		Reason:          reason,
		Raw:             ev.Raw,
		ReceivedAt:      time.Now().UTC(),
	}
	if err := u.unmatched.Save(ctx, repository.NoTX, rec); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Msg("failed to persist unmatched settlement")
	}
	u.alert(ctx, reason,
		fmt.Sprintf("settlement event %s from %s could not be correlated (%s); manual reconciliation required", ev.ProviderEventID, ev.Provider, reason))
	logging.With(ctx, u.log).Error().
		Str("reason", reason).
		RawJSON("payload", ev.Raw).
		Msg("unresolved settlement event")
}

// appendActivity is fire-and-forget: ledger sink failures are logged, never
// propagated into settlement outcomes.
func (u *settlementUC) appendActivity(ctx context.Context, a *model.UserActivity) {
	if err := u.activities.Append(ctx, repository.NoTX, a); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("activity_kind", a.Kind).Msg("activity append failed")
	}
}

func (u *settlementUC) alert(ctx context.Context, kind, msg string) {
	if u.alerts == nil {
		return
	}
	if err := u.alerts.Alert(ctx, kind, msg); err != nil {
		logging.With(ctx, u.log).Error().Err(err).Str("alert_kind", kind).Msg("alert delivery failed")
	}
}
