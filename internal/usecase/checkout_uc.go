// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// CreateSession validates the package, computes the canonical charge
	// amount, creates the pending Payment+Purchase pair atomically, and
	// returns the provider redirect handle. It never blocks on settlement.
	CreateSession(ctx context.Context, in CreateSessionInput) (*model.Payment, *adapter.CheckoutSession, error)
}

// CreateSessionInput carries everything checkout needs. Amount is only
// honored for custom wallet top-ups; TourTotal is the externally pre-computed
// total for tour bookings.
type CreateSessionInput struct {
	UserID      string
	PackageID   string
	PackageType model.PackageType
	Provider    model.Provider
	SuccessURL  string
	CancelURL   string

	Amount     *decimal.Decimal // custom-wallet-topup only, must be in [5, 1000]
	TourTotal  *decimal.Decimal // tour only
	Adults     int
	Children   int
	Infants    int
	TravelDate *time.Time
}

type checkoutUC struct {
	payments  repository.PaymentRepository
	purchases repository.PurchaseRepository
	packages  repository.PackageRepository
	gateways  map[model.Provider]adapter.CheckoutGateway
	tm        repository.TransactionManager
	timeout   time.Duration // bound on the provider session call
	currency  string
	log       *zerolog.Logger
}

func NewCheckoutUseCase(
	payments repository.PaymentRepository,
	purchases repository.PurchaseRepository,
	packages repository.PackageRepository,
	gateways map[model.Provider]adapter.CheckoutGateway,
	tm repository.TransactionManager,
	timeout time.Duration,
	logger *zerolog.Logger,
) *checkoutUC {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &checkoutUC{
		payments:  payments,
		purchases: purchases,
		packages:  packages,
		gateways:  gateways,
		tm:        tm,
		timeout:   timeout,
		currency:  "USD",
		log:       logger,
	}
}

func (u *checkoutUC) CreateSession(ctx context.Context, in CreateSessionInput) (*model.Payment, *adapter.CheckoutSession, error) {
	gw, ok := u.gateways[in.Provider]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidArgument, in.Provider)
	}

	pkg, err := u.packages.FindByID(ctx, repository.NoTX, in.PackageID)
	if err != nil {
		return nil, nil, domain.ErrPackageUnavailable
	}
	if !pkg.Active || pkg.Type != in.PackageType {
		return nil, nil, domain.ErrPackageUnavailable
	}

	amount, meta, err := u.canonicalAmount(pkg, in)
	if err != nil {
		return nil, nil, err
	}
	if err := meta.Validate(); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	p := &model.Payment{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		PackageID: in.PackageID,
		Provider:  in.Provider,
		Amount:    amount,
		Currency:  u.currency,
		Status:    model.PaymentStatusPending,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	successURL := strings.ReplaceAll(in.SuccessURL, "{PAYMENT_ID}", p.ID)
	cancelURL := strings.ReplaceAll(in.CancelURL, "{PAYMENT_ID}", p.ID)

	// Provider first: a dangling provider session is harmless, a payment row
	// without a session is not. The call is bounded and holds no locks.
	gwCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	sess, err := gw.CreateSession(gwCtx, p, successURL, cancelURL)
	if err != nil {
		u.log.Error().Err(err).Str("provider", string(in.Provider)).Str("package_id", in.PackageID).Msg("checkout session creation failed")
		return nil, nil, fmt.Errorf("%w: create session: %v", domain.ErrProviderCallFailure, err)
	}
	p.ExternalID = sess.ID

	pu := u.buildPurchase(p, in, now)

	// Payment and Purchase appear together or not at all.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		return u.purchases.Save(ctx, tx, pu)
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().
		Str("payment_id", p.ID).
		Str("provider", string(in.Provider)).
		Str("package_type", string(in.PackageType)).
		Str("external_id", sess.ID).
		Str("amount", amount.String()).
		Msg("checkout session created")
	return p, sess, nil
}

func (u *checkoutUC) canonicalAmount(pkg *model.Package, in CreateSessionInput) (decimal.Decimal, model.SettlementMeta, error) {
	meta := model.SettlementMeta{Type: in.PackageType}
	switch in.PackageType {
	case model.PackageTypeCredit:
		meta.Credits = pkg.Credits
		return pkg.Price, meta, nil
	case model.PackageTypeWallet:
		meta.Amount = pkg.Price
		return pkg.Price, meta, nil
	case model.PackageTypeCustomTopup:
		if in.Amount == nil {
			return decimal.Zero, meta, domain.ErrInvalidAmount
		}
		if in.Amount.LessThan(model.TopupMinAmount) || in.Amount.GreaterThan(model.TopupMaxAmount) {
			return decimal.Zero, meta, domain.ErrInvalidAmount
		}
		meta.Amount = *in.Amount
		return *in.Amount, meta, nil
	case model.PackageTypeTour:
		if in.TourTotal == nil || !in.TourTotal.IsPositive() {
			return decimal.Zero, meta, domain.ErrInvalidAmount
		}
		meta.Adults = in.Adults
		meta.Children = in.Children
		meta.Infants = in.Infants
		meta.TravelDate = in.TravelDate
		return *in.TourTotal, meta, nil
	default:
		return decimal.Zero, meta, domain.ErrInvalidArgument
	}
}

func (u *checkoutUC) buildPurchase(p *model.Payment, in CreateSessionInput, now time.Time) *model.Purchase {
	pu := &model.Purchase{
		ID:         uuid.NewString(),
		PaymentID:  p.ID,
		UserID:     p.UserID,
		Kind:       in.PackageType,
		Status:     model.PurchaseStatusPending,
		AmountPaid: p.Amount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	switch in.PackageType {
	case model.PackageTypeCredit:
		pu.CreditsPurchased = p.Meta.Credits
	case model.PackageTypeWallet, model.PackageTypeCustomTopup:
		pu.AmountPurchased = p.Meta.Amount
	case model.PackageTypeTour:
		pu.Adults = in.Adults
		pu.Children = in.Children
		pu.Infants = in.Infants
		pu.TotalAmount = p.Amount
		pu.TravelDate = in.TravelDate
	}
	return pu
}
