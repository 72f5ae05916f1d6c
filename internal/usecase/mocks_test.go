//go:build !integration

package usecase

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
	"travel-booking-payments/internal/domain/ports/repository"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// --- In-memory repositories. The payment repo performs its conditional
// updates under a mutex, mirroring the atomicity the SQL UPDATE gives the
// real one, so concurrency tests exercise the same winner-selection. ---

type memPaymentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Payment
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byID: map[string]*model.Payment{}}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, provider model.Provider, externalID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Provider == provider && p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) ListPendingByAmount(ctx context.Context, tx repository.Tx, provider model.Provider, amount decimal.Decimal, currency string, since time.Time) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if p.Provider == provider && p.Status == model.PaymentStatusPending &&
			p.Amount.Equal(amount) && p.Currency == currency && p.CreatedAt.After(since) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) MarkApproved(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if p.ApprovedAt == nil {
		p.ApprovedAt = &at
	}
	return nil
}

func (m *memPaymentRepo) ListApprovedUncaptured(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if p.Status == model.PaymentStatusPending && p.ApprovedAt != nil && p.ApprovedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type memPurchaseRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Purchase
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{byID: map[string]*model.Purchase{}}
}

func (m *memPurchaseRepo) Save(ctx context.Context, tx repository.Tx, pu *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pu
	m.byID[pu.ID] = &cp
	return nil
}

func (m *memPurchaseRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pu := range m.byID {
		if pu.PaymentID == paymentID {
			cp := *pu
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPurchaseRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pu, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	pu.Status = status
	return nil
}

func (m *memPurchaseRepo) RecordCashback(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pu, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	pu.CashbackPaid = amount
	return nil
}

func (m *memPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Purchase
	for _, pu := range m.byID {
		if pu.UserID == userID {
			cp := *pu
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPackageRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Package
}

func newMemPackageRepo() *memPackageRepo {
	return &memPackageRepo{byID: map[string]*model.Package{}}
}

func (m *memPackageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pkg
	m.byID[pkg.ID] = &cp
	return nil
}

func (m *memPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pkg
	return &cp, nil
}

func (m *memPackageRepo) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

func (m *memPackageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Package
	for _, pkg := range m.byID {
		if pkg.Active {
			cp := *pkg
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memBalanceRepo struct {
	mu      sync.Mutex
	credits map[string]int64
	wallet  map[string]decimal.Decimal
}

func newMemBalanceRepo() *memBalanceRepo {
	return &memBalanceRepo{credits: map[string]int64{}, wallet: map[string]decimal.Decimal{}}
}

func (m *memBalanceRepo) AddCredits(ctx context.Context, tx repository.Tx, userID string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[userID] += delta
	return nil
}

func (m *memBalanceRepo) AddWallet(ctx context.Context, tx repository.Tx, userID string, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallet[userID] = m.wallet[userID].Add(delta)
	return nil
}

func (m *memBalanceRepo) Credits(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits[userID]
}

func (m *memBalanceRepo) Wallet(userID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallet[userID]
}

type memActivityRepo struct {
	mu      sync.Mutex
	entries []*model.UserActivity
}

func newMemActivityRepo() *memActivityRepo { return &memActivityRepo{} }

func (m *memActivityRepo) Append(ctx context.Context, tx repository.Tx, a *model.UserActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memActivityRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.UserActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.UserActivity
	for _, a := range m.entries {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memActivityRepo) CountKind(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.entries {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

type memSettlementLogRepo struct {
	mu      sync.Mutex
	entries []*repository.UnmatchedSettlement
}

func newMemSettlementLogRepo() *memSettlementLogRepo { return &memSettlementLogRepo{} }

func (m *memSettlementLogRepo) Save(ctx context.Context, tx repository.Tx, u *repository.UnmatchedSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memSettlementLogRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*repository.UnmatchedSettlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*repository.UnmatchedSettlement{}, m.entries...), nil
}

// --- Port mocks ---

type noTx struct{}

type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}

type mockGateway struct {
	provider          model.Provider
	mu                sync.Mutex
	captured          []string
	CreateSessionFunc func(ctx context.Context, p *model.Payment, successURL, cancelURL string) (*adapter.CheckoutSession, error)
	CaptureFunc       func(ctx context.Context, externalID string) error
}

func (m *mockGateway) Name() model.Provider { return m.provider }

func (m *mockGateway) CreateSession(ctx context.Context, p *model.Payment, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, p, successURL, cancelURL)
	}
	return &adapter.CheckoutSession{ID: "sess-" + p.ID, RedirectURL: "https://pay.test/" + p.ID}, nil
}

func (m *mockGateway) Capture(ctx context.Context, externalID string) error {
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx, externalID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, externalID)
	return nil
}

func (m *mockGateway) Captured() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.captured...)
}

func (m *mockGateway) ParseWebhook(ctx context.Context, r *http.Request, body []byte) (*model.SettlementEvent, error) {
	return nil, nil
}

type mockAlertNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (m *mockAlertNotifier) Alert(ctx context.Context, kind, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
	return nil
}

func (m *mockAlertNotifier) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.kinds...)
}
