//go:build !integration

package web

import (
	"context"
	"net/http"

	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/usecase"
)

// --- Mock use cases and ports ---

type mockCheckoutUC struct {
	CreateSessionFunc func(ctx context.Context, in usecase.CreateSessionInput) (*model.Payment, *adapter.CheckoutSession, error)
}

func (m *mockCheckoutUC) CreateSession(ctx context.Context, in usecase.CreateSessionInput) (*model.Payment, *adapter.CheckoutSession, error) {
	return m.CreateSessionFunc(ctx, in)
}

type mockSettlementUC struct {
	HandleEventFunc     func(ctx context.Context, ev *model.SettlementEvent) error
	RecentUnmatchedFunc func(ctx context.Context, limit int) ([]*repository.UnmatchedSettlement, error)
	RecentPaymentsFunc  func(ctx context.Context, limit int) ([]*model.Payment, error)
}

func (m *mockSettlementUC) HandleEvent(ctx context.Context, ev *model.SettlementEvent) error {
	return m.HandleEventFunc(ctx, ev)
}
func (m *mockSettlementUC) Resolve(ctx context.Context, ev *model.SettlementEvent) (*model.Payment, error) {
	return nil, nil
}
func (m *mockSettlementUC) ApplyEvent(ctx context.Context, p *model.Payment, ev *model.SettlementEvent) error {
	return nil
}
func (m *mockSettlementUC) Capture(ctx context.Context, p *model.Payment) error { return nil }
func (m *mockSettlementUC) RecentUnmatched(ctx context.Context, limit int) ([]*repository.UnmatchedSettlement, error) {
	if m.RecentUnmatchedFunc != nil {
		return m.RecentUnmatchedFunc(ctx, limit)
	}
	return nil, nil
}
func (m *mockSettlementUC) RecentPayments(ctx context.Context, limit int) ([]*model.Payment, error) {
	if m.RecentPaymentsFunc != nil {
		return m.RecentPaymentsFunc(ctx, limit)
	}
	return nil, nil
}

type mockGateway struct {
	provider         model.Provider
	ParseWebhookFunc func(ctx context.Context, r *http.Request, body []byte) (*model.SettlementEvent, error)
}

func (m *mockGateway) Name() model.Provider { return m.provider }
func (m *mockGateway) CreateSession(ctx context.Context, p *model.Payment, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	return nil, nil
}
func (m *mockGateway) Capture(ctx context.Context, externalID string) error { return nil }
func (m *mockGateway) ParseWebhook(ctx context.Context, r *http.Request, body []byte) (*model.SettlementEvent, error) {
	return m.ParseWebhookFunc(ctx, r, body)
}

type mockPackageRepo struct {
	ListActiveFunc func(ctx context.Context, tx repository.Tx) ([]*model.Package, error)
}

func (m *mockPackageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	return nil
}
func (m *mockPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	return nil, nil
}
func (m *mockPackageRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	return m.ListActiveFunc(ctx, tx)
}
