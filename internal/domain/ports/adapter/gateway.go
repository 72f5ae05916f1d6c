package adapter

import (
	"context"
	"net/http"

	"travel-booking-payments/internal/domain/model"
)

// CheckoutSession is the redirect handle returned to the caller at checkout.
type CheckoutSession struct {
	ID          string // provider session/order id
	RedirectURL string
}

// CheckoutGateway is the hex port for a hosted-checkout payment provider.
// Implementations are explicitly constructed and injected; none hold
// package-level state.
type CheckoutGateway interface {
	Name() model.Provider

	// CreateSession registers a checkout with the provider, embedding the
	// payment's settlement metadata (correlation token included) in every
	// provider field that is echoed back on webhook events.
	CreateSession(ctx context.Context, p *model.Payment, successURL, cancelURL string) (*CheckoutSession, error)

	// Capture completes a two-phase authorize/capture flow. Providers with
	// single-phase flows return nil without a provider call.
	Capture(ctx context.Context, externalID string) error

	// ParseWebhook authenticates a delivery and normalizes it into a
	// canonical SettlementEvent. A (nil, nil) return means the event type is
	// authentic but not acted upon; the caller acknowledges and drops it.
	// Inauthentic payloads yield ErrSignatureInvalid, verification transport
	// failures ErrProviderCallFailure.
	ParseWebhook(ctx context.Context, r *http.Request, body []byte) (*model.SettlementEvent, error)
}
