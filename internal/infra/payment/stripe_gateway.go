package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*StripeGateway)(nil)

// StripeGateway implements the checkout port over Stripe hosted checkout
// sessions. The flow is single-phase: completion arrives directly as a
// checkout.session.completed event, so Capture is a no-op.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

func (g *StripeGateway) Name() model.Provider { return model.ProviderStripe }

// CreateSession registers a hosted checkout session. The settlement metadata
// (correlation token included) goes on both the session and the payment
// intent, so refund events on the charge echo it back too.
func (g *StripeGateway) CreateSession(ctx context.Context, p *model.Payment, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	meta := p.Meta.Encode(p.UserID, p.PackageID, p.ID)

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(p.Currency)),
				UnitAmount: stripe.Int64(toMinorUnits(p.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(string(p.Meta.Type)),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		Metadata: meta,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: meta,
		},
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	return &adapter.CheckoutSession{ID: sess.ID, RedirectURL: sess.URL}, nil
}

// Capture: Stripe checkout settles in one phase.
func (g *StripeGateway) Capture(ctx context.Context, externalID string) error { return nil }

// ParseWebhook verifies the HMAC signature over the raw body (with the
// library's default timestamp tolerance) and normalizes the event. Event
// types the engine does not act on yield (nil, nil).
func (g *StripeGateway) ParseWebhook(ctx context.Context, r *http.Request, body []byte) (*model.SettlementEvent, error) {
	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}

	var kind model.EventKind
	switch event.Type {
	case "checkout.session.completed":
		kind = model.EventCompleted
	case "checkout.session.async_payment_failed":
		kind = model.EventDenied
	case "checkout.session.expired":
		kind = model.EventVoided
	case "charge.refunded":
		return g.refundEvent(event, body)
	default:
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: checkout session payload: %v", domain.ErrInvalidArgument, err)
	}

	ev := &model.SettlementEvent{
		ProviderEventID: event.ID,
		Provider:        model.ProviderStripe,
		Kind:            kind,
		ExternalID:      sess.ID,
		PaymentID:       sess.Metadata["payment_id"],
		Amount:          fromMinorUnits(sess.AmountTotal),
		Currency:        strings.ToUpper(string(sess.Currency)),
		Raw:             body,
		ReceivedAt:      time.Now().UTC(),
	}
	if meta, err := model.DecodeSettlementMeta(sess.Metadata); err == nil {
		ev.Meta = meta
	}
	return ev, nil
}

func (g *StripeGateway) refundEvent(event stripe.Event, body []byte) (*model.SettlementEvent, error) {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return nil, fmt.Errorf("%w: charge payload: %v", domain.ErrInvalidArgument, err)
	}
	return &model.SettlementEvent{
		ProviderEventID: event.ID,
		Provider:        model.ProviderStripe,
		Kind:            model.EventRefunded,
		PaymentID:       ch.Metadata["payment_id"], // inherited from payment-intent metadata
		Amount:          fromMinorUnits(ch.AmountRefunded),
		Currency:        strings.ToUpper(string(ch.Currency)),
		Raw:             body,
		ReceivedAt:      time.Now().UTC(),
	}, nil
}

func toMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Div(decimal.NewFromInt(100))
}
