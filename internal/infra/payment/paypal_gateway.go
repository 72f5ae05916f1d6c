package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
)

var _ adapter.CheckoutGateway = (*PayPalGateway)(nil)

// PayPalGateway implements the checkout port over the PayPal order API using
// direct HTTP calls. The flow is two-phase: CHECKOUT.ORDER.APPROVED triggers
// an explicit capture, and money moves only when PAYMENT.CAPTURE.COMPLETED
// arrives. Webhook authenticity is checked with an out-of-band
// verify-webhook-signature call against the registered webhook id.
type PayPalGateway struct {
	clientID     string
	clientSecret string
	webhookID    string
	baseURL      string
	client       *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewPayPalGateway(clientID, clientSecret, webhookID string, sandbox bool) *PayPalGateway {
	baseURL := "https://api-m.paypal.com"
	if sandbox {
		baseURL = "https://api-m.sandbox.paypal.com"
	}
	return &PayPalGateway{
		clientID:     clientID,
		clientSecret: clientSecret,
		webhookID:    webhookID,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *PayPalGateway) Name() model.Provider { return model.ProviderPayPal }

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateSession creates an order with the correlation token in both
// custom_id and invoice_id of the purchase unit, the two fields PayPal
// echoes back on every capture-level event.
func (g *PayPalGateway) CreateSession(ctx context.Context, p *model.Payment, successURL, cancelURL string) (*adapter.CheckoutSession, error) {
	meta := p.Meta.Encode(p.UserID, p.PackageID, p.ID)
	metaJSON, _ := json.Marshal(meta)

	reqBody := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{{
			"reference_id": p.ID,
			"custom_id":    p.ID,
			"invoice_id":   p.ID,
			"description":  string(metaJSON),
			"amount": paypalAmount{
				CurrencyCode: strings.ToUpper(p.Currency),
				Value:        p.Amount.StringFixed(2),
			},
		}},
		"application_context": map[string]string{
			"return_url": successURL,
			"cancel_url": cancelURL,
		},
	}

	var resp paypalOrderResponse
	if err := g.call(ctx, http.MethodPost, "/v2/checkout/orders", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	approveURL := ""
	for _, l := range resp.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approveURL = l.Href
			break
		}
	}
	if resp.ID == "" || approveURL == "" {
		return nil, fmt.Errorf("paypal create order: malformed response (id=%q)", resp.ID)
	}
	return &adapter.CheckoutSession{ID: resp.ID, RedirectURL: approveURL}, nil
}

// Capture completes the second phase for an approved order. Its outcome only
// matters as far as transport success: the authoritative settlement signal is
// the provider's own capture event.
func (g *PayPalGateway) Capture(ctx context.Context, externalID string) error {
	var resp paypalOrderResponse
	err := g.call(ctx, http.MethodPost, "/v2/checkout/orders/"+externalID+"/capture", map[string]interface{}{}, &resp)
	if err != nil {
		return fmt.Errorf("paypal capture order %s: %w", externalID, err)
	}
	return nil
}

type paypalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID        string       `json:"id"`
		Status    string       `json:"status"`
		CustomID  string       `json:"custom_id"`
		InvoiceID string       `json:"invoice_id"`
		Amount    paypalAmount `json:"amount"`
		// capture events: the order id is buried here on current API versions
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		// older payloads only reference the order via the "up" link
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
		PurchaseUnits []struct {
			CustomID string       `json:"custom_id"`
			Amount   paypalAmount `json:"amount"`
		} `json:"purchase_units"`
	} `json:"resource"`
}

// ParseWebhook verifies the delivery out-of-band and maps the five acted-on
// event types to canonical kinds. Anything else returns (nil, nil) so the
// handler acknowledges it and the provider stops redelivering.
func (g *PayPalGateway) ParseWebhook(ctx context.Context, r *http.Request, body []byte) (*model.SettlementEvent, error) {
	if err := g.verifySignature(ctx, r, body); err != nil {
		return nil, err
	}

	var whe paypalWebhookEvent
	if err := json.Unmarshal(body, &whe); err != nil {
		return nil, fmt.Errorf("%w: webhook payload: %v", domain.ErrInvalidArgument, err)
	}

	var kind model.EventKind
	switch whe.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		kind = model.EventCompleted
	case "PAYMENT.CAPTURE.DENIED":
		kind = model.EventDenied
	case "PAYMENT.CAPTURE.REFUNDED":
		kind = model.EventRefunded
	case "CHECKOUT.ORDER.APPROVED":
		kind = model.EventApproved
	case "CHECKOUT.ORDER.VOIDED":
		kind = model.EventVoided
	default:
		return nil, nil
	}

	ev := &model.SettlementEvent{
		ProviderEventID: whe.ID,
		Provider:        model.ProviderPayPal,
		Kind:            kind,
		ExternalID:      g.orderID(&whe, kind),
		PaymentID:       g.correlationToken(&whe),
		Currency:        strings.ToUpper(whe.Resource.Amount.CurrencyCode),
		Raw:             body,
		ReceivedAt:      time.Now().UTC(),
	}
	if v := whe.Resource.Amount.Value; v != "" {
		if amt, err := decimal.NewFromString(v); err == nil {
			ev.Amount = amt
		}
	}
	if ev.Amount.IsZero() && len(whe.Resource.PurchaseUnits) > 0 {
		if amt, err := decimal.NewFromString(whe.Resource.PurchaseUnits[0].Amount.Value); err == nil {
			ev.Amount = amt
			ev.Currency = strings.ToUpper(whe.Resource.PurchaseUnits[0].Amount.CurrencyCode)
		}
	}
	return ev, nil
}

// orderID digs the checkout order id out of the provider-version-dependent
// locations. Capture events report the capture id in resource.id, not the
// order id recorded at checkout creation, so the nested spots are tried in
// order before giving up and leaving correlation to the token or heuristic.
func (g *PayPalGateway) orderID(whe *paypalWebhookEvent, kind model.EventKind) string {
	if kind == model.EventApproved || kind == model.EventVoided {
		return whe.Resource.ID // order-level events carry the order id directly
	}
	if id := whe.Resource.SupplementaryData.RelatedIDs.OrderID; id != "" {
		return id
	}
	for _, l := range whe.Resource.Links {
		if l.Rel != "up" {
			continue
		}
		if i := strings.LastIndex(l.Href, "/orders/"); i >= 0 {
			return strings.TrimSuffix(l.Href[i+len("/orders/"):], "/")
		}
	}
	return ""
}

func (g *PayPalGateway) correlationToken(whe *paypalWebhookEvent) string {
	if whe.Resource.CustomID != "" {
		return whe.Resource.CustomID
	}
	if whe.Resource.InvoiceID != "" {
		return whe.Resource.InvoiceID
	}
	if len(whe.Resource.PurchaseUnits) > 0 {
		return whe.Resource.PurchaseUnits[0].CustomID
	}
	return ""
}

func (g *PayPalGateway) verifySignature(ctx context.Context, r *http.Request, body []byte) error {
	reqBody := map[string]interface{}{
		"auth_algo":         r.Header.Get("Paypal-Auth-Algo"),
		"cert_url":          r.Header.Get("Paypal-Cert-Url"),
		"transmission_id":   r.Header.Get("Paypal-Transmission-Id"),
		"transmission_sig":  r.Header.Get("Paypal-Transmission-Sig"),
		"transmission_time": r.Header.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", reqBody, &resp); err != nil {
		return fmt.Errorf("%w: verify webhook signature: %v", domain.ErrProviderCallFailure, err)
	}
	if resp.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: verification_status=%s", domain.ErrSignatureInvalid, resp.VerificationStatus)
	}
	return nil
}

// call performs an authenticated JSON request against the PayPal API.
func (g *PayPalGateway) call(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := g.accessToken(ctx)
	if err != nil {
		return err
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w, body: %s", err, string(respBody))
		}
	}
	return nil
}

// accessToken returns a cached client-credentials token, refreshing it a
// minute before expiry.
func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && time.Now().Before(g.tokenExp) {
		return g.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return "", fmt.Errorf("unmarshal token response: %w", err)
	}
	g.token = tok.AccessToken
	g.tokenExp = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return g.token, nil
}
