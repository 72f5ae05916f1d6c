//go:build !integration

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
)

// fakePayPal stands in for the PayPal API: token endpoint, order endpoints
// and the signature verification endpoint.
type fakePayPal struct {
	verifyStatus string // what verify-webhook-signature reports
	verifyDown   bool   // simulate the verification endpoint failing
	captured     []string
	lastOrderReq map[string]interface{}
}

func (f *fakePayPal) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "test-token",
				"expires_in":   3600,
			})
		case r.URL.Path == "/v1/notifications/verify-webhook-signature":
			if f.verifyDown {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"verification_status": f.verifyStatus})
		case r.URL.Path == "/v2/checkout/orders" && r.Method == http.MethodPost:
			json.NewDecoder(r.Body).Decode(&f.lastOrderReq)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "ORDER-123",
				"status": "CREATED",
				"links": []map[string]string{
					{"href": "https://paypal.test/approve/ORDER-123", "rel": "approve"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/capture"):
			parts := strings.Split(r.URL.Path, "/")
			f.captured = append(f.captured, parts[len(parts)-2])
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "ORDER-123", "status": "COMPLETED"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestPayPal(t *testing.T, fake *fakePayPal) (*PayPalGateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	g := NewPayPalGateway("client-id", "client-secret", "WH-001", true)
	g.baseURL = srv.URL
	return g, srv
}

func webhookRequest(t *testing.T, body []byte) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodPost, "/webhooks/paypal", strings.NewReader(string(body)))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Paypal-Transmission-Id", "tx-1")
	r.Header.Set("Paypal-Transmission-Time", "2026-08-30T10:00:00Z")
	r.Header.Set("Paypal-Transmission-Sig", "sig")
	r.Header.Set("Paypal-Cert-Url", "https://api.paypal.test/cert")
	r.Header.Set("Paypal-Auth-Algo", "SHA256withRSA")
	return r
}

func TestPayPalCreateSession(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	g, _ := newTestPayPal(t, fake)

	p := &model.Payment{
		ID:        "pay-42",
		UserID:    "user-1",
		PackageID: "pkg-1",
		Provider:  model.ProviderPayPal,
		Amount:    decimalFromString(t, "49.99"),
		Currency:  "USD",
		Meta:      model.SettlementMeta{Type: model.PackageTypeWallet, Amount: decimalFromString(t, "49.99")},
	}
	sess, err := g.CreateSession(context.Background(), p, "https://app.test/ok", "https://app.test/cancel")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID != "ORDER-123" {
		t.Errorf("session id = %q, want ORDER-123", sess.ID)
	}
	if sess.RedirectURL != "https://paypal.test/approve/ORDER-123" {
		t.Errorf("redirect = %q", sess.RedirectURL)
	}

	units, ok := fake.lastOrderReq["purchase_units"].([]interface{})
	if !ok || len(units) != 1 {
		t.Fatalf("purchase_units missing in order request: %+v", fake.lastOrderReq)
	}
	unit := units[0].(map[string]interface{})
	if unit["custom_id"] != "pay-42" {
		t.Errorf("custom_id = %v, want pay-42", unit["custom_id"])
	}
	if unit["invoice_id"] != "pay-42" {
		t.Errorf("invoice_id = %v, want pay-42", unit["invoice_id"])
	}
	amt := unit["amount"].(map[string]interface{})
	if amt["value"] != "49.99" || amt["currency_code"] != "USD" {
		t.Errorf("amount = %+v", amt)
	}
}

func TestPayPalCapture(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	g, _ := newTestPayPal(t, fake)

	if err := g.Capture(context.Background(), "ORDER-123"); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(fake.captured) != 1 || fake.captured[0] != "ORDER-123" {
		t.Errorf("captured = %v, want [ORDER-123]", fake.captured)
	}
}

func TestPayPalParseWebhook_CaptureCompleted(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	g, _ := newTestPayPal(t, fake)

	body := []byte(`{
		"id": "WH-EV-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-9",
			"custom_id": "pay-42",
			"amount": {"currency_code": "USD", "value": "49.99"},
			"supplementary_data": {"related_ids": {"order_id": "ORDER-123"}}
		}
	}`)

	ev, err := g.ParseWebhook(context.Background(), webhookRequest(t, body), body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Kind != model.EventCompleted {
		t.Errorf("kind = %s, want %s", ev.Kind, model.EventCompleted)
	}
	if ev.PaymentID != "pay-42" {
		t.Errorf("payment id = %q, want pay-42", ev.PaymentID)
	}
	if ev.ExternalID != "ORDER-123" {
		t.Errorf("external id = %q, want ORDER-123", ev.ExternalID)
	}
	if !ev.Amount.Equal(decimalFromString(t, "49.99")) {
		t.Errorf("amount = %s, want 49.99", ev.Amount)
	}
}

func TestPayPalParseWebhook_OrderIDFromUpLink(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	g, _ := newTestPayPal(t, fake)

	body := []byte(`{
		"id": "WH-EV-2",
		"event_type": "PAYMENT.CAPTURE.REFUNDED",
		"resource": {
			"id": "REF-1",
			"invoice_id": "pay-42",
			"amount": {"currency_code": "USD", "value": "49.99"},
			"links": [
				{"href": "https://api.paypal.test/v2/payments/captures/CAP-9", "rel": "self"},
				{"href": "https://api.paypal.test/v2/checkout/orders/ORDER-777", "rel": "up"}
			]
		}
	}`)

	ev, err := g.ParseWebhook(context.Background(), webhookRequest(t, body), body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Kind != model.EventRefunded {
		t.Errorf("kind = %s, want %s", ev.Kind, model.EventRefunded)
	}
	if ev.ExternalID != "ORDER-777" {
		t.Errorf("external id = %q, want ORDER-777", ev.ExternalID)
	}
	if ev.PaymentID != "pay-42" {
		t.Errorf("payment id = %q, want pay-42 (from invoice_id)", ev.PaymentID)
	}
}

func TestPayPalParseWebhook_OrderApproved(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	g, _ := newTestPayPal(t, fake)

	body := []byte(`{
		"id": "WH-EV-3",
		"event_type": "CHECKOUT.ORDER.APPROVED",
		"resource": {
			"id": "ORDER-123",
			"purchase_units": [{"custom_id": "pay-42", "amount": {"currency_code": "USD", "value": "49.99"}}]
		}
	}`)

	ev, err := g.ParseWebhook(context.Background(), webhookRequest(t, body), body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev.Kind != model.EventApproved {
		t.Errorf("kind = %s, want %s", ev.Kind, model.EventApproved)
	}
	if ev.ExternalID != "ORDER-123" {
		t.Errorf("external id = %q, want ORDER-123", ev.ExternalID)
	}
	if ev.PaymentID != "pay-42" {
		t.Errorf("payment id = %q, want pay-42", ev.PaymentID)
	}
	if !ev.Amount.Equal(decimalFromString(t, "49.99")) {
		t.Errorf("amount = %s, want 49.99 (from purchase unit)", ev.Amount)
	}
}

func TestPayPalParseWebhook_VerificationFailure(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "FAILURE"}
	g, _ := newTestPayPal(t, fake)

	body := []byte(`{"id": "WH-EV-4", "event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {}}`)
	_, err := g.ParseWebhook(context.Background(), webhookRequest(t, body), body)
	if !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestPayPalParseWebhook_VerificationEndpointDown(t *testing.T) {
	fake := &fakePayPal{verifyDown: true}
	g, _ := newTestPayPal(t, fake)

	body := []byte(`{"id": "WH-EV-5", "event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {}}`)
	_, err := g.ParseWebhook(context.Background(), webhookRequest(t, body), body)
	if !errors.Is(err, domain.ErrProviderCallFailure) {
		t.Fatalf("expected ErrProviderCallFailure, got %v", err)
	}
}

func TestPayPalParseWebhook_IgnoredEventType(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	g, _ := newTestPayPal(t, fake)

	body := []byte(`{"id": "WH-EV-6", "event_type": "BILLING.PLAN.CREATED", "resource": {}}`)
	ev, err := g.ParseWebhook(context.Background(), webhookRequest(t, body), body)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected nil event for ignored type, got %+v", ev)
	}
}
