package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
)

func TestSettlementMetaValidate(t *testing.T) {
	travel := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		meta SettlementMeta
		ok   bool
	}{
		{"credit pack", SettlementMeta{Type: PackageTypeCredit, Credits: 100}, true},
		{"credit without count", SettlementMeta{Type: PackageTypeCredit}, false},
		{"wallet topup", SettlementMeta{Type: PackageTypeWallet, Amount: decimal.NewFromInt(25)}, true},
		{"wallet zero amount", SettlementMeta{Type: PackageTypeWallet}, false},
		{"custom topup", SettlementMeta{Type: PackageTypeCustomTopup, Amount: decimal.RequireFromString("49.99")}, true},
		{"tour booking", SettlementMeta{Type: PackageTypeTour, Adults: 2, Children: 1, TravelDate: &travel}, true},
		{"tour without adults", SettlementMeta{Type: PackageTypeTour, Children: 2}, false},
		{"tour negative children", SettlementMeta{Type: PackageTypeTour, Adults: 1, Children: -1}, false},
		{"unknown tag", SettlementMeta{Type: PackageType("voucher")}, false},
		{"empty tag", SettlementMeta{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.meta.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("Validate() = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSettlementMetaRoundTrip(t *testing.T) {
	travel := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		meta SettlementMeta
	}{
		{"credit", SettlementMeta{Type: PackageTypeCredit, Credits: 250}},
		{"wallet", SettlementMeta{Type: PackageTypeWallet, Amount: decimal.RequireFromString("15.5")}},
		{"custom topup", SettlementMeta{Type: PackageTypeCustomTopup, Amount: decimal.RequireFromString("49.99")}},
		{"tour", SettlementMeta{Type: PackageTypeTour, Adults: 2, Children: 1, Infants: 1, TravelDate: &travel}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kv := tc.meta.Encode("user-1", "pkg-1", "pay-1")
			if kv["payment_id"] != "pay-1" {
				t.Fatalf("correlation token missing from encoded metadata: %v", kv)
			}
			got, err := DecodeSettlementMeta(kv)
			if err != nil {
				t.Fatalf("DecodeSettlementMeta: %v", err)
			}
			if got.Type != tc.meta.Type || got.Credits != tc.meta.Credits ||
				!got.Amount.Equal(tc.meta.Amount) ||
				got.Adults != tc.meta.Adults || got.Children != tc.meta.Children || got.Infants != tc.meta.Infants {
				t.Errorf("round trip = %+v, want %+v", got, tc.meta)
			}
			if tc.meta.TravelDate != nil && (got.TravelDate == nil || !got.TravelDate.Equal(*tc.meta.TravelDate)) {
				t.Errorf("travel date = %v, want %v", got.TravelDate, tc.meta.TravelDate)
			}
		})
	}
}

func TestDecodeSettlementMetaRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		kv   map[string]string
	}{
		{"credit tag without credits", map[string]string{"package_type": "credit"}},
		{"credit tag with junk", map[string]string{"package_type": "credit", "credits": "lots"}},
		{"wallet tag without amount", map[string]string{"package_type": "wallet"}},
		{"tour tag without adults", map[string]string{"package_type": "tour"}},
		{"no tag at all", map[string]string{"payment_id": "pay-1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeSettlementMeta(tc.kv); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	if PaymentStatusPending.Terminal() {
		t.Error("pending must admit further transitions")
	}
	for _, s := range []PaymentStatus{PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestPackageTypeStatuses(t *testing.T) {
	if got := PackageTypeTour.SuccessStatus(); got != PurchaseStatusConfirmed {
		t.Errorf("tour success status = %s, want confirmed", got)
	}
	if got := PackageTypeCredit.SuccessStatus(); got != PurchaseStatusCompleted {
		t.Errorf("credit success status = %s, want completed", got)
	}
	if got := PackageTypeTour.FailureStatus(); got != PurchaseStatusCancelled {
		t.Errorf("tour failure status = %s, want cancelled", got)
	}
	if got := PackageTypeWallet.FailureStatus(); got != PurchaseStatusFailed {
		t.Errorf("wallet failure status = %s, want failed", got)
	}
}
