package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
)

type PackageType string

const (
	PackageTypeCredit       PackageType = "credit"
	PackageTypeWallet       PackageType = "wallet"
	PackageTypeCustomTopup  PackageType = "custom-wallet-topup"
	PackageTypeTour         PackageType = "tour"
)

type EventKind string

const (
	EventCompleted EventKind = "completed"
	EventDenied    EventKind = "denied"
	EventRefunded  EventKind = "refunded"
	EventApproved  EventKind = "approved" // two-phase flows only; triggers capture
	EventVoided    EventKind = "voided"
)

// SettlementEvent is the canonical, provider-agnostic form of a webhook
// notification. Ingress produces exactly one per authentic delivery.
type SettlementEvent struct {
	ProviderEventID string
	Provider        Provider
	Kind            EventKind
	ExternalID      string // session/order id as reported by the provider
	PaymentID       string // correlation token echoed back, when present
	Amount          decimal.Decimal
	Currency        string
	Meta            SettlementMeta
	Raw             []byte // unparsed provider payload, retained for audit
	ReceivedAt      time.Time
}

// SettlementMeta is the tagged union embedded in provider metadata at
// checkout time. Exactly the fields for its Type are meaningful; Validate
// rejects a tag whose required fields are absent.
type SettlementMeta struct {
	Type       PackageType
	Credits    int64           // credit
	Amount     decimal.Decimal // wallet, custom-wallet-topup
	Adults     int             // tour
	Children   int
	Infants    int
	TravelDate *time.Time
}

func (m SettlementMeta) Validate() error {
	switch m.Type {
	case PackageTypeCredit:
		if m.Credits <= 0 {
			return domain.ErrInvalidArgument
		}
	case PackageTypeWallet, PackageTypeCustomTopup:
		if !m.Amount.IsPositive() {
			return domain.ErrInvalidArgument
		}
	case PackageTypeTour:
		if m.Adults <= 0 || m.Children < 0 || m.Infants < 0 {
			return domain.ErrInvalidArgument
		}
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// Encode flattens the union into the string map both providers accept as
// session/order metadata and echo back verbatim on settlement events.
func (m SettlementMeta) Encode(userID, packageID, paymentID string) map[string]string {
	out := map[string]string{
		"payment_id":   paymentID,
		"user_id":      userID,
		"package_id":   packageID,
		"package_type": string(m.Type),
	}
	switch m.Type {
	case PackageTypeCredit:
		out["credits"] = strconv.FormatInt(m.Credits, 10)
	case PackageTypeWallet, PackageTypeCustomTopup:
		out["amount"] = m.Amount.String()
	case PackageTypeTour:
		out["adults"] = strconv.Itoa(m.Adults)
		out["children"] = strconv.Itoa(m.Children)
		out["infants"] = strconv.Itoa(m.Infants)
		if m.TravelDate != nil {
			out["travel_date"] = m.TravelDate.Format(time.RFC3339)
		}
	}
	return out
}

// DecodeSettlementMeta rebuilds the union from echoed provider metadata.
// It fails when the indicated tag is missing its fields, so malformed
// payloads are rejected at the boundary rather than deep in settlement.
func DecodeSettlementMeta(kv map[string]string) (SettlementMeta, error) {
	m := SettlementMeta{Type: PackageType(kv["package_type"])}
	var err error
	switch m.Type {
	case PackageTypeCredit:
		m.Credits, err = strconv.ParseInt(kv["credits"], 10, 64)
	case PackageTypeWallet, PackageTypeCustomTopup:
		m.Amount, err = decimal.NewFromString(kv["amount"])
	case PackageTypeTour:
		if m.Adults, err = strconv.Atoi(kv["adults"]); err != nil {
			break
		}
		if v := kv["children"]; v != "" {
			if m.Children, err = strconv.Atoi(v); err != nil {
				break
			}
		}
		if v := kv["infants"]; v != "" {
			if m.Infants, err = strconv.Atoi(v); err != nil {
				break
			}
		}
		if v := kv["travel_date"]; v != "" {
			var t time.Time
			if t, err = time.Parse(time.RFC3339, v); err == nil {
				m.TravelDate = &t
			}
		}
	default:
		return SettlementMeta{}, domain.ErrInvalidArgument
	}
	if err != nil {
		return SettlementMeta{}, domain.ErrInvalidArgument
	}
	if err := m.Validate(); err != nil {
		return SettlementMeta{}, err
	}
	return m, nil
}
