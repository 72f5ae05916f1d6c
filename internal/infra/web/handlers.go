package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"travel-booking-payments/internal/domain"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/infra/logging"
	"travel-booking-payments/internal/infra/metrics"
	"travel-booking-payments/internal/usecase"
)

// Providers re-sign and redeliver on non-2xx, so the status code is the
// backpressure contract: 400 only for proven-inauthentic or malformed input,
// 200 for anything redelivery cannot fix, 5xx when a retry might succeed.
const maxWebhookBody = 1 << 20

func (s *Server) webhookHandler(provider model.Provider) http.HandlerFunc {
	gw := s.gateways[provider]
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithProvider(r.Context(), string(provider))
		log := logging.With(ctx, s.log)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			metrics.IncWebhook(string(provider), "rejected", "oversized")
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}

		ev, err := gw.ParseWebhook(ctx, r, body)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrSignatureInvalid):
				log.Warn().Err(err).Msg("webhook signature rejected")
				metrics.IncWebhook(string(provider), "rejected", "signature")
				http.Error(w, "invalid signature", http.StatusBadRequest)
			case errors.Is(err, domain.ErrProviderCallFailure):
				log.Error().Err(err).Msg("webhook verification unavailable")
				metrics.IncWebhook(string(provider), "retryable", "verify_unavailable")
				http.Error(w, "verification unavailable", http.StatusBadGateway)
			default:
				log.Warn().Err(err).Msg("webhook payload malformed")
				metrics.IncWebhook(string(provider), "rejected", "malformed")
				http.Error(w, "malformed payload", http.StatusBadRequest)
			}
			return
		}
		if ev == nil {
			// authentic but not a settlement signal
			metrics.IncWebhook(string(provider), "acked", "ignored_type")
			w.WriteHeader(http.StatusOK)
			return
		}

		ctx = logging.WithEventID(ctx, ev.ProviderEventID)
		err = s.settlementUC.HandleEvent(ctx, ev)
		result, reason := webhookOutcome(err)
		metrics.IncWebhook(string(provider), result, reason)
		metrics.ObserveWebhookDuration(string(provider), result, time.Since(start).Seconds())

		switch result {
		case "acked":
			w.WriteHeader(http.StatusOK)
		case "retryable":
			logging.With(ctx, s.log).Error().Err(err).Msg("settlement deferred to redelivery")
			http.Error(w, "settlement failed", http.StatusBadGateway)
		default:
			logging.With(ctx, s.log).Error().Err(err).Msg("settlement failed")
			http.Error(w, "settlement failed", http.StatusInternalServerError)
		}
	}
}

// webhookOutcome folds a settlement error into the ack/redeliver decision.
func webhookOutcome(err error) (result, reason string) {
	switch {
	case err == nil:
		return "acked", "processed"
	case errors.Is(err, domain.ErrCorrelationNotFound):
		// persisted for manual reconciliation; redelivery cannot resolve it
		return "acked", "unmatched"
	case errors.Is(err, domain.ErrAmbiguousCorrelation):
		return "acked", "ambiguous"
	case errors.Is(err, domain.ErrCompensationInconsistency):
		// alerted; a redelivered copy would hit the same wall
		return "acked", "inconsistent"
	case errors.Is(err, domain.ErrProviderCallFailure):
		return "retryable", "provider_call"
	default:
		return "failed", "storage"
	}
}

type createSessionRequest struct {
	UserID      string `json:"user_id"`
	PackageID   string `json:"package_id"`
	PackageType string `json:"package_type"`
	Provider    string `json:"provider"`
	Amount      string `json:"amount,omitempty"`      // custom wallet top-up
	TourTotal   string `json:"tour_total,omitempty"`  // tour bookings
	Adults      int    `json:"adults,omitempty"`
	Children    int    `json:"children,omitempty"`
	Infants     int    `json:"infants,omitempty"`
	TravelDate  string `json:"travel_date,omitempty"` // RFC 3339
}

type createSessionResponse struct {
	PaymentID   string `json:"payment_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

func (s *Server) createSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		in := usecase.CreateSessionInput{
			UserID:      req.UserID,
			PackageID:   req.PackageID,
			PackageType: model.PackageType(req.PackageType),
			Provider:    model.Provider(req.Provider),
			SuccessURL:  s.redirects.Success,
			CancelURL:   s.redirects.Cancel,
			Adults:      req.Adults,
			Children:    req.Children,
			Infants:     req.Infants,
		}
		if req.Amount != "" {
			amt, err := decimal.NewFromString(req.Amount)
			if err != nil {
				http.Error(w, "invalid amount", http.StatusBadRequest)
				return
			}
			in.Amount = &amt
		}
		if req.TourTotal != "" {
			tt, err := decimal.NewFromString(req.TourTotal)
			if err != nil {
				http.Error(w, "invalid tour_total", http.StatusBadRequest)
				return
			}
			in.TourTotal = &tt
		}
		if req.TravelDate != "" {
			td, err := time.Parse(time.RFC3339, req.TravelDate)
			if err != nil {
				http.Error(w, "invalid travel_date", http.StatusBadRequest)
				return
			}
			in.TravelDate = &td
		}

		p, sess, err := s.checkoutUC.CreateSession(r.Context(), in)
		if err != nil {
			writeCheckoutError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(createSessionResponse{
			PaymentID:   p.ID,
			SessionID:   sess.ID,
			RedirectURL: sess.RedirectURL,
			Amount:      p.Amount.String(),
			Currency:    p.Currency,
			Status:      string(p.Status),
		})
	}
}

func writeCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "package not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrPackageUnavailable):
		http.Error(w, "package unavailable", http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrProviderCallFailure):
		http.Error(w, "payment provider unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "failed to create session", http.StatusInternalServerError)
	}
}

func (s *Server) listPackagesHandler() http.HandlerFunc {
	type packageView struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Price    string `json:"price"`
		Credits  int64  `json:"credits,omitempty"`
		Cashback string `json:"cashback_percent,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		pkgs, err := s.packages.ListActive(r.Context(), repository.NoTX)
		if err != nil {
			http.Error(w, "failed to list packages", http.StatusInternalServerError)
			return
		}
		out := make([]packageView, 0, len(pkgs))
		for _, pkg := range pkgs {
			v := packageView{
				ID:      pkg.ID,
				Name:    pkg.Name,
				Type:    string(pkg.Type),
				Price:   pkg.Price.String(),
				Credits: pkg.Credits,
			}
			if pkg.Cashback.IsPositive() {
				v.Cashback = pkg.Cashback.String()
			}
			out = append(out, v)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func (s *Server) listUnmatchedHandler() http.HandlerFunc {
	type unmatchedView struct {
		ID              string          `json:"id"`
		Provider        string          `json:"provider"`
		ProviderEventID string          `json:"provider_event_id"`
		Kind            string          `json:"kind"`
		Reason          string          `json:"reason"`
		Raw             json.RawMessage `json:"raw"`
		ReceivedAt      time.Time       `json:"received_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryLimit(r, 50)
		items, err := s.settlementUC.RecentUnmatched(r.Context(), limit)
		if err != nil {
			http.Error(w, "failed to list unmatched settlements", http.StatusInternalServerError)
			return
		}
		out := make([]unmatchedView, 0, len(items))
		for _, u := range items {
			out = append(out, unmatchedView{
				ID:              u.ID,
				Provider:        string(u.Provider),
				ProviderEventID: u.ProviderEventID,
				Kind:            string(u.Kind),
				Reason:          u.Reason,
				Raw:             json.RawMessage(u.Raw),
				ReceivedAt:      u.ReceivedAt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func (s *Server) listPaymentsHandler() http.HandlerFunc {
	type paymentView struct {
		ID         string     `json:"id"`
		UserID     string     `json:"user_id"`
		PackageID  string     `json:"package_id"`
		Provider   string     `json:"provider"`
		Amount     string     `json:"amount"`
		Currency   string     `json:"currency"`
		ExternalID string     `json:"external_id,omitempty"`
		Status     string     `json:"status"`
		CreatedAt  time.Time  `json:"created_at"`
		ApprovedAt *time.Time `json:"approved_at,omitempty"`
		PaidAt     *time.Time `json:"paid_at,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryLimit(r, 50)
		payments, err := s.settlementUC.RecentPayments(r.Context(), limit)
		if err != nil {
			http.Error(w, "failed to list payments", http.StatusInternalServerError)
			return
		}
		out := make([]paymentView, 0, len(payments))
		for _, p := range payments {
			out = append(out, paymentView{
				ID:         p.ID,
				UserID:     p.UserID,
				PackageID:  p.PackageID,
				Provider:   string(p.Provider),
				Amount:     p.Amount.String(),
				Currency:   p.Currency,
				ExternalID: p.ExternalID,
				Status:     string(p.Status),
				CreatedAt:  p.CreatedAt,
				ApprovedAt: p.ApprovedAt,
				PaidAt:     p.PaidAt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return def
}
