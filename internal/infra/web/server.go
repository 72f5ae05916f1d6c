package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
	"travel-booking-payments/internal/domain/ports/repository"
	"travel-booking-payments/internal/usecase"
)

// RedirectURLs are the configured post-checkout landing pages. A
// `{PAYMENT_ID}` placeholder is substituted once the payment id is minted.
type RedirectURLs struct {
	Success string
	Cancel  string
}

// Server carries the public surface: webhook ingress and checkout on one
// router, the operator reconciliation API on another so the two can bind to
// separate ports.
type Server struct {
	checkoutUC   usecase.CheckoutUseCase
	settlementUC usecase.SettlementUseCase
	packages     repository.PackageRepository
	gateways     map[model.Provider]adapter.CheckoutGateway
	redirects    RedirectURLs
	auth         *AuthManager
	log          *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	settlementUC usecase.SettlementUseCase,
	packages repository.PackageRepository,
	gateways map[model.Provider]adapter.CheckoutGateway,
	redirects RedirectURLs,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		checkoutUC:   checkoutUC,
		settlementUC: settlementUC,
		packages:     packages,
		gateways:     gateways,
		redirects:    redirects,
		auth:         auth,
		log:          logger,
	}
}

// Router builds the public router. Webhook routes skip the timeout guard:
// settlement work must not be cut short mid-transaction by an impatient
// provider client, and both providers tolerate slow 200s.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)

	r.Post("/webhooks/stripe", s.webhookHandler(model.ProviderStripe))
	r.Post("/webhooks/paypal", s.webhookHandler(model.ProviderPayPal))

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return Timeout(15 * time.Second)(next) })
		r.Post("/api/v1/checkout/sessions", s.createSessionHandler())
		r.Get("/api/v1/packages", s.listPackagesHandler())
	})

	return Chain(r, Recover(s.log), TraceID(s.log), RequestLog(s.log))
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// AdminRouter builds the operator reconciliation API. The JWT guard covers
// the reconciliation endpoints; /health and /metrics stay open for the
// scrape and probe infrastructure on the non-public listener.
func (s *Server) AdminRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return s.auth.RequireOperator(next) })
		r.Get("/api/v1/admin/settlements/unmatched", s.listUnmatchedHandler())
		r.Get("/api/v1/admin/payments", s.listPaymentsHandler())
	})

	return Chain(r, Recover(s.log), TraceID(s.log), RequestLog(s.log), Timeout(15*time.Second))
}
