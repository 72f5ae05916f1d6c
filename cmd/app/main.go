// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel-booking-payments/internal/config"
	"travel-booking-payments/internal/domain/model"
	"travel-booking-payments/internal/domain/ports/adapter"
	"travel-booking-payments/internal/infra/alert"
	pg "travel-booking-payments/internal/infra/db/postgres"
	"travel-booking-payments/internal/infra/logging"
	"travel-booking-payments/internal/infra/metrics"
	pay "travel-booking-payments/internal/infra/payment"
	red "travel-booking-payments/internal/infra/redis"
	"travel-booking-payments/internal/infra/sched"
	"travel-booking-payments/internal/infra/web"
	"travel-booking-payments/internal/infra/worker"
	"travel-booking-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool := pg.MustConnectPostgres(cfg.Database.URL)
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	// ---- Worker pool for async audit writes ----
	wp := worker.NewPool(8)
	wp.Start(ctx)
	defer wp.Stop()

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	packageRepo := pg.NewPackageRepoCacheDecorator(pg.NewPackageRepo(pool), redisClient)
	balanceRepo := pg.NewBalanceRepo(pool)
	activityRepo := worker.NewAsyncActivitySink(pg.NewActivityRepo(pool), wp, logger)
	settlementLogRepo := pg.NewSettlementLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Provider gateways ----
	gateways := map[model.Provider]adapter.CheckoutGateway{
		model.ProviderStripe: pay.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret),
		model.ProviderPayPal: pay.NewPayPalGateway(cfg.Payment.PayPal.ClientID, cfg.Payment.PayPal.ClientSecret, cfg.Payment.PayPal.WebhookID, cfg.Payment.PayPal.Sandbox),
	}

	// ---- Ops alerts ----
	var alerts adapter.AlertNotifier
	if cfg.Alert.TelegramToken != "" && cfg.Alert.ChatID != 0 {
		alerts, err = alert.NewTelegramNotifier(cfg.Alert.TelegramToken, cfg.Alert.ChatID, logger)
		if err != nil {
			log.Fatalf("telegram alerts: %v", err)
		}
	} else {
		logger.Warn().Msg("no telegram alert channel configured; anomalies go to the log only")
		alerts = alert.NewLogNotifier(logger)
	}

	// ---- Use cases ----
	checkoutUC := usecase.NewCheckoutUseCase(paymentRepo, purchaseRepo, packageRepo, gateways, tm, cfg.Payment.ProviderTimeout, logger)
	settlementUC := usecase.NewSettlementUseCase(
		paymentRepo, purchaseRepo, packageRepo, balanceRepo, activityRepo, settlementLogRepo,
		gateways, alerts, tm, cfg.Payment.ProviderTimeout, logger,
	)

	// ---- Capture reconciler ----
	reconciler := sched.NewCaptureReconciler(cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, paymentRepo, settlementUC, logger)
	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("capture reconciler stopped")
		}
	}()

	// ---- HTTP servers ----
	redirects := web.RedirectURLs{Success: cfg.Payment.SuccessURL, Cancel: cfg.Payment.CancelURL}
	srv := web.NewServer(checkoutUC, settlementUC, packageRepo, gateways, redirects, web.NewAuthManager(cfg.Admin.JWTSecret), logger)

	public := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	admin := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: srv.AdminRouter()}

	go func() {
		logger.Info().Str("addr", public.Addr).Msg("public listener up")
		if err := public.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("public server error")
		}
	}()
	go func() {
		logger.Info().Str("addr", admin.Addr).Msg("admin listener up")
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("admin server error")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := public.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("public server shutdown")
	}
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server shutdown")
	}
}
