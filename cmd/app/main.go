// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-subscription-billing/internal/config"
	"quiz-subscription-billing/internal/domain/ports/adapter"
	pg "quiz-subscription-billing/internal/infra/db/postgres"
	"quiz-subscription-billing/internal/infra/logging"
	"quiz-subscription-billing/internal/infra/metrics"
	pay "quiz-subscription-billing/internal/infra/payment"
	red "quiz-subscription-billing/internal/infra/redis"
	"quiz-subscription-billing/internal/infra/sched"
	"quiz-subscription-billing/internal/infra/web"
	"quiz-subscription-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	intentRepo := pg.NewIntentRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient)
	couponRepo := pg.NewCouponRepo(pool)
	usageRepo := pg.NewCouponUsageRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	userRepo := pg.NewUserRepo(pool)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Runtime.Dev {
		gateway = pay.NewNoopPaymentGateway()
		logger.Warn().Msg("payment gateway: noop (dev mode, every charge approves)")
	} else {
		gateway = pay.NewMercadoPagoGateway(cfg.Gateway.AccessToken, cfg.Gateway.BaseURL)
		logger.Info().Str("base_url", cfg.Gateway.BaseURL).Bool("sandbox", cfg.Gateway.Sandbox).Msg("payment gateway: mercado pago")
	}

	// ---- Use cases ----
	pricingUC := usecase.NewPricingUseCase(planRepo, couponRepo, usageRepo, logger)
	checkoutUC := usecase.NewCheckoutUseCase(pricingUC, planRepo, intentRepo, gateway, usecase.CheckoutConfig{
		MinPriceCents: cfg.Billing.MinPriceCents,
		MaxPriceCents: cfg.Billing.MaxPriceCents,
		SuccessURL:    cfg.Gateway.SuccessURL,
		FailureURL:    cfg.Gateway.FailureURL,
		PendingURL:    cfg.Gateway.PendingURL,
	}, logger)
	activationUC := usecase.NewActivationUseCase(subRepo, userRepo, usageRepo, tm, logger)
	chargeUC := usecase.NewChargeUseCase(intentRepo, activationUC, gateway, cfg.Gateway.SubmitTimeout, logger)
	reconcileUC := usecase.NewReconcileUseCase(intentRepo, planRepo, subRepo, activationUC, gateway, logger)
	statsUC := usecase.NewStatsUseCase(intentRepo, subRepo, usageRepo, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Server.AdminSecret, !cfg.Runtime.Dev, "", 30*time.Minute)
	server := web.NewServer(pricingUC, checkoutUC, chargeUC, reconcileUC, statsUC, auth, cfg.Server.AdminPassword, logger)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Stale-intent reconciler ----
	reconciler := sched.NewPaymentReconciler(reconcileUC, intentRepo, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter)
	go reconciler.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := server.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
