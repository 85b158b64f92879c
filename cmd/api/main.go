// Package main is the entry point for the ValoQuick billing API server.
//
// It loads configuration, connects the PostgreSQL pool and the SQS
// notification queue, wires the billing engine, trial eligibility engine,
// and HTTP handlers onto the core chassis, and serves until interrupted.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/KabirBatra18/valoquick-sub001/internal/api/handlers"
	"github.com/KabirBatra18/valoquick-sub001/internal/auth"
	"github.com/KabirBatra18/valoquick-sub001/internal/billing"
	"github.com/KabirBatra18/valoquick-sub001/internal/config"
	"github.com/KabirBatra18/valoquick-sub001/internal/core"
	"github.com/KabirBatra18/valoquick-sub001/internal/db"
	"github.com/KabirBatra18/valoquick-sub001/internal/external"
	"github.com/KabirBatra18/valoquick-sub001/internal/idempotency"
	"github.com/KabirBatra18/valoquick-sub001/internal/queue"
	"github.com/KabirBatra18/valoquick-sub001/internal/trial"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("valoquick API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database pool.
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// SQS notification queue.
	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = &cfg.AWS.EndpointURL
		}
	})
	notifier := queue.NewNotifier(sqsClient, cfg.AWS.NotificationQueue, logger)

	// Repositories.
	firmRepo := db.NewFirmRepo(pool, logger)
	subRepo := db.NewSubscriptionRepo(pool, logger)
	referralRepo := db.NewReferralRepo(pool, logger)
	deviceRepo := db.NewDeviceTrialRepo(pool, logger)
	ipRepo := db.NewIPTrialRepo(pool, logger)

	// Payment provider gateway and verifiers.
	providerHTTP := &http.Client{Timeout: cfg.Billing.ProviderTimeout}
	gateway := external.NewRazorpayClient(providerHTTP, external.RazorpayClientConfig{
		KeyID:     cfg.Billing.ProviderKeyID,
		KeySecret: cfg.Billing.ProviderKeySecret,
		Logger:    logger,
	})
	paymentVerifier := external.NewRazorpayVerifier(cfg.Billing.ProviderKeySecret)
	webhookVerifier := external.NewWebhookVerifier(cfg.Billing.WebhookSecret)

	// Idempotency guard and abuse-alert cooldown share the TTL cache
	// implementation but not the cache itself.
	clock := types.RealClock{}
	guard := idempotency.NewGuard(idempotency.NewMemoryCache(idempotency.DefaultTTL), idempotency.DefaultTTL)
	cooldown := idempotency.NewMemoryCache(cfg.Trial.AbuseAlertCooldown)

	// Domain services.
	billingSvc := billing.NewService(
		subRepo, firmRepo, referralRepo,
		gateway, paymentVerifier, guard, notifier,
		clock,
		billing.Config{
			AppTag:      cfg.Billing.AppTag,
			KeyID:       cfg.Billing.ProviderKeyID,
			SeatCeiling: cfg.Billing.SeatCeiling,
		},
		logger,
	)
	onboarding := billing.NewOnboarding(firmRepo, referralRepo, clock, logger)
	trialEngine := trial.NewEngine(
		deviceRepo, ipRepo, notifier,
		cooldown, cfg.Trial.AbuseAlertCooldown,
		clock, logger,
	)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Authenticator = auth.NewTokenAuthenticator(cfg.Auth.TokenSecret, clock)

	billingHandler := handlers.NewBillingHandler(billingSvc, srv.Validator, logger)
	firmsHandler := handlers.NewFirmsHandler(onboarding, srv.Validator, logger)
	trialHandler := handlers.NewTrialHandler(trialEngine, srv.Validator, logger)
	reportsHandler := handlers.NewReportsHandler(
		billingSvc, trialEngine, firmRepo,
		cfg.Trial.FreeReports, srv.Validator, logger,
	)
	webhookHandler := handlers.NewWebhookHandler(
		billingSvc, webhookVerifier, guard, cfg.Billing.AppTag, logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		billingHandler.RegisterRoutes,
		firmsHandler.RegisterRoutes,
		trialHandler.RegisterRoutes,
		reportsHandler.RegisterRoutes,
	)
	srv.PublicRouteRegistrars = append(srv.PublicRouteRegistrars,
		webhookHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	return serve(ctx, srv, guard, cfg, logger)
}

// serve runs the HTTP server and the idempotency sweep loop until the
// context is cancelled, then shuts both down gracefully.
func serve(ctx context.Context, srv *core.Server, guard *idempotency.Guard, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				guard.Sweep()
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newLogger builds the process-wide structured logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
