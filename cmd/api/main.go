// Package main is the entry point for the reride subscription API server.
//
// It loads the configuration, connects the Postgres pool, wires the plan
// catalog, entitlement, and subscription handlers into the core chassis
// (middleware, routing, health checks), and starts listening for requests.
// Stripe checkout is wired only when a secret key is configured; without it
// the service still serves entitlements and admin plan assignment.
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

	"github.com/jackc/pgx/v5/pgxpool"

	"reride/internal/api/handlers"
	"reride/internal/billing"
	"reride/internal/config"
	"reride/internal/core"
	"reride/internal/db"
	"reride/internal/external"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("reride subscription API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}

	sellerRepo := db.NewSellerRepo(pool, logger)
	listingRepo := db.NewListingRepo(pool)
	catalogStore := db.NewCatalogStore(pool, logger)
	recon := billing.NewReconciler(logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(func() error {
		pool.Close()
		return nil
	})
	srv.HealthProbes = append(srv.HealthProbes, &dbProbe{pool: pool})

	// Stripe is optional. Without a secret key the checkout endpoint reports
	// itself unconfigured and webhooks are not mounted.
	var checkout handlers.CheckoutService
	if cfg.Billing.StripeSecretKey.IsSet() {
		stripeClient := external.NewStripeClient(nil, sellerRepo, external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger,
		})
		checkout = stripeClient

		webhookHandler := handlers.NewStripeWebhookHandler(
			&external.StripeVerifier{},
			sellerRepo,
			catalogStore,
			recon,
			cfg.Billing.StripeWebhookSecret.Unmask(),
			cfg.Billing.SubscriptionCycleDays,
			logger,
		)
		srv.WebhookRegistrars = append(srv.WebhookRegistrars, webhookHandler.RegisterRoutes)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; checkout and webhooks disabled")
	}

	planHandler := handlers.NewPlanHandler(catalogStore, recon, logger)
	entitlementHandler := handlers.NewEntitlementHandler(sellerRepo, listingRepo, catalogStore, recon, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(
		sellerRepo, catalogStore, recon, checkout,
		cfg.Billing, srv.Validator, logger,
	)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		planHandler.RegisterRoutes,
		entitlementHandler.RegisterRoutes,
		subscriptionHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
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

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}

// dbProbe reports database health by pinging the pool.
type dbProbe struct {
	pool *pgxpool.Pool
}

func (p *dbProbe) Name() string { return "database" }

func (p *dbProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
