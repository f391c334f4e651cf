package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/proctor/internal/alert"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api"
	"github.com/saturnino-fabrica-de-software/proctor/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/proctor/internal/auth"
	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
	"github.com/saturnino-fabrica-de-software/proctor/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadCollector()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting proctor collector",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	rules, err := alert.ParseRules(cfg.AlertRules)
	if err != nil {
		return fmt.Errorf("failed to parse alert rules: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		logger.Info("running migrations", slog.String("database", cfg.DatabaseName))
		if err := database.MigrateUp(ctx, cfg.DatabaseURL, cfg.DatabaseName); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	deps := &api.Dependencies{
		DB:          pool,
		ResultRepo:  repository.NewResultRepository(pool),
		WatchBuffer: cfg.WatchBuffer,
		RateLimit: middleware.RateLimiterConfig{
			Max:    cfg.RateLimit,
			Window: cfg.RateLimitWindow,
		},
		AlertRules: rules,
	}

	if cfg.DashboardJWTSecret != "" {
		deps.JWTService = auth.NewJWTService(cfg.DashboardJWTSecret, cfg.DashboardJWTIssuer, cfg.DashboardTokenTTL)
	} else {
		logger.Warn("dashboard auth disabled, DASHBOARD_JWT_SECRET is empty")
	}

	if cfg.AlertWebhookURL != "" {
		client, err := webhook.NewClient(webhook.Config{URL: cfg.AlertWebhookURL, Secret: cfg.AlertWebhookSecret})
		if err != nil {
			return fmt.Errorf("failed to create webhook client: %w", err)
		}
		deps.Webhook = client
	}

	router := api.NewRouter(logger, deps)
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	done := make(chan error, 1)
	go func() { done <- router.Shutdown() }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out")
	}

	logger.Info("server stopped")
	return nil
}
