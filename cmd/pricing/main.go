package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cateringhub/pricing/internal/handlers"
	"github.com/cateringhub/pricing/internal/platform/config"
	"github.com/cateringhub/pricing/internal/platform/observability"
)

const shutdownGrace = 10 * time.Second

func main() {
	logger, err := observability.NewLogger(observability.LogSettingsFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger.Named("pricing")); err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("pricing api stopped", zap.Error(err))
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, logger *zap.Logger) error {
	startedAt := time.Now().UTC()
	ctx = observability.WithLogger(ctx, logger)

	environment, secretsCfg, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("read secret settings: %w", err)
	}
	fetcher, err := newSecretFetcher(ctx, logger, environment, secretsCfg)
	if err != nil {
		return fmt.Errorf("secret fetcher: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		return err
	}

	app, err := wire(cfg, logger, fetcher, startedAt)
	if err != nil {
		return err
	}

	projectID := cfg.Secrets.ProjectID
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.CallerMiddleware(),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(app.health),
		handlers.WithPricingRoutes(app.pricing.Routes),
		handlers.WithPricingMiddlewares(handlers.RateLimitMiddleware(cfg.Pricing.RateLimit, cfg.Pricing.RateLimitWindow, time.Now)),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("pricing api listening",
			zap.String("addr", server.Addr),
			zap.String("currency", cfg.Pricing.Currency),
			zap.Bool("remoteDelivery", app.remoteDelivery),
			zap.Bool("tax", app.tax),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received; draining requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
