package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/cateringhub/pricing/internal/clients/delivery"
	"github.com/cateringhub/pricing/internal/handlers"
	"github.com/cateringhub/pricing/internal/payments"
	"github.com/cateringhub/pricing/internal/platform/config"
	"github.com/cateringhub/pricing/internal/platform/observability"
	"github.com/cateringhub/pricing/internal/platform/secrets"
	"github.com/cateringhub/pricing/internal/services"
)

type application struct {
	pricing        *handlers.PricingHandlers
	health         *handlers.HealthHandlers
	remoteDelivery bool
	tax            bool
}

// wire builds the services and handlers. Remote delivery and Stripe tax are optional: each is
// enabled only when configured and its feature flag is on.
func wire(cfg config.Config, logger *zap.Logger, fetcher *secrets.Fetcher, startedAt time.Time) (*application, error) {
	deliveryClient := delivery.NewClient(cfg.Delivery.APIURL,
		delivery.WithAPIKey(cfg.Delivery.APIKey),
		delivery.WithTimeout(cfg.Delivery.Timeout),
	)
	var remote services.RemoteDeliveryQuoter
	if deliveryClient.Enabled() && cfg.Features.RemoteDelivery {
		remote = deliveryClient
	} else {
		logger.Info("remote delivery api disabled; delivery fees computed locally")
		deliveryClient = nil
	}
	resolver := services.NewDeliveryResolver(services.DeliveryResolverDeps{
		Remote: remote,
		Logger: observability.EventLogger(logger.Named("delivery"), "delivery log"),
	})

	var tax services.TaxCalculator
	if cfg.PSP.StripeAPIKey != "" && cfg.Features.TaxCalculation {
		stripeTax, err := payments.NewStripeTaxCalculator(payments.StripeTaxConfig{
			APIKey:    cfg.PSP.StripeAPIKey,
			AccountID: cfg.PSP.StripeAccountID,
			Logger:    observability.EventLogger(logger.Named("payments"), "stripe log"),
		})
		if err != nil {
			return nil, fmt.Errorf("stripe tax calculator: %w", err)
		}
		tax = stripeTax
	} else {
		logger.Info("tax calculation disabled; quotes carry no tax")
	}

	quotes, err := services.NewQuoteService(services.QuoteServiceDeps{
		Delivery:        resolver,
		Tax:             tax,
		DefaultCurrency: cfg.Pricing.Currency,
		Clock:           time.Now,
		Logger:          observability.EventLogger(logger.Named("quote"), "quote log"),
	})
	if err != nil {
		return nil, fmt.Errorf("quote service: %w", err)
	}

	build := buildInfo(cfg, startedAt)
	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(build)}
	system, err := newSystemService(deliveryClient, fetcher, build)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	} else {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(system))
	}

	return &application{
		pricing: handlers.NewPricingHandlers(resolver, quotes,
			handlers.WithPricingBodyLimit(int64(cfg.Pricing.MaxBodyBytes)),
		),
		health:         handlers.NewHealthHandlers(healthOpts...),
		remoteDelivery: remote != nil,
		tax:            tax != nil,
	}, nil
}

func buildInfo(cfg config.Config, started time.Time) services.BuildInfo {
	info := services.BuildInfo{
		Version:     cfg.Build.Version,
		CommitSHA:   cfg.Build.CommitSHA,
		Environment: cfg.Environment,
		StartedAt:   started,
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.CommitSHA == "" {
		info.CommitSHA = "unknown"
	}
	if info.Environment == "" {
		info.Environment = "local"
	}
	return info
}

// newSystemService registers readiness probes. The delivery API is optional: when it is down
// quotes still price delivery locally.
func newSystemService(client *delivery.Client, fetcher *secrets.Fetcher, build services.BuildInfo) (services.SystemService, error) {
	var checks []services.DependencyCheck
	if client != nil {
		checks = append(checks, services.DependencyCheck{
			Name:     "delivery_api",
			Timeout:  1500 * time.Millisecond,
			Optional: true,
			Check:    client.Ping,
		})
	}
	if fetcher != nil {
		checks = append(checks, services.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check:   fetcher.Ping,
		})
	}
	return services.NewSystemService(services.SystemServiceDeps{
		Checks: checks,
		Clock:  time.Now,
		Build:  build,
	})
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, environment string, cfg config.SecretsConfig) (*secrets.Fetcher, error) {
	opts := []secrets.Option{
		secrets.WithEnvironment(environment),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(cfg.FallbackFile),
		secrets.WithDefaultProject(cfg.ProjectID),
		secrets.WithProjectMap(cfg.ProjectMap),
		secrets.WithVersionPins(cfg.VersionPins),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(cfg.CredentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secret-backed settings the operator configured. A configured
// reference that fails to resolve is fatal; an absent one disables the integration.
func requiredSecretNames(env map[string]string) []string {
	var required []string
	if strings.TrimSpace(env["PRICING_DELIVERY_API_URL"]) != "" && strings.TrimSpace(env["PRICING_DELIVERY_API_KEY"]) != "" {
		required = append(required, "Delivery.APIKey")
	}
	if strings.TrimSpace(env["PRICING_PSP_STRIPE_API_KEY"]) != "" {
		required = append(required, "PSP.StripeAPIKey")
	}
	sort.Strings(required)
	return required
}
