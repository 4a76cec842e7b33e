package main

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cateringhub/pricing/internal/platform/config"
)

func TestRequiredSecretNames(t *testing.T) {
	if got := requiredSecretNames(nil); len(got) != 0 {
		t.Fatalf("expected no required secrets, got %v", got)
	}

	got := requiredSecretNames(map[string]string{
		"PRICING_DELIVERY_API_KEY":   "secret://pricing/delivery",
		"PRICING_PSP_STRIPE_API_KEY": "secret://pricing/stripe",
	})
	if len(got) != 1 || got[0] != "PSP.StripeAPIKey" {
		t.Fatalf("expected delivery key to be optional without a url, got %v", got)
	}

	got = requiredSecretNames(map[string]string{
		"PRICING_DELIVERY_API_URL": "https://delivery.internal",
		"PRICING_DELIVERY_API_KEY": "secret://pricing/delivery",
	})
	if len(got) != 1 || got[0] != "Delivery.APIKey" {
		t.Fatalf("expected delivery key to be required, got %v", got)
	}
}

func TestBuildInfo(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	info := buildInfo(config.Config{Environment: "prod", Build: config.BuildConfig{Version: "1.4.0"}}, started)
	if info.Version != "1.4.0" || info.CommitSHA != "unknown" || info.Environment != "prod" || !info.StartedAt.Equal(started) {
		t.Fatalf("unexpected build info %+v", info)
	}

	info = buildInfo(config.Config{}, started)
	if info.Version != "dev" || info.Environment != "local" {
		t.Fatalf("expected defaults, got %+v", info)
	}
}

func TestWireLocalOnly(t *testing.T) {
	cfg := config.Config{
		Pricing:  config.PricingConfig{Currency: "USD", MaxBodyBytes: 1024},
		Features: config.FeatureFlags{RemoteDelivery: true, TaxCalculation: true},
	}

	app, err := wire(cfg, zap.NewNop(), nil, time.Now())
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	if app.remoteDelivery || app.tax {
		t.Fatalf("expected remote delivery and tax disabled without configuration, got %+v", app)
	}
	if app.pricing == nil || app.health == nil {
		t.Fatalf("expected handlers to be built")
	}
}

func TestWireRespectsFeatureFlags(t *testing.T) {
	cfg := config.Config{
		Pricing:  config.PricingConfig{Currency: "USD", MaxBodyBytes: 1024},
		Delivery: config.DeliveryConfig{APIURL: "https://delivery.internal", Timeout: time.Second},
		PSP:      config.PSPConfig{StripeAPIKey: "sk_test_123"},
		Features: config.FeatureFlags{RemoteDelivery: false, TaxCalculation: false},
	}

	app, err := wire(cfg, zap.NewNop(), nil, time.Now())
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	if app.remoteDelivery || app.tax {
		t.Fatalf("expected feature flags to disable integrations, got %+v", app)
	}
}

func TestNewSystemServiceWithoutDependencies(t *testing.T) {
	svc, err := newSystemService(nil, nil, buildInfo(config.Config{}, time.Now()))
	if err != nil {
		t.Fatalf("newSystemService: %v", err)
	}
	if svc == nil {
		t.Fatalf("expected system service")
	}
}
