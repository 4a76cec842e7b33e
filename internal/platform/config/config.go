// Package config loads the pricing service configuration from PRICING_* variables.
// Precedence is defaults < .env < OS environment < WithEnvMap. Settings that hold API keys may
// be secret:// (or legacy sm://) references and are resolved through a SecretResolver.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultCurrency            = "USD"
	defaultMaxBodyBytes        = 64 << 10
	defaultDeliveryTimeout     = 5 * time.Second
	defaultRateLimitWindow     = time.Minute
	defaultEnvironment         = "local"
	defaultSecretsFallbackFile = ".secrets.local"
)

type Config struct {
	Server      ServerConfig
	Pricing     PricingConfig
	Delivery    DeliveryConfig
	PSP         PSPConfig
	Secrets     SecretsConfig
	Features    FeatureFlags
	Build       BuildConfig
	Environment string
}

// BuildConfig is reported by /healthz.
type BuildConfig struct {
	Version   string
	CommitSHA string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PricingConfig holds engine defaults. RateLimit is requests per caller per window; zero disables it.
type PricingConfig struct {
	Currency        string
	MaxBodyBytes    int
	RateLimit       int
	RateLimitWindow time.Duration
}

// DeliveryConfig points at the optional remote delivery calculation API. An empty URL
// keeps delivery pricing fully local.
type DeliveryConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// PSPConfig holds Stripe credentials. A key enables tax calculation.
type PSPConfig struct {
	StripeAPIKey    string
	StripeAccountID string
}

// SecretsConfig configures the Secret Manager fetcher. VersionPins keys are canonical
// secret:// references, optionally prefixed with "<env>:".
type SecretsConfig struct {
	ProjectID       string
	ProjectMap      map[string]string
	VersionPins     map[string]string
	FallbackFile    string
	CredentialsFile string
}

type FeatureFlags struct {
	RemoteDelivery bool
	TaxCalculation bool
}

// ValidationError lists every config field that is missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises Load and EnvironmentValues.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func newLoaderOptions(opts []Option) loaderOptions {
	o := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithEnvFile overrides the .env path; an empty path skips the file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap supplies values that win over the OS environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets names secret-backed settings ("PSP.StripeAPIKey", "Delivery.APIKey")
// that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// WithPanicOnMissingSecrets makes Load panic with *MissingSecretsError instead of returning it.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) { o.panicOnMissingSecrets = true }
}

// LoadSecrets reads only the environment name and the Secret Manager settings, so the fetcher
// that Load resolves references through can be built first.
func LoadSecrets(opts ...Option) (string, SecretsConfig, error) {
	env, err := newEnvSource(newLoaderOptions(opts))
	if err != nil {
		return "", SecretsConfig{}, err
	}
	environment, secrets := readSecrets(env)
	return environment, secrets, nil
}

// readSecrets applies the environment's entry in the project map over the default project.
func readSecrets(env envSource) (string, SecretsConfig) {
	environment := strings.ToLower(env.str("PRICING_ENVIRONMENT", defaultEnvironment))
	secrets := SecretsConfig{
		ProjectID:       env.str("PRICING_SECRETS_PROJECT_ID", ""),
		ProjectMap:      env.keyValues("PRICING_SECRETS_PROJECT_IDS"),
		VersionPins:     env.versionPins("PRICING_SECRETS_VERSION_PINS"),
		FallbackFile:    env.str("PRICING_SECRETS_FALLBACK_FILE", defaultSecretsFallbackFile),
		CredentialsFile: env.str("PRICING_SECRETS_CREDENTIALS_FILE", ""),
	}
	if project := secrets.ProjectMap[environment]; project != "" {
		secrets.ProjectID = project
	}
	return environment, secrets
}

// Load reads, resolves and validates the configuration.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := newLoaderOptions(opts)
	env, err := newEnvSource(o)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         env.str("PRICING_SERVER_PORT", defaultPort),
			ReadTimeout:  env.duration("PRICING_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: env.duration("PRICING_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  env.duration("PRICING_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Pricing: PricingConfig{
			Currency:        strings.ToUpper(env.str("PRICING_CURRENCY", defaultCurrency)),
			MaxBodyBytes:    env.integer("PRICING_MAX_BODY_BYTES", defaultMaxBodyBytes),
			RateLimit:       env.integer("PRICING_RATE_LIMIT", 0),
			RateLimitWindow: env.duration("PRICING_RATE_LIMIT_WINDOW", defaultRateLimitWindow),
		},
		Delivery: DeliveryConfig{
			APIURL:  strings.TrimRight(env.str("PRICING_DELIVERY_API_URL", ""), "/"),
			APIKey:  env.str("PRICING_DELIVERY_API_KEY", ""),
			Timeout: env.duration("PRICING_DELIVERY_API_TIMEOUT", defaultDeliveryTimeout),
		},
		PSP: PSPConfig{
			StripeAPIKey:    env.str("PRICING_PSP_STRIPE_API_KEY", ""),
			StripeAccountID: env.str("PRICING_PSP_STRIPE_ACCOUNT_ID", ""),
		},
		Features: FeatureFlags{
			RemoteDelivery: env.boolean("PRICING_FEATURE_REMOTE_DELIVERY", true),
			TaxCalculation: env.boolean("PRICING_FEATURE_TAX", true),
		},
		Build: BuildConfig{
			Version:   env.str("PRICING_BUILD_VERSION", "dev"),
			CommitSHA: env.str("PRICING_BUILD_COMMIT_SHA", "unknown"),
		},
	}
	cfg.Environment, cfg.Secrets = readSecrets(env)

	resolved, err := cfg.resolveSecrets(ctx, o.secret)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(o.requiredSecrets, resolved); missing != nil {
		if o.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}
	return cfg, nil
}

func (c Config) validate() error {
	var invalid []string
	check := func(bad bool, field string) {
		if bad {
			invalid = append(invalid, field)
		}
	}

	check(c.Server.Port == "", "Server.Port")
	check(c.Server.ReadTimeout <= 0, "Server.ReadTimeout")
	check(c.Server.WriteTimeout <= 0, "Server.WriteTimeout")
	_, err := currency.ParseISO(c.Pricing.Currency)
	check(err != nil, "Pricing.Currency")
	check(c.Pricing.MaxBodyBytes <= 0, "Pricing.MaxBodyBytes")
	check(c.Pricing.RateLimit < 0, "Pricing.RateLimit")
	check(c.Pricing.RateLimit > 0 && c.Pricing.RateLimitWindow <= 0, "Pricing.RateLimitWindow")
	if c.Delivery.APIURL != "" {
		check(!strings.HasPrefix(c.Delivery.APIURL, "http://") && !strings.HasPrefix(c.Delivery.APIURL, "https://"), "Delivery.APIURL")
		check(c.Delivery.Timeout <= 0, "Delivery.Timeout")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
