// Package secrets resolves secret:// references (delivery API key, Stripe key) against Google
// Secret Manager, with an in-memory TTL cache and a local fallback file for development.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	defaultCacheTTL     = 10 * time.Minute
	metricNamespace     = "github.com/cateringhub/pricing/internal/platform/secrets"

	// probeReference is resolved by Ping. A missing secret still proves Secret Manager is reachable.
	probeReference = "secret://pricing/healthz?version=latest"
)

// source labels where a resolved value came from in metrics.
type source string

const (
	sourceCache    source = "cache"
	sourceRemote   source = "remote"
	sourceFallback source = "fallback"
	sourceError    source = "error"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret references. It is safe for concurrent use.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger

	env            string
	defaultProject string
	projectMap     map[string]string
	versionPins    map[string]string
	fallback       *fallbackFile

	mu    sync.RWMutex
	cache map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time

	metrics fetchMetrics
}

type cacheEntry struct {
	value     string
	canonical string
	fetchedAt time.Time
}

type fetchMetrics struct {
	latency   metric.Float64Histogram
	cacheHits metric.Int64Counter
}

type fetcherConfig struct {
	logger       *zap.Logger
	env          string
	defaultProj  string
	projectMap   map[string]string
	versionPins  map[string]string
	fallbackPath string
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
	cacheTTL     time.Duration
	clock        func() time.Time
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) { cfg.logger = logger }
}

// WithEnvironment selects the key looked up in the project map.
func WithEnvironment(env string) Option {
	return func(cfg *fetcherConfig) { cfg.env = strings.ToLower(strings.TrimSpace(env)) }
}

// WithDefaultProject is used when the project map has no entry for the environment.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherConfig) { cfg.defaultProj = strings.TrimSpace(projectID) }
}

// WithProjectMap maps environment names to Secret Manager projects.
func WithProjectMap(m map[string]string) Option {
	return func(cfg *fetcherConfig) { cfg.projectMap = cloneMap(m) }
}

func WithFallbackFile(path string) Option {
	return func(cfg *fetcherConfig) { cfg.fallbackPath = strings.TrimSpace(path) }
}

func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherConfig) { cfg.meter = m }
}

// WithSecretManagerClient injects a client instead of dialing Secret Manager.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) { cfg.client = client }
}

// WithClientOptions forwards options (credentials file, endpoint) to the Secret Manager client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) { cfg.clientOpts = append(cfg.clientOpts, opts...) }
}

// WithVersionPins pins references to versions. Keys are canonical references, optionally
// prefixed with "<env>:" to pin only in one environment.
func WithVersionPins(pins map[string]string) Option {
	return func(cfg *fetcherConfig) { cfg.versionPins = cloneMap(pins) }
}

// WithCacheTTL bounds how long a resolved value is served from memory. Rotated API keys
// are picked up after the TTL; a non-positive TTL caches for the process lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(cfg *fetcherConfig) { cfg.cacheTTL = ttl }
}

func WithClock(clock func() time.Time) Option {
	return func(cfg *fetcherConfig) { cfg.clock = clock }
}

// NewFetcher builds a Fetcher. When no Secret Manager client can be created the fetcher runs
// in fallback-only mode instead of failing, so local runs work without credentials.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{
		env:          strings.ToLower(strings.TrimSpace(os.Getenv("PRICING_ENVIRONMENT"))),
		fallbackPath: defaultFallbackPath,
		cacheTTL:     defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.env == "" {
		cfg.env = defaultEnvironment
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	if cfg.meter == nil {
		cfg.meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	f := &Fetcher{
		client:         cfg.client,
		logger:         cfg.logger,
		env:            cfg.env,
		defaultProject: cfg.defaultProj,
		projectMap:     cloneMap(cfg.projectMap),
		versionPins:    cloneMap(cfg.versionPins),
		fallback:       &fallbackFile{path: cfg.fallbackPath},
		cache:          make(map[string]cacheEntry),
		ttl:            cfg.cacheTTL,
		now:            cfg.clock,
		metrics:        newFetchMetrics(cfg.meter, cfg.logger),
	}

	if f.client == nil {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		} else {
			f.client = client
			f.ownsClient = true
		}
	}
	return f, nil
}

func newFetchMetrics(meter metric.Meter, logger *zap.Logger) fetchMetrics {
	var m fetchMetrics
	latency, err := meter.Float64Histogram("secrets.fetch.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for secret fetch attempts"))
	if err != nil {
		logger.Warn("secrets: unable to register latency metric", zap.Error(err))
	} else {
		m.latency = latency
	}
	hits, err := meter.Int64Counter("secrets.fetch.cache_hits",
		metric.WithDescription("Count of cache hits when resolving secrets"))
	if err != nil {
		logger.Warn("secrets: unable to register cache hit metric", zap.Error(err))
	} else {
		m.cacheHits = hits
	}
	return m
}

// Close drops cached values and closes a client the fetcher created itself.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	f.cache = make(map[string]cacheEntry)
	f.mu.Unlock()

	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the value behind ref. Lookups go cache, then Secret Manager, then the
// fallback file. The fallback is only consulted when Secret Manager is unreachable or refuses
// access; a NotFound from Secret Manager is an error.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}
	version := f.versionFor(parsed)
	key := cacheKey(parsed.Canonical, version)

	if value, ok := f.cached(key); ok {
		f.observe(ctx, start, sourceCache, nil)
		if f.metrics.cacheHits != nil {
			f.metrics.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", maskReference(parsed.Canonical))))
		}
		return value, nil
	}

	if project := f.projectFor(parsed); project != "" && f.client != nil {
		value, err := f.access(ctx, project, parsed.Secret, version)
		switch {
		case err == nil:
			f.store(key, parsed.Canonical, value)
			f.observe(ctx, start, sourceRemote, nil)
			return value, nil
		case !fallbackAllowed(err):
			f.observe(ctx, start, sourceError, err)
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.Canonical, err)
		}
		f.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.Canonical), zap.Error(err))
	}

	value, err := f.fallback.lookup(parsed, version)
	if err != nil {
		f.observe(ctx, start, sourceError, err)
		return "", err
	}
	f.store(key, parsed.Canonical, value)
	f.observe(ctx, start, sourceFallback, nil)
	return value, nil
}

// Invalidate drops every cached version of ref.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, entry := range f.cache {
		if entry.canonical == parsed.Canonical {
			delete(f.cache, key)
		}
	}
}

// Ping verifies that Secret Manager answers for the configured project. It succeeds in
// fallback-only mode and when the probe secret does not exist.
func (f *Fetcher) Ping(ctx context.Context) error {
	parsed, err := parseReference(probeReference)
	if err != nil {
		return err
	}
	project := f.projectFor(parsed)
	if project == "" || f.client == nil {
		return nil
	}
	if _, err := f.access(ctx, project, parsed.Secret, parsed.Version); err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	if !ok || (f.ttl > 0 && f.now().Sub(entry.fetchedAt) >= f.ttl) {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) store(key, canonical, value string) {
	f.mu.Lock()
	f.cache[key] = cacheEntry{value: value, canonical: canonical, fetchedAt: f.now()}
	f.mu.Unlock()
}

func (f *Fetcher) access(ctx context.Context, project, secret, version string) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, secret, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

// projectFor picks ?project= on the reference, then the environment's project, then the default.
func (f *Fetcher) projectFor(ref parsedReference) string {
	if ref.ProjectOverride != "" {
		return ref.ProjectOverride
	}
	if id := strings.TrimSpace(f.projectMap[f.env]); id != "" {
		return id
	}
	return f.defaultProject
}

func (f *Fetcher) versionFor(ref parsedReference) string {
	if ref.Version != "" {
		return ref.Version
	}
	for _, key := range []string{f.env + ":" + ref.Canonical, ref.Canonical} {
		if pin := strings.TrimSpace(f.versionPins[key]); pin != "" {
			return pin
		}
	}
	return "latest"
}

func (f *Fetcher) observe(ctx context.Context, start time.Time, src source, err error) {
	if f.metrics.latency == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("source", string(src))}
	if err != nil {
		attrs = append(attrs, attribute.String("code", status.Code(err).String()))
	}
	f.metrics.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

// fallbackAllowed reports whether a Secret Manager failure means "unreachable" rather than
// "the secret is wrong".
func fallbackAllowed(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func cloneMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
