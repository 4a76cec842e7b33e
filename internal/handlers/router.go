package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cateringhub/pricing/internal/platform/httpx"
)

// RouteRegistrar mounts endpoints on a route group.
type RouteRegistrar func(r chi.Router)

type Middleware = func(http.Handler) http.Handler

type routerConfig struct {
	prefix   string
	timeout  time.Duration
	global   []Middleware
	health   *HealthHandlers
	pricing  RouteRegistrar
	pricingM []Middleware
}

// Option configures NewRouter.
type Option func(*routerConfig)

// NewRouter serves /healthz and /readyz at the root and the pricing endpoints under
// /api/v1/pricing. Only the pricing group sees the pricing middlewares, so probes are never
// rate limited.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{prefix: "/api/v1", timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if cfg.timeout > 0 {
		r.Use(middleware.Timeout(cfg.timeout))
	}
	use(r, cfg.global)
	r.NotFound(routeNotFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.prefix+"/pricing", func(group chi.Router) {
		use(group, cfg.pricingM)
		if cfg.pricing == nil {
			group.HandleFunc("/*", pricingNotImplemented)
			return
		}
		cfg.pricing(group)
	})
	return r
}

func use(r chi.Router, mws []Middleware) {
	for _, mw := range mws {
		if mw != nil {
			r.Use(mw)
		}
	}
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", r.URL.Path), http.StatusNotFound))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path), http.StatusMethodNotAllowed))
}

func pricingNotImplemented(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(r.Context(), w, httpx.NewError("not_implemented", "pricing routes not configured", http.StatusNotImplemented))
}

// WithMiddlewares appends middleware that runs for every route, probes included.
func WithMiddlewares(mw ...Middleware) Option {
	return func(cfg *routerConfig) { cfg.global = append(cfg.global, mw...) }
}

// WithRequestTimeout sets the per-request deadline; zero disables it.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(cfg *routerConfig) { cfg.timeout = timeout }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

func WithPricingRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.pricing = reg }
}

// WithPricingMiddlewares appends middleware scoped to the pricing group.
func WithPricingMiddlewares(mw ...Middleware) Option {
	return func(cfg *routerConfig) { cfg.pricingM = append(cfg.pricingM, mw...) }
}
