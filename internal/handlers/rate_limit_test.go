package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cateringhub/pricing/internal/platform/requestctx"
)

func TestFixedWindowLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newFixedWindowLimiter(2, time.Minute, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.allow("caller:checkout"); !ok {
			t.Fatalf("request %d: expected allow", i)
		}
	}
	ok, retry := limiter.allow("caller:checkout")
	if ok || retry != time.Minute {
		t.Fatalf("expected third request blocked for a minute, got ok=%v retry=%s", ok, retry)
	}
	if ok, _ := limiter.allow("caller:vendor-portal"); !ok {
		t.Fatalf("expected independent key to be allowed")
	}

	now = now.Add(time.Minute)
	if ok, _ := limiter.allow("caller:checkout"); !ok {
		t.Fatalf("expected window reset")
	}
	if _, exists := limiter.store["caller:vendor-portal"]; exists {
		t.Fatalf("expected expired entries to be pruned")
	}
}

func TestNewFixedWindowLimiterDisabled(t *testing.T) {
	if newFixedWindowLimiter(0, time.Minute, nil) != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	var limiter *fixedWindowLimiter
	if ok, _ := limiter.allow("x"); !ok {
		t.Fatalf("expected nil limiter to allow")
	}
}

func TestRateLimitMiddlewareOnPricingGroup(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	registrar := func(r chi.Router) {
		r.Post("/delivery", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
	withCaller := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if caller := r.Header.Get("X-Test-Caller"); caller != "" {
				r = r.WithContext(requestctx.WithCaller(r.Context(), caller))
			}
			next.ServeHTTP(w, r)
		})
	}
	router := NewRouter(
		WithMiddlewares(withCaller),
		WithPricingRoutes(registrar),
		WithPricingMiddlewares(RateLimitMiddleware(1, 30*time.Second, func() time.Time { return now })),
	)

	send := func(caller string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/delivery", nil)
		req.Header.Set("X-Test-Caller", caller)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	if rr := send("checkout"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}
	rr := send("checkout")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "30" {
		t.Fatalf("expected Retry-After 30, got %q", rr.Header().Get("Retry-After"))
	}
	if rr := send("vendor-portal"); rr.Code != http.StatusNoContent {
		t.Fatalf("expected other caller to pass, got %d", rr.Code)
	}

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("expected health probes to bypass the limiter, got %d", health.Code)
	}
}

func TestRateLimitKeyFallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if got := rateLimitKey(req); got != "ip:10.0.0.7" {
		t.Fatalf("expected ip key, got %q", got)
	}
}
