package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cateringhub/pricing/internal/platform/httpx"
	"github.com/cateringhub/pricing/internal/platform/requestctx"
)

// CallerHeader names the marketplace client issuing a pricing request.
const CallerHeader = "X-Pricing-Caller"

const (
	httpMetricNamespace = "github.com/cateringhub/pricing/http"
	pricingRoutePrefix  = "/api/v1/pricing/"
)

type httpInstruments struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	instruments     httpInstruments
)

func requestInstruments() httpInstruments {
	instrumentsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(httpMetricNamespace)
		if counter, err := meter.Int64Counter("pricing.http.requests",
			metric.WithDescription("Pricing API requests by operation and status class")); err == nil {
			instruments.requests = counter
		}
		if hist, err := meter.Float64Histogram("pricing.http.duration",
			metric.WithDescription("Pricing API latency"),
			metric.WithUnit("ms")); err == nil {
			instruments.duration = hist
		}
	})
	return instruments
}

// InjectLoggerMiddleware puts logger on every request context.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
		})
	}
}

// CallerMiddleware records the calling client from CallerHeader on the request context.
func CallerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if caller := SanitizeCaller(strings.TrimSpace(r.Header.Get(CallerHeader))); caller != "" {
				r = r.WithContext(requestctx.WithCaller(r.Context(), caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLoggerMiddleware writes one structured entry per request once the handler returns and
// records the pricing.http.* instruments. Entries carry the Cloud Logging trace resource when
// projectID is known.
func RequestLoggerMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			traceInfo, _ := requestctx.Trace(ctx)
			if traceInfo.ProjectID == "" {
				traceInfo.ProjectID = projectID
			}

			logger := requestctx.Logger(ctx).With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("method", SanitizeMethod(r.Method)),
				zap.String("caller", requestctx.Caller(ctx)),
			)
			if resource := loggingTraceResource(traceInfo); resource != "" {
				logger = logger.With(zap.String("logging.googleapis.com/trace", resource))
			}
			if ip := clientIP(r); ip != "" {
				logger = logger.With(zap.String("remote_ip", ip))
			}
			r = r.WithContext(requestctx.WithLogger(ctx, logger))

			sw := &statusWriter{ResponseWriter: w}
			start := time.Now()
			panicked := true
			defer func() {
				status := sw.status()
				if panicked && status < http.StatusInternalServerError {
					status = http.StatusInternalServerError
				}
				route := SanitizeRoute(routePattern(r))
				elapsed := time.Since(start)

				annotateSpan(trace.SpanFromContext(r.Context()), route, status)
				recordRequest(r.Context(), route, status, elapsed)

				fields := []zap.Field{
					zap.String("route", route),
					zap.String("operation", pricingOperation(route)),
					zap.Int("status", status),
					zap.Duration("latency", elapsed),
					zap.Int64("bytes", sw.bytes),
				}
				switch {
				case status >= http.StatusInternalServerError:
					logger.Error("request completed", fields...)
				case status >= http.StatusBadRequest:
					logger.Warn("request completed", fields...)
				default:
					logger.Info("request completed", fields...)
				}
			}()

			next.ServeHTTP(sw, r)
			panicked = false
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 envelope and logs the stack.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = requestctx.NoopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				ctx := r.Context()
				logger := requestctx.Logger(ctx)
				if logger == requestctx.NoopLogger() {
					logger = fallback
				}
				logger.Error("pricing handler panicked",
					zap.String("route", SanitizeRoute(routePattern(r))),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func recordRequest(ctx context.Context, route string, status int, elapsed time.Duration) {
	inst := requestInstruments()
	attrs := metric.WithAttributes(
		attribute.String("operation", pricingOperation(route)),
		attribute.String("status_class", fmt.Sprintf("%dxx", status/100)),
	)
	if inst.requests != nil {
		inst.requests.Add(ctx, 1, attrs)
	}
	if inst.duration != nil {
		inst.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

// pricingOperation maps /api/v1/pricing/quote to "quote"; other routes keep their pattern.
func pricingOperation(route string) string {
	if op, ok := strings.CutPrefix(route, pricingRoutePrefix); ok && op != "" {
		return op
	}
	return route
}

func annotateSpan(span trace.Span, route string, status int) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(status), semconv.HTTPRoute(route))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
		return
	}
	span.SetStatus(codes.Ok, "")
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL != nil && r.URL.Path != "" {
		return r.URL.Path
	}
	return "/"
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return sanitizeString(addr, 64)
}

func loggingTraceResource(info requestctx.TraceInfo) string {
	if info.ProjectID == "" || info.TraceID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/traces/%s", info.ProjectID, info.TraceID)
}

type statusWriter struct {
	http.ResponseWriter
	code  int
	bytes int64
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
