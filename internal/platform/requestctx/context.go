// Package requestctx carries per-request metadata for the pricing API: the scoped logger,
// Cloud Trace identifiers and the calling marketplace client.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type (
	loggerKey struct{}
	traceKey  struct{}
	callerKey struct{}
)

var noopLogger = zap.NewNop()

// TraceInfo is the trace metadata parsed from inbound trace headers.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

func background(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// WithLogger returns ctx carrying logger. A nil logger is stored as the noop logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(background(ctx), loggerKey{}, logger)
}

// Logger returns the request logger, or the noop logger outside a request.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := background(ctx).Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger is the logger Logger falls back to.
func NoopLogger() *zap.Logger { return noopLogger }

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(background(ctx), traceKey{}, info)
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	info, ok := background(ctx).Value(traceKey{}).(TraceInfo)
	return info, ok
}

// TraceID is the inbound trace id, empty when the request carried none.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithCaller records the calling marketplace client (checkout, vendor portal, ...).
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(background(ctx), callerKey{}, caller)
}

// Caller is the client recorded by WithCaller. Rate limiting and request logs key on it.
func Caller(ctx context.Context) string {
	caller, _ := background(ctx).Value(callerKey{}).(string)
	return caller
}
