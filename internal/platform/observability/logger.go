package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cateringhub/pricing/internal/platform/requestctx"
)

// LogSettings selects the level and optional rotated file sink of the process logger.
type LogSettings struct {
	Level string
	File  string
}

// LogSettingsFromEnv reads LOG_LEVEL and LOG_FILE.
func LogSettingsFromEnv() LogSettings {
	return LogSettings{
		Level: strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		File:  strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
}

// NewLogger returns a JSON logger on stdout using Cloud Logging field names. With a File the
// same entries are teed to a lumberjack file rotated at 64MB, keeping a week of backups.
// Unknown levels fall back to info.
func NewLogger(settings LogSettings) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if settings.Level != "" {
		if parsed, err := zapcore.ParseLevel(strings.ToLower(settings.Level)); err == nil {
			level = parsed
		}
	}
	encoder := zapcore.NewJSONEncoder(cloudLoggingEncoderConfig())

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	if settings.File != "" {
		sink := &lumberjack.Logger{Filename: settings.File, MaxSize: 64, MaxBackups: 7, MaxAge: 7}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(sink), level))
	}
	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	), nil
}

func cloudLoggingEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// WithLogger stores logger on ctx for request-scoped retrieval.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// EventLogger adapts zap to the func(ctx, event, fields) hook taken by the pricing services.
// Entries are written at debug under message. When ctx carries a request logger that one is
// used, tagged with the component name of logger.
func EventLogger(logger *zap.Logger, message string) func(context.Context, string, map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		target := logger
		zFields := make([]zap.Field, 0, len(fields)+2)
		if scoped := requestctx.Logger(ctx); scoped != requestctx.NoopLogger() {
			target = scoped
			zFields = append(zFields, zap.String("component", logger.Name()))
		}
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		target.Debug(message, zFields...)
	}
}
