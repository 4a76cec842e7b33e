package observability

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEventLoggerWritesEventFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	hook := EventLogger(zap.New(core).Named("quote"), "quote log")

	hook(context.Background(), "quote.computed", map[string]any{"total": int64(1200)})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Message != "quote log" || entry.LoggerName != "quote" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	fields := entry.ContextMap()
	if fields["event"] != "quote.computed" || fields["total"] != int64(1200) {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.DebugLevel)
	reqCore, reqLogs := observer.New(zapcore.DebugLevel)

	hook := EventLogger(zap.New(baseCore).Named("delivery"), "delivery log")
	ctx := WithLogger(context.Background(), zap.New(reqCore).With(zap.String("request_id", "r1")))
	hook(ctx, "delivery.remote_fallback", nil)

	if baseLogs.Len() != 0 {
		t.Fatalf("expected base logger unused")
	}
	if reqLogs.Len() != 1 {
		t.Fatalf("expected request logger entry, got %d", reqLogs.Len())
	}
	fields := reqLogs.All()[0].ContextMap()
	if fields["component"] != "delivery" || fields["request_id"] != "r1" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestEventLoggerNilLogger(t *testing.T) {
	EventLogger(nil, "noop")(context.Background(), "event", map[string]any{"k": "v"})
}

func TestNewLoggerWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.log")

	logger, err := NewLogger(LogSettings{Level: "WARN", File: path})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("below level")
	logger.Warn("delivery fallback", zap.String("serviceId", "svc_1"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"message":"delivery fallback"`) || !strings.Contains(content, `"severity":"WARN"`) {
		t.Fatalf("expected warn entry in log file, got %q", content)
	}
	if strings.Contains(content, "below level") {
		t.Fatalf("expected level filtering in log file, got %q", content)
	}
}

func TestLogSettingsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", " debug ")
	t.Setenv("LOG_FILE", "")

	settings := LogSettingsFromEnv()
	if settings.Level != "debug" || settings.File != "" {
		t.Fatalf("unexpected settings %+v", settings)
	}

	logger, err := NewLogger(LogSettings{Level: "chatty"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) || !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected unknown level to fall back to info")
	}
}
