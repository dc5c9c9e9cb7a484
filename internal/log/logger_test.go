package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerStampsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentApp).WithComponent(ComponentFreshness)

	logger.Info("hello", FieldCacheKey, "dashboard-unified")

	out := buf.String()
	if strings.Count(out, "component=") != 1 {
		t.Errorf("component logged %d times: %s", strings.Count(out, "component="), out)
	}
	if !strings.Contains(out, "component=freshness") || !strings.Contains(out, "cache_key=dashboard-unified") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("Component() = %q", l.Component())
	}

	logger := Discard().WithComponent(ComponentHTTP)
	if got := FromContext(WithContext(context.Background(), logger)); got != logger {
		t.Error("FromContext did not return stored logger")
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf, ComponentHTTP))
	r := httptest.NewRequest("GET", "/api/dashboard/projection", nil)

	sl.LogHTTPEnd(context.Background(), r, "req-1", 503, 12*time.Millisecond)
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "status_code=503") {
		t.Errorf("unexpected output: %s", buf.String())
	}

	buf.Reset()
	sl.LogRefresh(context.Background(), "dashboard-unified", 3, "interval", time.Second, errors.New("boom"))
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "seq=3") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
