package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Invalid JSON log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.Info(context.Background(), "cache warmed", Field{Key: "keys", Value: 12})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e["level"] != "info" || e["msg"] != "cache warmed" {
		t.Errorf("Entry = %v", e)
	}
	if e["keys"] != float64(12) {
		t.Errorf("keys = %v, want 12", e["keys"])
	}
	if e["timestamp"] == nil {
		t.Error("Missing timestamp")
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("warn", &buf)

	ctx := context.Background()
	l.Debug(ctx, "dropped")
	l.Info(ctx, "dropped")
	l.Warn(ctx, "kept")
	l.Error(ctx, "kept")

	if got := len(decodeLines(t, &buf)); got != 2 {
		t.Errorf("Got %d entries, want 2", got)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.WithComponent("ratelimit").Info(context.Background(), "sweep complete")

	entries := decodeLines(t, &buf)
	if entries[0]["component"] != "ratelimit" {
		t.Errorf("component = %v, want ratelimit", entries[0]["component"])
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter("info", &buf)

	l.Info(context.Background(), "admission",
		Field{Key: "session_id", Value: "abc123"},
		Field{Key: "authorization", Value: "Bearer xyz"},
		Field{Key: "path", Value: "/letters"},
	)

	e := decodeLines(t, &buf)[0]
	if e["session_id"] != "[REDACTED]" {
		t.Errorf("session_id = %v, want [REDACTED]", e["session_id"])
	}
	if e["authorization"] != "[REDACTED]" {
		t.Errorf("authorization = %v, want [REDACTED]", e["authorization"])
	}
	if e["path"] != "/letters" {
		t.Errorf("path = %v, want /letters", e["path"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	// Must not panic and WithComponent must keep returning a usable logger.
	l.WithComponent("x").Info(context.Background(), "ignored")
}
