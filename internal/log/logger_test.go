package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}).WithComponent(ComponentWorker)
	if logger.Component() != ComponentWorker {
		t.Fatalf("Component() = %q", logger.Component())
	}

	logger.With(FieldEventID, "ev-1").Info("Exported", FieldSheetsRef, "Inventory!A1")
	logger.Debug("dropped below the level")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentWorker || rec[FieldEventID] != "ev-1" || rec[FieldSheetsRef] != "Inventory!A1" {
		t.Errorf("record = %v", rec)
	}
}

func TestContextLogger(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != ComponentApp {
		t.Errorf("fallback component = %q, want %q", got, ComponentApp)
	}

	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})
	ctx := NewContext(context.Background(), logger.With(FieldRequestID, "req-42"))

	r := httptest.NewRequest("DELETE", "/items/delete?id=1", nil)
	NewStructuredLogger(FromContext(ctx)).LogHTTPEnd(ctx, r, 503, 12, "10.0.0.1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("bad record %q: %v", buf.String(), err)
	}
	if rec["level"] != "ERROR" || rec[FieldRequestID] != "req-42" || rec[FieldPath] != "/items/delete" || rec[FieldQuery] != "id=1" {
		t.Errorf("record = %v", rec)
	}
}
