package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"policykeeper-hq/policykeeper/pkg/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"json", Config{Level: "info", Format: "json"}, false},
		{"text", Config{Level: "debug", Format: "text"}, false},
		{"defaults", Config{}, false},
		{"invalid level", Config{Level: "verbose"}, true},
		{"invalid format", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("Expected logger, got nil")
			}
		})
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	child := logger.With("component", "test")

	child.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Expected info to be filtered at warn, got %q", buf.String())
	}

	if err := logger.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	child.Debug("shown")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Errorf("Expected derived logger to follow new level, got %v", lines)
	}
	if logger.Level() != slog.LevelDebug {
		t.Errorf("Expected level debug, got %v", logger.Level())
	}

	if err := logger.SetLevel("chatty"); err == nil {
		t.Error("Expected error for unknown level")
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithOrigin(ctx, OriginAPI)

	logger.InfoContext(ctx, "handled")
	logger.Info("no context")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0]["request_id"] != "req-42" {
		t.Errorf("Expected request_id req-42, got %v", lines[0]["request_id"])
	}
	if lines[0]["trace_id"] != sc.TraceID().String() {
		t.Errorf("Expected trace_id %s, got %v", sc.TraceID(), lines[0]["trace_id"])
	}
	if lines[0][OriginKey] != OriginAPI {
		t.Errorf("Expected origin %s, got %v", OriginAPI, lines[0][OriginKey])
	}
	if _, ok := lines[1]["request_id"]; ok {
		t.Error("Expected no request_id without context")
	}
	if _, ok := lines[1][OriginKey]; ok {
		t.Error("Expected no origin without context")
	}
}

func TestLogger_CLIOrigin(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := WithOrigin(context.Background(), "policykeeper policy delete")
	logger.With("component", "policy.service").InfoContext(ctx, "policy deleted", "policy_id", 4)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}
	if lines[0][OriginKey] != "policykeeper policy delete" {
		t.Errorf("Expected CLI origin, got %v", lines[0][OriginKey])
	}
	if _, ok := lines[0][RequestIDKey]; ok {
		t.Error("Expected no request_id for CLI work")
	}
}

func TestLogger_RedactCustomerNames(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, RedactCustomerNames: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("created", CustomerNameKey, "Zoë Quinn", "policy_type", "AUTO")
	logger.With(CustomerNameKey, "Ann").Info("derived")

	lines := decodeLines(t, &buf)
	if lines[0][CustomerNameKey] != "Z***" {
		t.Errorf("Expected Z***, got %v", lines[0][CustomerNameKey])
	}
	if lines[0]["policy_type"] != "AUTO" {
		t.Errorf("Expected other attributes untouched, got %v", lines[0]["policy_type"])
	}
	if lines[1][CustomerNameKey] != "A***" {
		t.Errorf("Expected A***, got %v", lines[1][CustomerNameKey])
	}
}

func TestRedactName(t *testing.T) {
	if got := RedactName(""); got != "" {
		t.Errorf("Expected empty, got %q", got)
	}
	if got := RedactName("Émile"); got != "É***" {
		t.Errorf("Expected É***, got %q", got)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(&config.LoggingConfig{Level: "error", Format: "text", AddSource: true, RedactCustomerNames: true})
	if cfg.Level != "error" || cfg.Format != "text" || !cfg.AddSource || !cfg.RedactCustomerNames {
		t.Errorf("Unexpected conversion: %+v", cfg)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("Expected empty request ID, got %q", got)
	}
	if got := GetRequestID(WithRequestID(ctx, "abc")); got != "abc" {
		t.Errorf("Expected abc, got %q", got)
	}
	if got := GetOrigin(ctx); got != "" {
		t.Errorf("Expected empty origin, got %q", got)
	}
	both := WithOrigin(WithRequestID(ctx, "abc"), "policykeeper policy list")
	if GetRequestID(both) != "abc" || GetOrigin(both) != "policykeeper policy list" {
		t.Errorf("Expected both values to survive, got %q %q", GetRequestID(both), GetOrigin(both))
	}
}
