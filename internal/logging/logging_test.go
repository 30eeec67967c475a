package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected logger to round trip through context")
	}
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on bare context")
	}
	if got := ContextWithLogger(context.Background(), nil); FromContext(got) != nil {
		t.Fatalf("expected nil logger to be ignored")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "room_id", "room-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warning to be written, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if entry["app"] != "reservas" || entry["room_id"] != "room-1" {
		t.Fatalf("unexpected entry %v", entry)
	}

	buf.Reset()
	New(&buf, "debug", "text").Debug("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestScoped(t *testing.T) {
	t.Parallel()

	var fallback, scoped bytes.Buffer
	base := slog.New(slog.NewTextHandler(&fallback, nil))

	Scoped(context.Background(), base, "service", "RuleService", "Create", "rule_id", "r-1").Info("done")
	if got := fallback.String(); !strings.Contains(got, "service=RuleService") || !strings.Contains(got, "operation=Create") || !strings.Contains(got, "rule_id=r-1") {
		t.Fatalf("unexpected fallback output %q", got)
	}

	ctx := ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)).With("request_id", "req-9"))
	Scoped(ctx, base, "handler", "RuleHandler", "").Info("done")
	if got := scoped.String(); !strings.Contains(got, "request_id=req-9") || strings.Contains(got, "operation=") {
		t.Fatalf("unexpected request-scoped output %q", got)
	}

	if OrDefault(nil) != slog.Default() {
		t.Fatalf("expected slog.Default for nil logger")
	}
}
