package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "info", Format: "json", Service: "estate-web", Writer: &buf})

	log.Info("hello", "client_id", "c1")
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if record["service"] != "estate-web" {
		t.Errorf("expected service attribute, got %v", record["service"])
	}
	if record["client_id"] != "c1" {
		t.Errorf("expected client_id attribute, got %v", record["client_id"])
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Format: "text", Writer: &buf})

	log.Warn("careful")

	if !strings.Contains(buf.String(), "msg=careful") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
