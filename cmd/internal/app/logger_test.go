package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogger_RedactsSensitiveKeys(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "pretty"} {
		var buf bytes.Buffer
		log := newLogger(&buf, "info", format, false)
		log.Info("auth.login", "email", "a@x.com", "password", "hunter2", "refresh_token", "abc")

		out := buf.String()
		if strings.Contains(out, "hunter2") || strings.Contains(out, "abc") {
			t.Fatalf("%s: secret leaked: %s", format, out)
		}
		if !strings.Contains(out, "a@x.com") {
			t.Fatalf("%s: expected email in output: %s", format, out)
		}
		if !strings.Contains(out, redacted) {
			t.Fatalf("%s: expected redaction marker: %s", format, out)
		}
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json", false)
	log.Info("server.start")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level: %s", buf.String())
	}
	log.Warn("auth.refresh.reuse_detected")
	if !strings.Contains(buf.String(), "auth.refresh.reuse_detected") {
		t.Fatalf("warn missing: %s", buf.String())
	}
}
