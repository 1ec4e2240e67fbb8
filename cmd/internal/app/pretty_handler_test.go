package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_RequestLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))
	log.With("component", "http").Warn("http.request",
		"method", "post",
		"path", "/session/refresh",
		"status", 401,
		"status_class", "4xx",
		"duration_ms", int64(12),
		"remote", "10.0.0.1:5555",
	)

	out := buf.String()
	for _, want := range []string{
		"lvl=[WARN]",
		"msg=http.request",
		"component=http",
		"method=POST",
		"path=/session/refresh",
		"status=401",
		"class=4xx",
		"duration=12ms",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but output has escapes: %q", out)
	}
}

func TestPrettyHandler_ColorAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))
	log.WithGroup("db").Error("db.ping.fail", "err", "connection refused")

	out := buf.String()
	if !strings.Contains(out, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("expected red error tag: %q", out)
	}
	if !strings.Contains(stripANSI(out), `db.err="connection refused"`) {
		t.Fatalf("expected grouped, quoted attr: %q", stripANSI(out))
	}
}

func TestPrettyHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := newPrettyHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}, false)
	if h.Enabled(t.Context(), slog.LevelInfo) {
		t.Fatal("info must be disabled at warn level")
	}
	if !h.Enabled(t.Context(), slog.LevelError) {
		t.Fatal("error must be enabled at warn level")
	}
}
