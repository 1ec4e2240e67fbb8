package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"sessiond/cmd/internal/auth/audit"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

const redacted = "[REDACTED]"

// NewLogger creates a structured logger with an explicit level. format is
// "json" (default) or "pretty" for a colored key=value layout on terminals.
func NewLogger(level, format string) *slog.Logger {
	log := newLogger(os.Stdout, level, format, isTerminal(os.Stdout))
	slog.SetDefault(log)
	return log
}

func newLogger(w io.Writer, level, format string, color bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(level),
		AddSource:   true,
		ReplaceAttr: redactAttr,
	}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "pretty", "text":
		h = newPrettyHandler(w, opts, color)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redactAttr masks values of credential-bearing keys wherever they appear.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if audit.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
