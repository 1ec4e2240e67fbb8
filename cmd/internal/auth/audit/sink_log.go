package audit

import (
	"context"
	"log/slog"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink returns a LogSink. Replay events are logged at WARN.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Record(ctx context.Context, ev Event) error {
	level := slog.LevelInfo
	if ev.Action == RefreshReuse {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.Time("at", ev.At),
	}
	if ev.UserID != "" {
		attrs = append(attrs, slog.String("user_id", ev.UserID))
	}
	if ev.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", ev.SessionID))
	}
	if ev.IP != nil {
		attrs = append(attrs, slog.String("ip", ev.IP.String()))
	}
	if ev.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", ev.UserAgent))
	}
	for k, v := range ev.Meta {
		attrs = append(attrs, slog.Any(k, v))
	}

	s.log.LogAttrs(ctx, level, ev.Action, attrs...)
	return nil
}
