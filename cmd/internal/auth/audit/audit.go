// Package audit records security-relevant auth events.
//
// Events never carry token or password values; meta keys that look sensitive
// are dropped before any sink sees them.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"
)

// Actions.
const (
	LoginSuccess        = "auth.login.success"
	LoginFailed         = "auth.login.failed"
	LoginRateLimited    = "auth.login.rate_limited"
	RefreshSuccess      = "auth.refresh.success"
	RefreshFailed       = "auth.refresh.failed"
	RefreshReuse        = "auth.refresh.reuse_detected"
	Logout              = "auth.logout"
	LogoutAll           = "auth.logout_all"
	AdminRevokeSessions = "auth.admin.revoke_sessions"
)

// Event is one audit record.
type Event struct {
	Action    string
	UserID    string
	SessionID string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// Sink persists events. Record must not block the request for long; sinks
// bound their own work.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Recorder fans events out to sinks and logs sink failures instead of
// returning them: audit is best effort and never fails a request.
type Recorder struct {
	sinks []Sink
	log   *slog.Logger
	now   func() time.Time
}

// NewRecorder builds a Recorder. Nil sinks are skipped.
func NewRecorder(log *slog.Logger, sinks ...Sink) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{log: log, now: func() time.Time { return time.Now().UTC() }}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// Record sanitizes ev and hands it to every sink.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	ev.Action = strings.TrimSpace(ev.Action)
	if ev.Action == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = r.now()
	}
	ev.Meta = sanitizeMeta(ev.Meta)

	var errs []error
	for _, s := range r.sinks {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		r.log.Error("auth.audit.record.fail", "action", ev.Action, "err", err)
	}
}

var sensitiveKeys = []string{"password", "token", "secret", "authorization", "cookie"}

// IsSensitiveKey reports whether a log or meta key may hold a credential.
func IsSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func sanitizeMeta(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		if IsSensitiveKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}
