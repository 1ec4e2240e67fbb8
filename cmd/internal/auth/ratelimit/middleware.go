package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Policy applies Rules through a Limiter at the HTTP boundary.
type Policy struct {
	limiter    Limiter
	rules      Rules
	log        *slog.Logger
	trustProxy bool

	onLimited func(r *http.Request, endpoint string, d Decision)
	onError   func(endpoint string, err error)
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) PolicyOption {
	return func(p *Policy) {
		if log != nil {
			p.log = log
		}
	}
}

// WithTrustProxy keys clients by X-Forwarded-For / X-Real-IP.
func WithTrustProxy(trust bool) PolicyOption {
	return func(p *Policy) { p.trustProxy = trust }
}

// WithLimitedHook is called for every rejected request.
func WithLimitedHook(fn func(r *http.Request, endpoint string, d Decision)) PolicyOption {
	return func(p *Policy) { p.onLimited = fn }
}

// WithErrorHook is called for every limiter backend error.
func WithErrorHook(fn func(endpoint string, err error)) PolicyOption {
	return func(p *Policy) { p.onError = fn }
}

// NewPolicy builds a Policy. Rules must be valid.
func NewPolicy(l Limiter, rules Rules, opts ...PolicyOption) (*Policy, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	p := &Policy{limiter: l, rules: rules, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Rule returns the rule for endpoint.
func (p *Policy) Rule(endpoint string) (Rule, bool) {
	r, ok := p.rules[endpoint]
	return r, ok
}

// Middleware enforces the endpoint's rule before anything else runs.
// Unknown endpoints pass through.
func (p *Policy) Middleware(endpoint string) func(http.Handler) http.Handler {
	rule, ok := p.rules[endpoint]
	return func(next http.Handler) http.Handler {
		if !ok {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(ClientIP(r, p.trustProxy))

			d, err := p.limiter.Allow(r.Context(), key, rule)
			if err != nil {
				if p.onError != nil {
					p.onError(endpoint, err)
				}
				if rule.OnFail == FailOpen {
					p.log.Warn("ratelimit.backend.fail_open", "endpoint", endpoint, "err", err)
					next.ServeHTTP(w, r)
					return
				}
				p.log.Error("ratelimit.backend.fail_closed", "endpoint", endpoint, "err", err)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
				return
			}

			setHeaders(w, d)
			if !d.Allowed {
				if p.onLimited != nil {
					p.onLimited(r, endpoint, d)
				}
				p.log.Info("ratelimit.reject", "endpoint", endpoint, "client", key, "retry_after_s", retryAfterSeconds(d.RetryAfter))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func retryAfterSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func clientKey(ip net.IP) string {
	if ip == nil {
		return "unknown"
	}
	return ip.String()
}

// ClientIP returns the request's client address. Forwarding headers are only
// honored when trustProxy is set; X-Forwarded-For yields its rightmost entry,
// the one appended by the proxy in front of us.
func ClientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return net.ParseIP(strings.TrimSpace(r.RemoteAddr))
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if ip := net.ParseIP(strings.TrimSpace(parts[i])); ip != nil {
			return ip
		}
	}
	return nil
}
