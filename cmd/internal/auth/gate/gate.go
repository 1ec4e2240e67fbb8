// Package gate authenticates inbound requests by access token and binds the
// caller identity into the request context.
package gate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/autherr"
	"sessiond/cmd/internal/auth/session"
)

// AccessCookieName is the cookie carrying the access token for web clients.
const AccessCookieName = "access_token"

// Identity is the authenticated caller. It is immutable once bound.
type Identity struct {
	OwnerID   string
	Role      identity.Role
	SessionID string
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the identity bound by Require.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Verifier checks an access token by signature and expiry.
type Verifier interface {
	VerifyAccess(token string, now time.Time) (session.AccessClaims, error)
}

// Gate is the request-interception step for protected routes.
type Gate struct {
	verifier Verifier
	log      *slog.Logger
	now      func() time.Time
	cookie   string
	onReject func(reason string)
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// WithClock overrides the verification clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithCookieName overrides AccessCookieName. An empty name disables the cookie carrier.
func WithCookieName(name string) Option {
	return func(g *Gate) { g.cookie = name }
}

// WithRejectHook is called with the internal reason of every rejection.
func WithRejectHook(fn func(reason string)) Option {
	return func(g *Gate) { g.onReject = fn }
}

// New builds a Gate.
func New(v Verifier, opts ...Option) *Gate {
	g := &Gate{
		verifier: v,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		cookie:   AccessCookieName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Require rejects requests without a valid access token with 401. Missing,
// malformed, expired and forged tokens produce the same response.
func (g *Gate) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := g.extract(r)
		if raw == "" {
			g.reject(w, r, "missing")
			return
		}

		claims, err := g.verifier.VerifyAccess(raw, g.now())
		if err != nil {
			reason := "invalid"
			if rr := autherr.ReasonOf(err); rr != nil {
				reason = rr.Error()
			}
			g.reject(w, r, reason)
			return
		}

		id := Identity{OwnerID: claims.OwnerID, Role: claims.Role, SessionID: claims.SessionID}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole must run after Require. It answers 403 when the caller's role
// does not satisfy required.
func (g *Gate) RequireRole(required identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				g.reject(w, r, "missing_identity")
				return
			}
			if !identity.IsAuthorized(id.Role, required) {
				g.log.Warn("auth.gate.forbidden",
					"owner_id", id.OwnerID,
					"role", id.Role.String(),
					"required", required.String(),
					"path", r.URL.Path,
				)
				writeError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) extract(r *http.Request) string {
	if tok := BearerToken(r); tok != "" {
		return tok
	}
	if g.cookie == "" {
		return ""
	}
	c, err := r.Cookie(g.cookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, reason string) {
	g.log.Info("auth.gate.reject", "reason", reason, "path", r.URL.Path)
	if g.onReject != nil {
		g.onReject(reason)
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="sessiond"`)
	writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
}

// BearerToken extracts the credentials of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": msg},
	})
}
