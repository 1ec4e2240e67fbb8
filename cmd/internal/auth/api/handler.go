// Package api exposes the session endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/audit"
	"sessiond/cmd/internal/auth/autherr"
	"sessiond/cmd/internal/auth/gate"
	"sessiond/cmd/internal/auth/login"
	"sessiond/cmd/internal/auth/ratelimit"
	"sessiond/cmd/internal/auth/session"
)

// LoginService opens sessions from credentials.
type LoginService interface {
	Login(ctx context.Context, now time.Time, creds login.Credentials, dev session.DeviceContext) (login.Result, error)
}

// SessionService rotates and revokes sessions.
type SessionService interface {
	RotateRefresh(ctx context.Context, now time.Time, presented string, dev session.DeviceContext) (session.Issued, error)
	Revoke(ctx context.Context, now time.Time, presented string) error
	RevokeAll(ctx context.Context, now time.Time, ownerID, reason string) (int64, error)
}

// Deps are the collaborators of a Handler. All are required except Audit.
type Deps struct {
	Login    LoginService
	Sessions SessionService
	Users    identity.Store
	Gate     *gate.Gate
	Limits   *ratelimit.Policy
	Audit    *audit.Recorder
}

// Handler wires HTTP session endpoints to the login and session services.
type Handler struct {
	log  *slog.Logger
	cfg  Config
	deps Deps
	now  func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, deps Deps) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if deps.Login == nil || deps.Sessions == nil || deps.Users == nil || deps.Gate == nil || deps.Limits == nil {
		return nil, errors.New("api: missing dependency")
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewRecorder(log)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Handler{
		log:  log,
		cfg:  cfg,
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register wires routes onto r. The rate limiter runs before anything else
// on the public endpoints; protected endpoints sit behind the gate.
func (h *Handler) Register(r chi.Router) {
	limit := h.deps.Limits.Middleware

	r.With(limit(ratelimit.EndpointLogin)).Post("/session", h.handleLogin)
	r.With(limit(ratelimit.EndpointRefresh)).Post("/session/refresh", h.handleRefresh)
	r.With(limit(ratelimit.EndpointLogout)).Post("/session/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.deps.Gate.Require)
		r.Post("/session/logout_all", h.handleLogoutAll)
		r.Get("/session/me", h.handleMe)

		r.With(h.deps.Gate.RequireRole(identity.RoleAdmin)).
			Post("/admin/users/{id}/sessions/revoke", h.handleAdminRevoke)
	})
}

// RateLimitAuditHook records login rate-limit rejections.
func RateLimitAuditHook(rec *audit.Recorder, trustProxy bool) func(*http.Request, string, ratelimit.Decision) {
	return func(r *http.Request, endpoint string, d ratelimit.Decision) {
		if endpoint != ratelimit.EndpointLogin {
			return
		}
		rec.Record(r.Context(), audit.Event{
			Action:    audit.LoginRateLimited,
			IP:        ratelimit.ClientIP(r, trustProxy),
			UserAgent: strings.TrimSpace(r.UserAgent()),
			Meta:      map[string]any{"retry_after_s": int(d.RetryAfter.Seconds())},
		})
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	dev := h.device(r, req.Platform, req.RememberMe)

	res, err := h.deps.Login.Login(ctx, h.now(), login.Credentials{Email: req.Email, Password: req.Password}, dev)
	if err != nil {
		if errors.Is(err, autherr.ErrAuthenticationFailed) {
			h.deps.Audit.Record(ctx, audit.Event{
				Action:    audit.LoginFailed,
				IP:        dev.IP,
				UserAgent: dev.UserAgent,
				Meta:      map[string]any{"reason": autherr.Label(err)},
			})
		}
		h.writeFailure(w, err, "auth.login.fail", "invalid_credentials", "invalid credentials")
		return
	}

	h.deps.Audit.Record(ctx, audit.Event{
		Action:    audit.LoginSuccess,
		UserID:    res.User.ID,
		SessionID: res.Session.SessionID,
		IP:        dev.IP,
		UserAgent: dev.UserAgent,
		Meta:      map[string]any{"platform": string(dev.Platform)},
	})

	resp, ok := h.sessionBody(w, res.Session, h.useWebCookies(dev.Platform), "auth.login")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: toUserResponse(res.User), Session: resp})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	presented := strings.TrimSpace(req.RefreshToken)
	fromCookie := false
	if presented == "" {
		presented, fromCookie = h.refreshTokenFromCookie(r)
	}
	if presented == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired session")
		return
	}
	if fromCookie && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	platform := req.Platform
	if fromCookie && platform == "" {
		platform = string(session.PlatformWeb)
	}
	dev := h.device(r, platform, req.RememberMe)

	issued, err := h.deps.Sessions.RotateRefresh(ctx, h.now(), presented, dev)
	if err != nil {
		if errors.Is(err, autherr.ErrAuthenticationFailed) {
			action := audit.RefreshFailed
			if errors.Is(err, autherr.ErrReplaySuspected) {
				action = audit.RefreshReuse
			}
			h.deps.Audit.Record(ctx, audit.Event{
				Action:    action,
				IP:        dev.IP,
				UserAgent: dev.UserAgent,
				Meta:      map[string]any{"reason": autherr.Label(err)},
			})
			if fromCookie {
				h.clearWebSessionCookies(w)
			}
		}
		h.writeFailure(w, err, "auth.refresh.fail", "unauthorized", "invalid or expired session")
		return
	}

	h.deps.Audit.Record(ctx, audit.Event{
		Action:    audit.RefreshSuccess,
		SessionID: issued.SessionID,
		IP:        dev.IP,
		UserAgent: dev.UserAgent,
	})

	resp, ok := h.sessionBody(w, issued, fromCookie || h.useWebCookies(dev.Platform), "auth.refresh")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Session: resp})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	presented := strings.TrimSpace(req.RefreshToken)
	if presented == "" {
		presented, _ = h.refreshTokenFromCookie(r)
	}

	ctx := r.Context()
	if err := h.deps.Sessions.Revoke(ctx, h.now(), presented); err != nil {
		h.writeFailure(w, err, "auth.logout.fail", "unauthorized", "invalid session")
		return
	}

	if presented != "" {
		h.deps.Audit.Record(ctx, audit.Event{
			Action:    audit.Logout,
			IP:        h.clientIP(r),
			UserAgent: strings.TrimSpace(r.UserAgent()),
		})
	}
	h.clearWebSessionCookies(w)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := gate.IdentityFrom(r.Context())

	ctx := r.Context()
	n, err := h.deps.Sessions.RevokeAll(ctx, h.now(), id.OwnerID, session.ReasonLogoutAll)
	if err != nil {
		h.writeFailure(w, err, "auth.logout_all.fail", "unauthorized", "invalid session")
		return
	}

	h.deps.Audit.Record(ctx, audit.Event{
		Action:    audit.LogoutAll,
		UserID:    id.OwnerID,
		SessionID: id.SessionID,
		IP:        h.clientIP(r),
		UserAgent: strings.TrimSpace(r.UserAgent()),
		Meta:      map[string]any{"revoked": n},
	})
	h.clearWebSessionCookies(w)
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Revoked: &n})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := gate.IdentityFrom(r.Context())

	u, err := h.deps.Users.UserByID(r.Context(), id.OwnerID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		h.log.Error("auth.me.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: toUserResponse(u)})
}

func (h *Handler) handleAdminRevoke(w http.ResponseWriter, r *http.Request) {
	admin, _ := gate.IdentityFrom(r.Context())
	target := strings.TrimSpace(chi.URLParam(r, "id"))
	if target == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user id is required")
		return
	}

	ctx := r.Context()
	n, err := h.deps.Sessions.RevokeAll(ctx, h.now(), target, session.ReasonAdmin)
	if err != nil {
		h.writeFailure(w, err, "auth.admin.revoke.fail", "invalid_request", "invalid request")
		return
	}

	h.deps.Audit.Record(ctx, audit.Event{
		Action: audit.AdminRevokeSessions,
		UserID: admin.OwnerID,
		IP:     h.clientIP(r),
		Meta:   map[string]any{"target_user_id": target, "revoked": n},
	})
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Revoked: &n})
}

// sessionBody builds the session part of a response. For cookie transport
// the tokens move into cookies and are blanked from the body.
func (h *Handler) sessionBody(w http.ResponseWriter, issued session.Issued, cookies bool, event string) (sessionResponse, bool) {
	resp := toSessionResponse(issued)
	if !cookies {
		return resp, true
	}

	csrf, err := h.setWebSessionCookies(w, issued)
	if err != nil {
		h.log.Error(event+".web_cookie.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return sessionResponse{}, false
	}
	resp.AccessToken = ""
	resp.RefreshToken = ""
	resp.CSRFToken = csrf
	return resp, true
}

// writeFailure maps an error kind to a status. Authentication failures all
// share one body so callers cannot tell the reasons apart.
func (h *Handler) writeFailure(w http.ResponseWriter, err error, event, authCode, authMsg string) {
	switch autherr.KindOf(err) {
	case autherr.ErrValidation:
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request")
	case autherr.ErrAuthenticationFailed:
		h.log.Info(event, "reason", autherr.Label(err))
		writeError(w, http.StatusUnauthorized, authCode, authMsg)
	case autherr.ErrRateLimited:
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func (h *Handler) device(r *http.Request, platform string, rememberMe bool) session.DeviceContext {
	return session.DeviceContext{
		Platform:   session.ParsePlatform(platform),
		RememberMe: rememberMe,
		UserAgent:  strings.TrimSpace(r.UserAgent()),
		IP:         h.clientIP(r),
	}
}

func (h *Handler) clientIP(r *http.Request) net.IP {
	return ratelimit.ClientIP(r, h.cfg.TrustProxy)
}
