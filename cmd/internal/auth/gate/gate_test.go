package gate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/session"
)

type tokenVerifier struct {
	session.AccessTokenManager
}

func (v tokenVerifier) VerifyAccess(token string, now time.Time) (session.AccessClaims, error) {
	return v.Verify(token, now)
}

func newTestGate(t *testing.T, now time.Time) (*Gate, session.AccessTokenManager) {
	t.Helper()

	cfg := session.DefaultConfig()
	cfg.SigningKey = []byte(strings.Repeat("k", 32))
	mgr, err := session.NewJWTManager(cfg)
	require.NoError(t, err)

	return New(tokenVerifier{mgr}, WithClock(func() time.Time { return now })), mgr
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(id.OwnerID + "|" + id.Role.String() + "|" + id.SessionID))
	})
}

func issue(t *testing.T, mgr session.AccessTokenManager, role identity.Role, now time.Time) string {
	t.Helper()
	tok, _, err := mgr.Issue(session.Subject{OwnerID: "u1", Role: role, SessionID: "s1"}, now)
	require.NoError(t, err)
	return tok
}

func TestRequire_BearerBindsIdentity(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	g, mgr := newTestGate(t, now)

	req := httptest.NewRequest(http.MethodGet, "/session/me", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, mgr, identity.RoleStandard, now))
	rec := httptest.NewRecorder()

	g.Require(echoIdentity()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1|user|s1", rec.Body.String())
}

func TestRequire_CookieCarrier(t *testing.T) {
	now := time.Now().UTC()
	g, mgr := newTestGate(t, now)

	req := httptest.NewRequest(http.MethodGet, "/session/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: issue(t, mgr, identity.RoleAdmin, now)})
	rec := httptest.NewRecorder()

	g.Require(echoIdentity()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1|admin|s1", rec.Body.String())
}

func TestRequire_FailuresAreIndistinguishable(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	g, mgr := newTestGate(t, now)

	valid := issue(t, mgr, identity.RoleStandard, now)
	expired := issue(t, mgr, identity.RoleStandard, now.Add(-time.Hour))
	tampered := valid[:len(valid)-2] + "xx"

	cases := map[string]func(*http.Request){
		"missing":   func(*http.Request) {},
		"malformed": func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-token") },
		"expired":   func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) },
		"tampered":  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tampered) },
		"scheme":    func(r *http.Request) { r.Header.Set("Authorization", "Basic "+valid) },
	}

	var bodies []string
	for name, mutate := range cases {
		req := httptest.NewRequest(http.MethodGet, "/session/me", nil)
		mutate(req)
		rec := httptest.NewRecorder()

		g.Require(echoIdentity()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"), name)
		bodies = append(bodies, rec.Body.String())
	}
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
	assert.Contains(t, bodies[0], `"code":"unauthorized"`)
}

func TestRequire_RejectHookSeesReason(t *testing.T) {
	now := time.Now().UTC()
	var reasons []string
	cfg := session.DefaultConfig()
	cfg.SigningKey = []byte(strings.Repeat("k", 32))
	mgr, err := session.NewJWTManager(cfg)
	require.NoError(t, err)

	g := New(tokenVerifier{mgr},
		WithClock(func() time.Time { return now }),
		WithRejectHook(func(r string) { reasons = append(reasons, r) }),
	)

	expired := issue(t, mgr, identity.RoleStandard, now.Add(-time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	g.Require(echoIdentity()).ServeHTTP(httptest.NewRecorder(), req)

	g.Require(echoIdentity()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"expired", "missing"}, reasons)
}

func TestRequireRole(t *testing.T) {
	now := time.Now().UTC()
	g, mgr := newTestGate(t, now)
	h := g.Require(g.RequireRole(identity.RoleAdmin)(echoIdentity()))

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, mgr, identity.RoleStandard, now))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+issue(t, mgr, identity.RoleAdmin, now))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_WithoutRequire(t *testing.T) {
	g, _ := newTestGate(t, time.Now())

	rec := httptest.NewRecorder()
	g.RequireRole(identity.RoleStandard)(echoIdentity()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":               "",
		"Bearer":         "",
		"Bearer abc":     "abc",
		"bearer   abc  ": "abc",
		"Token abc":      "",
		"Bearer a b":     "a b",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(req), header)
	}
}
