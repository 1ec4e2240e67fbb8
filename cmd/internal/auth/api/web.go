package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/token"
)

func (h *Handler) useWebCookies(platform session.Platform) bool {
	return h.cfg.WebCookies && platform == session.PlatformWeb
}

// setWebSessionCookies moves both tokens of issued into cookies and returns
// the CSRF value the client must echo on cookie-borne refresh.
func (h *Handler) setWebSessionCookies(w http.ResponseWriter, issued session.Issued) (string, error) {
	var csrf string
	if h.cfg.CSRFEnabled {
		v, err := token.NewOpaque(32)
		if err != nil {
			return "", err
		}
		csrf = v
		h.setCookie(w, h.cfg.CSRFCookieName, csrf, h.cfg.RefreshCookiePath, issued.RefreshExp, false)
	}
	h.setCookie(w, h.cfg.RefreshCookieName, issued.RefreshToken, h.cfg.RefreshCookiePath, issued.RefreshExp, true)
	h.setCookie(w, h.cfg.AccessCookieName, issued.AccessToken, h.cfg.AccessCookiePath, issued.AccessExp, true)
	return csrf, nil
}

func (h *Handler) clearWebSessionCookies(w http.ResponseWriter) {
	if !h.cfg.WebCookies {
		return
	}
	h.expireCookie(w, h.cfg.RefreshCookieName, h.cfg.RefreshCookiePath, true)
	h.expireCookie(w, h.cfg.AccessCookieName, h.cfg.AccessCookiePath, true)
	if h.cfg.CSRFEnabled {
		h.expireCookie(w, h.cfg.CSRFCookieName, h.cfg.RefreshCookiePath, false)
	}
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	if !h.cfg.WebCookies {
		return "", false
	}
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}

func (h *Handler) csrfDoubleSubmitValid(r *http.Request) bool {
	if !h.cfg.CSRFEnabled {
		return true
	}
	c, err := r.Cookie(h.cfg.CSRFCookieName)
	if err != nil {
		return false
	}
	cv := strings.TrimSpace(c.Value)
	hv := strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName))
	if cv == "" || hv == "" {
		return false
	}
	return secureStringEqual(cv, hv)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value, path string, exp time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name, path string, httpOnly bool) {
	if strings.TrimSpace(name) == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func secureStringEqual(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
