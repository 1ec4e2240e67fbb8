package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls HTTP transport details of the session endpoints.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// WebCookies delivers tokens to platform=web clients as cookies
	// instead of response fields.
	WebCookies        bool
	RefreshCookieName string
	AccessCookieName  string
	RefreshCookiePath string
	AccessCookiePath  string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	// CSRF double-submit for cookie-borne refresh requests.
	CSRFEnabled    bool
	CSRFCookieName string
	CSRFHeaderName string
}

// DefaultConfig returns secure defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      64 << 10,
		WebCookies:        true,
		RefreshCookieName: "refresh_token",
		AccessCookieName:  "access_token",
		RefreshCookiePath: "/session",
		AccessCookiePath:  "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
		CSRFEnabled:       true,
		CSRFCookieName:    "csrf_token",
		CSRFHeaderName:    "X-CSRF-Token",
	}
}

// LoadConfigFromEnv loads transport config from SESSIOND_* variables.
// Invalid values fall back to defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:        envBool("SESSIOND_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("SESSIOND_MAX_BODY_BYTES", def.MaxBodyBytes),
		WebCookies:        envBool("SESSIOND_WEB_COOKIES", def.WebCookies),
		RefreshCookieName: envString("SESSIOND_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		AccessCookieName:  envString("SESSIOND_ACCESS_COOKIE_NAME", def.AccessCookieName),
		RefreshCookiePath: envString("SESSIOND_REFRESH_COOKIE_PATH", def.RefreshCookiePath),
		AccessCookiePath:  envString("SESSIOND_ACCESS_COOKIE_PATH", def.AccessCookiePath),
		CookieDomain:      envString("SESSIOND_COOKIE_DOMAIN", ""),
		CookieSecure:      envBool("SESSIOND_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite:    parseSameSite(os.Getenv("SESSIOND_COOKIE_SAMESITE"), def.CookieSameSite),
		CSRFEnabled:       envBool("SESSIOND_CSRF_ENABLED", def.CSRFEnabled),
		CSRFCookieName:    envString("SESSIOND_CSRF_COOKIE_NAME", def.CSRFCookieName),
		CSRFHeaderName:    envString("SESSIOND_CSRF_HEADER_NAME", def.CSRFHeaderName),
	}

	// SameSite=None is rejected by browsers without Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode && !cfg.CookieSecure {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	return cfg
}

func parseSameSite(v string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return def
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
