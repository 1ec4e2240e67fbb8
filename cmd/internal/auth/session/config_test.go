package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSIOND_TOKEN_HMAC_KEY", strings.Repeat("h", 32))
	t.Setenv("SESSIOND_JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("SESSIOND_ACCESS_TOKEN_FORMAT", "")
}

func TestLoadConfigFromEnv_RevokeOnReuseOffByDefault(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_REVOKE_ON_REUSE", "")
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.RevokeOnReuse {
		t.Fatalf("revoke-on-reuse must be opt-in")
	}
}

func TestLoadConfigFromEnv_MissingHMACKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_TOKEN_HMAC_KEY", "")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on missing hmac key, got %v", err)
	}
}

func TestLoadConfigFromEnv_ShortSigningKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_JWT_SECRET", "short")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig on short signing key, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_AUTH_ACCESS_TTL", "-5m")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for negative duration, got %v", err)
	}
}

func TestLoadConfigFromEnv_AccessTTLMustBeShorterThanRefresh(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_AUTH_ACCESS_TTL", "200h")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for access ttl >= refresh ttl, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidRefreshTokenBytes(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_AUTH_REFRESH_TOKEN_BYTES", "16")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for small refresh bytes, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidNativeTTLOrder(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_AUTH_REFRESH_TTL_NATIVE", "24h")
	t.Setenv("SESSIOND_AUTH_REFRESH_TTL_NATIVE_SHORT", "72h")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for native ttl order, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidRevokeOnReuse(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_REVOKE_ON_REUSE", "sometimes")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for bad bool, got %v", err)
	}
}

func TestLoadConfigFromEnv_UnknownFormat(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_ACCESS_TOKEN_FORMAT", "saml")
	_, err := LoadConfigFromEnv()
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for unknown format, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_AUTH_ISSUER", "sessiond-test")
	t.Setenv("SESSIOND_AUTH_ACCESS_TTL", "10m")
	t.Setenv("SESSIOND_AUTH_REFRESH_TTL", "48h")
	t.Setenv("SESSIOND_AUTH_REFRESH_TTL_NATIVE", "720h")
	t.Setenv("SESSIOND_AUTH_REFRESH_TTL_NATIVE_SHORT", "168h")
	t.Setenv("SESSIOND_AUTH_CLOCK_SKEW", "45s")
	t.Setenv("SESSIOND_AUTH_REFRESH_TOKEN_BYTES", "48")
	t.Setenv("SESSIOND_REVOKE_ON_REUSE", "true")
	t.Setenv("SESSIOND_SESSION_CLEANUP_INTERVAL", "0")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}

	if cfg.Issuer != "sessiond-test" {
		t.Fatalf("issuer mismatch: %q", cfg.Issuer)
	}
	if cfg.AccessTokenTTL != 10*time.Minute {
		t.Fatalf("access ttl mismatch: %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTTL != 48*time.Hour {
		t.Fatalf("refresh ttl mismatch: %v", cfg.RefreshTTL)
	}
	if cfg.RefreshTTLNative != 720*time.Hour || cfg.RefreshTTLNativeShort != 168*time.Hour {
		t.Fatalf("native ttl mismatch: %v / %v", cfg.RefreshTTLNative, cfg.RefreshTTLNativeShort)
	}
	if cfg.ClockSkew != 45*time.Second {
		t.Fatalf("clock skew mismatch: %v", cfg.ClockSkew)
	}
	if cfg.RefreshTokenBytes != 48 {
		t.Fatalf("refresh bytes mismatch: %d", cfg.RefreshTokenBytes)
	}
	if !cfg.RevokeOnReuse {
		t.Fatalf("expected revoke-on-reuse enabled")
	}
	if cfg.CleanupInterval != 0 {
		t.Fatalf("expected cleanup disabled, got %v", cfg.CleanupInterval)
	}
	if cfg.AccessTokenFormat != FormatJWT {
		t.Fatalf("expected default format jwt, got %q", cfg.AccessTokenFormat)
	}
}

func TestLoadConfigFromEnv_Paseto(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSIOND_JWT_SECRET", "")
	t.Setenv("SESSIOND_ACCESS_TOKEN_FORMAT", "PASETO")
	t.Setenv("SESSIOND_PASETO_V4_SECRET_KEY_HEX", paseto.NewV4AsymmetricSecretKey().ExportHex())

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenFormat != FormatPaseto {
		t.Fatalf("expected paseto, got %q", cfg.AccessTokenFormat)
	}
}

func TestConfig_RefreshTTLByPlatform(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		dev  DeviceContext
		want time.Duration
	}{
		{DeviceContext{Platform: PlatformWeb}, cfg.RefreshTTL},
		{DeviceContext{Platform: PlatformWeb, RememberMe: true}, cfg.RefreshTTL},
		{DeviceContext{Platform: PlatformUnknown}, cfg.RefreshTTL},
		{DeviceContext{Platform: PlatformIOS}, cfg.RefreshTTLNativeShort},
		{DeviceContext{Platform: PlatformAndroid, RememberMe: true}, cfg.RefreshTTLNative},
		{DeviceContext{Platform: PlatformDesktop, RememberMe: true}, cfg.RefreshTTLNative},
	}
	for _, tc := range tests {
		if got := cfg.refreshTTL(tc.dev); got != tc.want {
			t.Fatalf("refreshTTL(%+v) = %v, want %v", tc.dev, got, tc.want)
		}
	}
}
