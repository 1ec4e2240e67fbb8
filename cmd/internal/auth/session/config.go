package session

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sessiond/cmd/security/token"
)

// Access token formats.
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

// Config defines all runtime configuration for the session subsystem.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// Refresh token TTL policies per platform. RefreshTTL covers web and
	// unknown clients.
	RefreshTTL            time.Duration
	RefreshTTLNative      time.Duration
	RefreshTTLNativeShort time.Duration

	// ClockSkew is tolerated on not-before checks of PASETO tokens.
	ClockSkew time.Duration

	// RefreshTokenBytes is the entropy of opaque refresh tokens.
	RefreshTokenBytes int

	// AccessTokenFormat is FormatJWT or FormatPaseto.
	AccessTokenFormat string

	// SigningKey is the HS256 secret for JWT access tokens.
	SigningKey []byte

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key for PASETO v4.public.
	PasetoV4SecretKeyHex string

	// RefreshHashKey keys the HMAC applied to refresh tokens before storage.
	RefreshHashKey []byte

	// RevokeOnReuse revokes every live record of an owner when one of its
	// revoked records is presented again. Off by default: a replay is only
	// rejected and the successor keeps working.
	RevokeOnReuse bool

	// OpTimeout bounds every ledger operation.
	OpTimeout time.Duration

	// CleanupInterval and CleanupRetention drive the expiry janitor.
	// A zero interval disables it.
	CleanupInterval  time.Duration
	CleanupRetention time.Duration
}

// DefaultConfig returns defaults. Keys are left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Issuer:                "sessiond",
		AccessTokenTTL:        15 * time.Minute,
		RefreshTTL:            7 * 24 * time.Hour,
		RefreshTTLNative:      30 * 24 * time.Hour,
		RefreshTTLNativeShort: 7 * 24 * time.Hour,
		ClockSkew:             30 * time.Second,
		RefreshTokenBytes:     32,
		AccessTokenFormat:     FormatJWT,
		RevokeOnReuse:         false,
		OpTimeout:             5 * time.Second,
		CleanupInterval:       time.Hour,
		CleanupRetention:      24 * time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - SESSIOND_TOKEN_HMAC_KEY (>= 32 bytes)
//   - SESSIOND_JWT_SECRET (>= 32 bytes) when SESSIOND_ACCESS_TOKEN_FORMAT=jwt (default)
//   - SESSIOND_PASETO_V4_SECRET_KEY_HEX when SESSIOND_ACCESS_TOKEN_FORMAT=paseto
//
// Optional (durations must be valid Go duration strings):
//   - SESSIOND_AUTH_ISSUER
//   - SESSIOND_AUTH_ACCESS_TTL
//   - SESSIOND_AUTH_REFRESH_TTL
//   - SESSIOND_AUTH_REFRESH_TTL_NATIVE
//   - SESSIOND_AUTH_REFRESH_TTL_NATIVE_SHORT
//   - SESSIOND_AUTH_CLOCK_SKEW
//   - SESSIOND_AUTH_REFRESH_TOKEN_BYTES
//   - SESSIOND_AUTH_OP_TIMEOUT
//   - SESSIOND_REVOKE_ON_REUSE
//   - SESSIOND_SESSION_CLEANUP_INTERVAL
//   - SESSIOND_SESSION_CLEANUP_RETENTION
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("SESSIOND_AUTH_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	durations := []struct {
		key      string
		dst      *time.Duration
		allowNil bool
	}{
		{"SESSIOND_AUTH_ACCESS_TTL", &cfg.AccessTokenTTL, false},
		{"SESSIOND_AUTH_REFRESH_TTL", &cfg.RefreshTTL, false},
		{"SESSIOND_AUTH_REFRESH_TTL_NATIVE", &cfg.RefreshTTLNative, false},
		{"SESSIOND_AUTH_REFRESH_TTL_NATIVE_SHORT", &cfg.RefreshTTLNativeShort, false},
		{"SESSIOND_AUTH_CLOCK_SKEW", &cfg.ClockSkew, true},
		{"SESSIOND_AUTH_OP_TIMEOUT", &cfg.OpTimeout, false},
		{"SESSIOND_SESSION_CLEANUP_INTERVAL", &cfg.CleanupInterval, true},
		{"SESSIOND_SESSION_CLEANUP_RETENTION", &cfg.CleanupRetention, true},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allowNil) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfig, d.key)
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("SESSIOND_AUTH_REFRESH_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: SESSIOND_AUTH_REFRESH_TOKEN_BYTES", ErrConfig)
		}
		cfg.RefreshTokenBytes = n
	}

	if v := strings.TrimSpace(os.Getenv("SESSIOND_REVOKE_ON_REUSE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: SESSIOND_REVOKE_ON_REUSE", ErrConfig)
		}
		cfg.RevokeOnReuse = b
	}

	if v := strings.TrimSpace(os.Getenv("SESSIOND_ACCESS_TOKEN_FORMAT")); v != "" {
		cfg.AccessTokenFormat = strings.ToLower(v)
	}

	cfg.SigningKey = []byte(strings.TrimSpace(os.Getenv("SESSIOND_JWT_SECRET")))
	cfg.PasetoV4SecretKeyHex = strings.TrimSpace(os.Getenv("SESSIOND_PASETO_V4_SECRET_KEY_HEX"))
	cfg.RefreshHashKey = []byte(strings.TrimSpace(os.Getenv("SESSIOND_TOKEN_HMAC_KEY")))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants every constructor in this package relies on.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Issuer) == "":
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	case c.AccessTokenTTL <= 0, c.RefreshTTL <= 0, c.RefreshTTLNative <= 0, c.RefreshTTLNativeShort <= 0:
		return fmt.Errorf("%w: token TTLs must be positive", ErrConfig)
	case c.AccessTokenTTL >= c.RefreshTTL:
		return fmt.Errorf("%w: access TTL must be shorter than refresh TTL", ErrConfig)
	case c.RefreshTTLNative < c.RefreshTTLNativeShort:
		return fmt.Errorf("%w: native refresh TTL shorter than native short TTL", ErrConfig)
	case c.ClockSkew < 0 || c.ClockSkew >= c.AccessTokenTTL:
		return fmt.Errorf("%w: clock skew out of range", ErrConfig)
	case c.RefreshTokenBytes < 32 || c.RefreshTokenBytes > 64:
		return fmt.Errorf("%w: refresh token bytes out of range [32..64]", ErrConfig)
	case c.OpTimeout <= 0:
		return fmt.Errorf("%w: op timeout must be positive", ErrConfig)
	case len(c.RefreshHashKey) < token.MinHMACKeyBytes:
		return fmt.Errorf("%w: refresh hash key must be at least %d bytes", ErrConfig, token.MinHMACKeyBytes)
	}

	switch c.AccessTokenFormat {
	case FormatJWT:
		if len(c.SigningKey) < minSigningKeyBytes {
			return fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfig, minSigningKeyBytes)
		}
	case FormatPaseto:
		raw, err := hex.DecodeString(c.PasetoV4SecretKeyHex)
		if err != nil || len(raw) != 64 {
			return fmt.Errorf("%w: paseto secret key must be 64 hex-encoded bytes", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown access token format %q", ErrConfig, c.AccessTokenFormat)
	}

	return nil
}

func (c Config) refreshTTL(dev DeviceContext) time.Duration {
	switch dev.Platform {
	case PlatformIOS, PlatformAndroid, PlatformDesktop:
		if dev.RememberMe {
			return c.RefreshTTLNative
		}
		return c.RefreshTTLNativeShort
	default:
		return c.RefreshTTL
	}
}
