package session

import (
	"fmt"
	"time"

	"sessiond/cmd/identity"
)

// Subject is what an access token vouches for.
type Subject struct {
	OwnerID   string
	Role      identity.Role
	SessionID string
}

// AccessClaims is the verified content of an access token.
type AccessClaims struct {
	OwnerID   string
	Role      identity.Role
	SessionID string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

// AccessTokenManager issues and verifies short-lived access tokens.
//
// Verify failures are *autherr.Error values of kind ErrAuthenticationFailed
// with reason ErrBadSignature, ErrExpired or ErrMalformed.
type AccessTokenManager interface {
	Issue(sub Subject, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
}

// maxAccessTokenLen bounds input before any decoding work.
const maxAccessTokenLen = 8192

// NewAccessTokenManager builds the manager selected by cfg.AccessTokenFormat.
func NewAccessTokenManager(cfg Config) (AccessTokenManager, error) {
	switch cfg.AccessTokenFormat {
	case FormatJWT, "":
		return NewJWTManager(cfg)
	case FormatPaseto:
		return NewPasetoV4PublicManager(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown access token format %q", ErrConfig, cfg.AccessTokenFormat)
	}
}
