package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/autherr"
)

const minSigningKeyBytes = 32

type jwtClaims struct {
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type jwtManager struct {
	issuer string
	ttl    time.Duration
	key    []byte
}

// NewJWTManager builds an HS256 AccessTokenManager.
func NewJWTManager(cfg Config) (AccessTokenManager, error) {
	if len(cfg.SigningKey) < minSigningKeyBytes {
		return nil, ErrConfig
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &jwtManager{issuer: cfg.Issuer, ttl: cfg.AccessTokenTTL, key: key}, nil
}

func (m *jwtManager) Issue(sub Subject, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)

	claims := jwtClaims{
		Role:      sub.Role.String(),
		SessionID: sub.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   sub.OwnerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	// NumericDate has second precision; report what the token actually says.
	return signed, claims.ExpiresAt.Time, nil
}

func (m *jwtManager) Verify(token string, now time.Time) (AccessClaims, error) {
	const op = "session.VerifyAccess"

	if token == "" || len(token) > maxAccessTokenLen {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}

	// Fresh parser per call; options are cheap and carry the verification clock.
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims jwtClaims
	_, err := p.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return m.key, nil })
	if err != nil {
		return AccessClaims{}, autherr.New(op, autherr.ErrAuthenticationFailed, jwtReason(err), err)
	}

	role := identity.ParseRole(claims.Role)
	if claims.Subject == "" || claims.SessionID == "" || !role.Valid() || claims.IssuedAt == nil {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}

	return AccessClaims{
		OwnerID:   claims.Subject,
		Role:      role,
		SessionID: claims.SessionID,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Issuer:    claims.Issuer,
	}, nil
}

func jwtReason(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return autherr.ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return autherr.ErrExpired
	default:
		return autherr.ErrMalformed
	}
}
