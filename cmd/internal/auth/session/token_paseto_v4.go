package session

import (
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/autherr"
)

type pasetoV4PublicManager struct {
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds an AccessTokenManager based on PASETO v4.public.
//
// It uses an Ed25519 keypair and enforces issuer and expiration rules. Clock
// skew is applied during verification via ValidAt.
func NewPasetoV4PublicManager(cfg Config) (AccessTokenManager, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
	if err != nil {
		return nil, ErrConfig
	}

	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		ttl:       cfg.AccessTokenTTL,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

// PublicKeyHex exports the verification key for other services.
func (m *pasetoV4PublicManager) PublicKeyHex() string {
	return m.public.ExportHex()
}

func (m *pasetoV4PublicManager) Issue(sub Subject, now time.Time) (string, time.Time, error) {
	// Time claims are RFC 3339 with second precision.
	exp := now.Add(m.ttl).Truncate(time.Second)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetSubject(sub.OwnerID)
	tok.SetJti(uuid.NewString())
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)

	if err := tok.Set("role", sub.Role.String()); err != nil {
		return "", time.Time{}, err
	}
	if err := tok.Set("sid", sub.SessionID); err != nil {
		return "", time.Time{}, err
	}

	return tok.V4Sign(m.secret, nil), exp, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (AccessClaims, error) {
	const op = "session.VerifyAccess"

	if token == "" || len(token) > maxAccessTokenLen || !strings.HasPrefix(token, "v4.public.") {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}

	// Signature first, with no time rules, so the reason is accurate.
	p := paseto.NewParserWithoutExpiryCheck()
	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return AccessClaims{}, autherr.New(op, autherr.ErrAuthenticationFailed, autherr.ErrBadSignature, err)
	}

	iss, _ := parsed.GetIssuer()
	if iss != m.issuer {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}
	exp, err := parsed.GetExpiration()
	if err != nil {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}
	if !now.Before(exp) {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrExpired)
	}
	if nbf, err := parsed.GetNotBefore(); err == nil && now.Add(m.clockSkew).Before(nbf) {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}
	iat, err := parsed.GetIssuedAt()
	if err != nil {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}
	sid, err := parsed.GetString("sid")
	if err != nil || sid == "" {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}
	roleName, err := parsed.GetString("role")
	role := identity.ParseRole(roleName)
	if err != nil || !role.Valid() {
		return AccessClaims{}, autherr.Rejected(op, autherr.ErrMalformed)
	}
	jti, _ := parsed.GetJti()

	return AccessClaims{
		OwnerID:   sub,
		Role:      role,
		SessionID: sid,
		TokenID:   jti,
		IssuedAt:  iat,
		ExpiresAt: exp,
		Issuer:    iss,
	}, nil
}
