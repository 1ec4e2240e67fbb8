// Package login verifies credentials and opens sessions.
//
// Unknown accounts and wrong passwords are indistinguishable to callers: both
// cost one password verification and both fail with the same error kind.
package login

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/internal/auth/autherr"
	"sessiond/cmd/internal/auth/session"
	"sessiond/cmd/security/password"
)

// dummyPassword is hashed once at startup and verified whenever the account
// does not exist.
const dummyPassword = "sessiond-dummy-password-for-timing"

// Credentials is a login attempt.
type Credentials struct {
	Email    string
	Password string
}

// Result is a successful login.
type Result struct {
	User    identity.User
	Session session.Issued
}

// SessionIssuer opens a session for an authenticated user.
type SessionIssuer interface {
	IssueSession(ctx context.Context, now time.Time, user identity.User, dev session.DeviceContext) (session.Issued, error)
}

// Issuer runs the login flow.
type Issuer struct {
	users     identity.Store
	sessions  SessionIssuer
	passwords password.Config
	dummyHash string
	timeout   time.Duration
	log       *slog.Logger
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(i *Issuer) {
		if log != nil {
			i.log = log
		}
	}
}

// WithTimeout bounds the credential lookup. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(i *Issuer) {
		i.timeout = d
	}
}

// NewIssuer builds an Issuer and precomputes the dummy hash.
func NewIssuer(users identity.Store, sessions SessionIssuer, passwords password.Config, opts ...Option) (*Issuer, error) {
	if users == nil || sessions == nil {
		return nil, errors.New("login: nil dependency")
	}

	dummy, err := passwords.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	i := &Issuer{
		users:     users,
		sessions:  sessions,
		passwords: passwords,
		dummyHash: dummy,
		timeout:   session.DefaultConfig().OpTimeout,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i, nil
}

// Login verifies creds and issues a session.
//
// Failures are *autherr.Error values: ErrValidation for missing or oversized
// input, ErrAuthenticationFailed for any credential mismatch and
// ErrPersistence when the user store or ledger is unavailable.
func (i *Issuer) Login(ctx context.Context, now time.Time, creds Credentials, dev session.DeviceContext) (Result, error) {
	const op = "login.Login"

	email := identity.NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return Result{}, autherr.Validation(op, "email and password are required")
	}
	if len(email) > identity.MaxEmailLength || len(creds.Password) > password.MaxInputBytes {
		return Result{}, autherr.Validation(op, "input too long")
	}
	if !identity.ValidEmail(email) {
		return Result{}, autherr.Validation(op, "invalid email")
	}

	ua, err := i.lookup(ctx, email)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, autherr.New(op, autherr.ErrPersistence, autherr.ErrTimeout, err)
		}
		if !identity.IsNotFound(err) {
			return Result{}, autherr.Persistence(op, err)
		}
		_, _ = i.passwords.Verify(i.dummyHash, creds.Password)
		return Result{}, autherr.Rejected(op, autherr.ErrUnknownUser)
	}

	ok, err := i.passwords.Verify(ua.PasswordHash, creds.Password)
	if err != nil {
		i.log.Error("auth.login.hash_invalid", "user_id", ua.ID, "err", err)
		return Result{}, autherr.New(op, autherr.ErrAuthenticationFailed, autherr.ErrBadCredentials, err)
	}
	if !ok {
		return Result{}, autherr.Rejected(op, autherr.ErrBadCredentials)
	}
	if !ua.Role.Valid() {
		return Result{}, autherr.Rejected(op, autherr.ErrUnknownUser)
	}
	if i.passwords.NeedsRehash(ua.PasswordHash) {
		i.log.Info("auth.login.rehash_needed", "user_id", ua.ID)
	}

	issued, err := i.sessions.IssueSession(ctx, now, ua.User, dev)
	if err != nil {
		return Result{}, err
	}
	return Result{User: ua.User, Session: issued}, nil
}

func (i *Issuer) lookup(ctx context.Context, email string) (identity.UserAuth, error) {
	if i.timeout <= 0 {
		return i.users.UserAuthByEmail(ctx, email)
	}
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()
	return i.users.UserAuthByEmail(ctx, email)
}
