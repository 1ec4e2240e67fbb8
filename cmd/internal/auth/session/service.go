package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"sessiond/cmd/identity"
	"sessiond/cmd/identity/ids"
	"sessiond/cmd/internal/auth/autherr"
	"sessiond/cmd/security/token"
)

const (
	// maxInsertAttempts bounds re-rolls after a token hash collision.
	maxInsertAttempts = 3
	// maxRefreshTokenLen is a sanity bound on presented refresh tokens.
	maxRefreshTokenLen = 4096
)

// UserDirectory resolves the current owner of a ledger record during rotation.
type UserDirectory interface {
	UserByID(ctx context.Context, id string) (identity.User, error)
}

// Service implements login issuance, refresh rotation, logout and access
// token verification on top of a Store and an AccessTokenManager.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
	store  Store
	users  UserDirectory
	hasher *token.Hasher
	log    *slog.Logger
}

// Issued is the result of issuing or rotating a session.
type Issued struct {
	SessionID    string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithLogger sets the logger used for security events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService constructs a Service.
func NewService(cfg Config, store Store, tokens AccessTokenManager, users UserDirectory, opts ...Option) (*Service, error) {
	if store == nil || tokens == nil || users == nil {
		return nil, errors.New("session: nil dependency")
	}
	hasher, err := token.NewHasher(cfg.RefreshHashKey)
	if err != nil {
		return nil, errors.Join(ErrConfig, err)
	}

	s := &Service{
		cfg:    cfg,
		tokens: tokens,
		store:  store,
		users:  users,
		hasher: hasher,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() Config { return s.cfg }

// IssueSession creates a ledger record for user and returns fresh tokens.
// The access token is signed before the record is written and discarded if
// the write fails.
func (s *Service) IssueSession(ctx context.Context, now time.Time, user identity.User, dev DeviceContext) (Issued, error) {
	const op = "session.IssueSession"

	if strings.TrimSpace(user.ID) == "" || !user.Role.Valid() {
		return Issued{}, autherr.Validation(op, "invalid user")
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		plain, rec, err := s.newRecord(now, user.ID, dev)
		if err != nil {
			return Issued{}, autherr.New(op, autherr.ErrPersistence, nil, err)
		}

		access, accessExp, err := s.tokens.Issue(Subject{OwnerID: user.ID, Role: user.Role, SessionID: rec.ID}, now)
		if err != nil {
			return Issued{}, autherr.New(op, autherr.ErrPersistence, nil, err)
		}

		err = s.store.Insert(ctx, rec)
		if errors.Is(err, ErrDuplicateToken) {
			s.log.Warn("auth.session.token_collision", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return Issued{}, persistenceErr(op, err)
		}

		return Issued{
			SessionID:    rec.ID,
			AccessToken:  access,
			AccessExp:    accessExp,
			RefreshToken: plain,
			RefreshExp:   rec.ExpiresAt,
		}, nil
	}

	return Issued{}, autherr.New(op, autherr.ErrPersistence, autherr.ErrDuplicateToken, nil)
}

// RotateRefresh exchanges a valid refresh token for a new token pair.
//
// Expired tokens are rejected whatever their revocation state. A revoked
// token is a replay: the call fails with reason ErrReplaySuspected and, when
// Config.RevokeOnReuse is set, every live record of the owner is revoked.
func (s *Service) RotateRefresh(ctx context.Context, now time.Time, presented string, dev DeviceContext) (Issued, error) {
	const op = "session.RotateRefresh"

	presented = strings.TrimSpace(presented)
	if presented == "" {
		return Issued{}, autherr.Validation(op, "missing refresh token")
	}
	if len(presented) > maxRefreshTokenLen {
		return Issued{}, autherr.Rejected(op, autherr.ErrMalformed)
	}
	hash := s.hasher.Hash(presented)

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		var (
			issued Issued
			replay *Record
		)

		_, err := s.store.Exchange(ctx, now, hash, func(old Record) (Record, error) {
			if !now.Before(old.ExpiresAt) {
				return Record{}, autherr.Rejected(op, autherr.ErrExpired)
			}
			if old.RevokedAt != nil {
				replay = &old
				return Record{}, autherr.New(op, autherr.ErrAuthenticationFailed, autherr.ErrReplaySuspected, nil)
			}

			owner, err := s.users.UserByID(ctx, old.OwnerID)
			if err != nil {
				if identity.IsNotFound(err) {
					return Record{}, autherr.Rejected(op, autherr.ErrUnknownUser)
				}
				return Record{}, persistenceErr(op, err)
			}
			if !owner.Role.Valid() {
				return Record{}, autherr.Rejected(op, autherr.ErrUnknownUser)
			}

			plain, next, err := s.newRecord(now, old.OwnerID, dev)
			if err != nil {
				return Record{}, autherr.New(op, autherr.ErrPersistence, nil, err)
			}
			access, accessExp, err := s.tokens.Issue(Subject{OwnerID: owner.ID, Role: owner.Role, SessionID: next.ID}, now)
			if err != nil {
				return Record{}, autherr.New(op, autherr.ErrPersistence, nil, err)
			}

			issued = Issued{
				SessionID:    next.ID,
				AccessToken:  access,
				AccessExp:    accessExp,
				RefreshToken: plain,
				RefreshExp:   next.ExpiresAt,
			}
			return next, nil
		})

		switch {
		case err == nil:
			return issued, nil
		case errors.Is(err, ErrDuplicateToken):
			s.log.Warn("auth.session.token_collision", "attempt", attempt+1)
			continue
		case errors.Is(err, ErrSessionNotFound):
			return Issued{}, autherr.Rejected(op, autherr.ErrNotFound)
		case replay != nil:
			s.handleReplay(ctx, now, *replay)
			return Issued{}, err
		case autherr.KindOf(err) != nil:
			return Issued{}, err
		default:
			return Issued{}, persistenceErr(op, err)
		}
	}

	return Issued{}, autherr.New(op, autherr.ErrPersistence, autherr.ErrDuplicateToken, nil)
}

// handleReplay logs a replayed token and applies the revoke-on-reuse policy.
func (s *Service) handleReplay(ctx context.Context, now time.Time, rec Record) {
	reason := ""
	if rec.RevocationReason != nil {
		reason = *rec.RevocationReason
	}
	s.log.Warn("auth.refresh.reuse_detected",
		"owner_id", rec.OwnerID,
		"session_id", rec.ID,
		"revocation_reason", reason,
		"revoke_all", s.cfg.RevokeOnReuse,
	)
	if !s.cfg.RevokeOnReuse {
		return
	}

	n, err := s.store.RevokeAllForOwner(ctx, now, rec.OwnerID, ReasonReuseDetected)
	if err != nil {
		s.log.Error("auth.refresh.reuse_revoke_all.fail", "owner_id", rec.OwnerID, "err", err)
		return
	}
	s.log.Warn("auth.refresh.reuse_revoked_all", "owner_id", rec.OwnerID, "revoked", n)
}

// Revoke revokes the record behind a refresh token. Empty, unknown and
// already revoked tokens succeed.
func (s *Service) Revoke(ctx context.Context, now time.Time, presented string) error {
	const op = "session.Revoke"

	presented = strings.TrimSpace(presented)
	if presented == "" || len(presented) > maxRefreshTokenLen {
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.store.Revoke(ctx, now, s.hasher.Hash(presented), ReasonLogout); err != nil {
		return persistenceErr(op, err)
	}
	return nil
}

// RevokeAll revokes every live record of ownerID and returns how many changed.
func (s *Service) RevokeAll(ctx context.Context, now time.Time, ownerID, reason string) (int64, error) {
	const op = "session.RevokeAll"

	if strings.TrimSpace(ownerID) == "" {
		return 0, autherr.Validation(op, "missing owner")
	}
	if reason == "" {
		reason = ReasonLogoutAll
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.store.RevokeAllForOwner(ctx, now, ownerID, reason)
	if err != nil {
		return 0, persistenceErr(op, err)
	}
	return n, nil
}

// VerifyAccess checks an access token by signature and expiry only.
func (s *Service) VerifyAccess(tokenStr string, now time.Time) (AccessClaims, error) {
	return s.tokens.Verify(strings.TrimSpace(tokenStr), now)
}

// PurgeExpired deletes records that expired before now minus the retention window.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "session.PurgeExpired"

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	n, err := s.store.DeleteExpired(ctx, now.Add(-s.cfg.CleanupRetention))
	if err != nil {
		return 0, persistenceErr(op, err)
	}
	return n, nil
}

func (s *Service) newRecord(now time.Time, ownerID string, dev DeviceContext) (string, Record, error) {
	plain, err := token.NewOpaque(s.cfg.RefreshTokenBytes)
	if err != nil {
		return "", Record{}, err
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return "", Record{}, err
	}

	rec := Record{
		ID:        id,
		OwnerID:   ownerID,
		TokenHash: s.hasher.Hash(plain),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.refreshTTL(dev)),
		Platform:  dev.Platform,
		UserAgent: truncate(dev.UserAgent, 512),
	}
	if rec.Platform == "" {
		rec.Platform = PlatformUnknown
	}
	if dev.IP != nil {
		rec.IP = dev.IP.String()
	}
	return plain, rec, nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OpTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

func persistenceErr(op string, err error) error {
	var ae *autherr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return autherr.New(op, autherr.ErrPersistence, autherr.ErrTimeout, err)
	}
	return autherr.Persistence(op, err)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
