package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over the refresh_tokens table.
// The pool is owned by the caller.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed ledger.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const recordColumns = `
	id, owner_id, token_hash,
	created_at, expires_at, revoked_at, rotated_at,
	replaced_by_id, revocation_reason, platform, user_agent, ip`

func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	return insertRecord(ctx, s.pool, rec)
}

func (s *PostgresStore) FindByHash(ctx context.Context, tokenHash string) (Record, error) {
	return scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM refresh_tokens
		WHERE token_hash = $1
	`, tokenHash))
}

// Revoke revokes a single record (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, tokenHash, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = COALESCE(revoked_at, $2),
		    revocation_reason = COALESCE(revocation_reason, $3)
		WHERE token_hash = $1
	`, tokenHash, now, reason)
	return err
}

// RevokeAllForOwner revokes all live records for an owner (idempotent).
func (s *PostgresStore) RevokeAllForOwner(ctx context.Context, now time.Time, ownerID, reason string) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = $2,
		    revocation_reason = $3
		WHERE owner_id = $1
		  AND revoked_at IS NULL
	`, ownerID, now, reason)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Exchange runs the rotation inside one transaction. The presented row is
// locked with SELECT ... FOR UPDATE so concurrent exchanges of the same token
// serialize; the loser observes the row as revoked.
func (s *PostgresStore) Exchange(ctx context.Context, now time.Time, tokenHash string, mint MintFunc) (Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := scanRecord(tx.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`, tokenHash))
	if err != nil {
		return Record{}, err
	}

	next, err := mint(old)
	if err != nil {
		return Record{}, err
	}

	if err := insertRecord(ctx, tx, next); err != nil {
		return Record{}, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = $2,
		    rotated_at = $2,
		    replaced_by_id = $3,
		    revocation_reason = $4
		WHERE id = $1
		  AND revoked_at IS NULL
	`, old.ID, now, next.ID, ReasonRotation)
	if err != nil {
		return Record{}, err
	}
	if ct.RowsAffected() != 1 {
		return Record{}, ErrSessionNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return next, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRecord(ctx context.Context, db execer, rec Record) error {
	_, err := db.Exec(ctx, `
		INSERT INTO refresh_tokens (
			id, owner_id, token_hash,
			created_at, expires_at, revoked_at, rotated_at,
			replaced_by_id, revocation_reason, platform, user_agent, ip
		) VALUES (
			$1, $2, $3,
			$4, $5, NULL, NULL,
			NULL, NULL, $6, $7, $8
		)
	`, rec.ID, rec.OwnerID, rec.TokenHash, rec.CreatedAt, rec.ExpiresAt,
		string(rec.Platform), nullIfEmpty(rec.UserAgent), nullIfEmpty(rec.IP))
	if isUniqueViolation(err) {
		return ErrDuplicateToken
	}
	return err
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		platform  string
		userAgent *string
		ip        *string
	)
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.TokenHash,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
		&rec.RotatedAt,
		&rec.ReplacedByID,
		&rec.RevocationReason,
		&platform,
		&userAgent,
		&ip,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrSessionNotFound
	}
	if err != nil {
		return Record{}, err
	}

	rec.Platform = ParsePlatform(platform)
	if userAgent != nil {
		rec.UserAgent = *userAgent
	}
	if ip != nil {
		rec.IP = *ip
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
