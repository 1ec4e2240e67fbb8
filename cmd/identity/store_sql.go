package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"sessiond/cmd/identity/ids"
)

// SQLStore implements Store and Provisioner over database/sql via sqlx.
//
// The *sqlx.DB is owned by the caller; the store never closes it.
// Table identifiers are schema-qualified and quoted.
type SQLStore struct {
	db     *sqlx.DB
	schema string
}

// SQLOption configures the store.
type SQLOption func(*SQLStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema holding the users tables (default "public").
func WithSchema(schema string) SQLOption {
	return func(s *SQLStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewSQLStore constructs a SQLStore.
func NewSQLStore(db *sqlx.DB, opts ...SQLOption) (*SQLStore, error) {
	st := &SQLStore{db: db, schema: "public"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.db == nil {
		return nil, fmt.Errorf("identity: nil db")
	}
	return st, nil
}

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) user() User {
	return User{
		ID:        r.ID,
		Email:     r.Email,
		Role:      ParseRole(r.Role),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// UserAuthByEmail looks up the user and its credential by normalized email.
func (s *SQLStore) UserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.UserAuthByEmail"

	norm := NormalizeEmail(email)
	if norm == "" {
		return UserAuth{}, invalid(op, "missing email")
	}

	q := `SELECT u.id, u.email, u.role, c.password_hash, u.created_at
	        FROM ` + s.ident("users") + ` u
	        JOIN ` + s.ident("user_credentials") + ` c ON c.user_id = u.id
	       WHERE u.email_norm = $1`

	var row userRow
	if err := s.db.GetContext(ctx, &row, q, norm); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserAuth{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}

	return UserAuth{User: row.user(), PasswordHash: row.PasswordHash}, nil
}

// UserByID returns the public user view.
func (s *SQLStore) UserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.UserByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, invalid(op, "missing id")
	}

	q := `SELECT id, email, role, created_at
	        FROM ` + s.ident("users") + `
	       WHERE id = $1`

	var row userRow
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, OpError{Op: op, Kind: ErrNotFound}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return row.user(), nil
}

// CreateUser inserts the user and its credential in one transaction.
func (s *SQLStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	email := strings.TrimSpace(in.Email)
	if !ValidEmail(email) {
		return User{}, invalid(op, "invalid email")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "missing password hash")
	}
	if !in.Role.Valid() {
		return User{}, invalid(op, "invalid role")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+s.ident("users")+` (id, email, email_norm, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, email, NormalizeEmail(email), in.Role.String(), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, fmt.Errorf("%s: insert user: %w", op, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+s.ident("user_credentials")+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		id, in.PasswordHash, now,
	)
	if err != nil {
		return User{}, fmt.Errorf("%s: insert credential: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return User{ID: id, Email: email, Role: in.Role, CreatedAt: now.UTC()}, nil
}

func (s *SQLStore) ident(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
