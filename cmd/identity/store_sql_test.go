package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLStoreWithMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLStore(sqlx.NewDb(db, "sqlmock"))
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	return s, mock
}

func TestSQLStore_UserAuthByEmail_Found(t *testing.T) {
	s, mock := newSQLStoreWithMock(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	q := `(?s)^SELECT\s+u\.id,\s*u\.email,\s*u\.role,\s*c\.password_hash,\s*u\.created_at\s+FROM\s+"public"\."users"\s+u\s+JOIN\s+"public"\."user_credentials"\s+c\s+ON\s+c\.user_id\s*=\s*u\.id\s+WHERE\s+u\.email_norm\s*=\s*\$1$`
	rows := sqlmock.NewRows([]string{"id", "email", "role", "password_hash", "created_at"}).
		AddRow("01J0000000000000000000000A", "Alice@Example.com", "admin", "$2b$10$hash", created)
	mock.ExpectQuery(q).WithArgs("alice@example.com").WillReturnRows(rows)

	got, err := s.UserAuthByEmail(context.Background(), " Alice@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "01J0000000000000000000000A", got.ID)
	assert.Equal(t, RoleAdmin, got.Role)
	assert.Equal(t, "$2b$10$hash", got.PasswordHash)
	assert.True(t, created.Equal(got.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UserAuthByEmail_NotFound(t *testing.T) {
	s, mock := newSQLStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+u\.id`).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "password_hash", "created_at"}))

	_, err := s.UserAuthByEmail(context.Background(), "ghost@example.com")
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UserAuthByEmail_DBError(t *testing.T) {
	s, mock := newSQLStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+u\.id`).WillReturnError(errors.New("db down"))

	_, err := s.UserAuthByEmail(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "db down")
}

func TestSQLStore_UserByID(t *testing.T) {
	s, mock := newSQLStoreWithMock(t)

	q := `(?s)^SELECT\s+id,\s*email,\s*role,\s*created_at\s+FROM\s+"public"\."users"\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "created_at"}).
			AddRow("u-1", "bob@example.com", "user", time.Now()))

	u, err := s.UserByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, RoleStandard, u.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateUser(t *testing.T) {
	s, mock := newSQLStoreWithMock(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+"public"\."users"`).
		WithArgs(sqlmock.AnyArg(), "Admin@Example.com", "admin@example.com", "admin", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+"public"\."user_credentials"`).
		WithArgs(sqlmock.AnyArg(), "$argon2id$h", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := s.CreateUser(context.Background(), CreateUserInput{
		Email: "Admin@Example.com", PasswordHash: "$argon2id$h", Role: RoleAdmin, Now: now,
	})
	require.NoError(t, err)
	assert.Len(t, u.ID, 26)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateUser_Conflict(t *testing.T) {
	s, mock := newSQLStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+"public"\."users"`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_users_email_norm"})
	mock.ExpectRollback()

	_, err := s.CreateUser(context.Background(), CreateUserInput{
		Email: "a@example.com", PasswordHash: "h", Role: RoleStandard,
	})
	assert.True(t, IsConflict(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithSchema_RejectsBadIdentifier(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(sqlx.NewDb(db, "sqlmock"), WithSchema("bad;drop"))
	require.Error(t, err)

	_, err = NewSQLStore(nil)
	require.Error(t, err)
}
