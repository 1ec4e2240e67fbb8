package identity

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"sessiond/cmd/identity/ids"
	"sessiond/cmd/internal/migrations"
)

// Integration tests are opt-in and require SESSIOND_TEST_DATABASE_URL.

func TestSQLStore_Integration_CreateAndLookup(t *testing.T) {
	db := mustOpenMigratedDB(t)

	s, err := NewSQLStore(db.db, WithSchema(db.schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "Navid@Example.com", PasswordHash: "$argon2id$x", Role: RoleAdmin})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	ua, err := s.UserAuthByEmail(ctx, "navid@example.COM")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ua.ID != u.ID || ua.Role != RoleAdmin || ua.PasswordHash != "$argon2id$x" {
		t.Fatalf("unexpected user auth: %+v", ua)
	}

	// Same email (case-insensitive) should conflict.
	_, err = s.CreateUser(ctx, CreateUserInput{Email: "NAVID@example.com", PasswordHash: "h", Role: RoleStandard})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got: %v", err)
	}

	if _, err := s.UserByID(ctx, "01J0000000000000000000000Z"); !IsNotFound(err) {
		t.Fatalf("expected not found, got: %v", err)
	}
}

type migratedDB struct {
	db     *sqlx.DB
	schema string
}

func mustOpenMigratedDB(t *testing.T) migratedDB {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("SESSIOND_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: SESSIOND_TEST_DATABASE_URL is not set")
	}

	id, err := ids.NewULID(time.Now().UTC())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	schema := "sessiond_it_" + strings.ToLower(id)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse SESSIOND_TEST_DATABASE_URL: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if isConnRefused(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("ping: %v", err)
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dcancel()
		_, _ = pool.Exec(dctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
		_ = sqlDB.Close()
		pool.Close()
	})

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		t.Fatalf("goose dialect: %v", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return migratedDB{db: sqlx.NewDb(sqlDB, "pgx"), schema: schema}
}

func isConnRefused(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) || strings.Contains(err.Error(), "connection refused")
}
