package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are enabled when GATHER_TEST_DATABASE_URL is set.

func TestPostgresStoreUserLifecycle(t *testing.T) {
	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	defer mustDropTestSchema(t, pool, schema)
	mustApplyUsersSchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}

	ctx := context.Background()

	u, err := store.CreateUser(ctx, CreateUserInput{
		Name:     "Alice",
		Email:    "Alice@Example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.EmailNorm != "alice@example.com" {
		t.Fatalf("email not normalized: %q", u.EmailNorm)
	}

	if _, err := store.CreateUser(ctx, CreateUserInput{
		Name:     "Imposter",
		Email:    "ALICE@example.com",
		Password: "another long pw",
	}); !IsConflict(err) {
		t.Fatalf("duplicate email: got %v, want conflict", err)
	}

	got, err := store.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.ID != u.ID || got.Role != RoleUser {
		t.Fatalf("lookup mismatch: %+v", got)
	}

	ua, err := store.GetUserAuthByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get auth by email: %v", err)
	}
	ok, err := VerifyPassword("correct horse battery", ua.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify: ok=%v err=%v", ok, err)
	}

	updated, err := store.UpdateUserRole(ctx, u.ID, RoleAdmin)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != RoleAdmin {
		t.Fatalf("role not updated: %q", updated.Role)
	}

	if _, err := store.UpdateUserRole(ctx, "missing-id", RoleAdmin); !IsNotFound(err) {
		t.Fatalf("unknown id: got %v, want not found", err)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].Role != RoleAdmin {
		t.Fatalf("unexpected user list: %+v", users)
	}

	if _, err := store.GetUserByID(ctx, "missing-id"); !IsNotFound(err) {
		t.Fatalf("missing user: got %v, want not found", err)
	}
}

// ---- test helpers ----

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("GATHER_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: GATHER_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse GATHER_TEST_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		t.Fatalf("random schema suffix: %v", err)
	}
	schema := "gather_it_" + hex.EncodeToString(buf[:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropTestSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplyUsersSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	users := pgx.Identifier{schema, "users"}.Sanitize()

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id            TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  email         TEXT NOT NULL,
  email_norm    TEXT NOT NULL UNIQUE,
  role          TEXT NOT NULL CHECK (role IN ('user', 'admin')),
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`, users)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}
