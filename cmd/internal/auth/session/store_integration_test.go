package session

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests run when RECIPEBOOK_TEST_REDIS_ADDR or RECIPEBOOK_TEST_DATABASE_URL is set.

func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("RECIPEBOOK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RECIPEBOOK_TEST_REDIS_ADDR is not set; skipping Redis integration test")
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, os.Getenv("RECIPEBOOK_TEST_REDIS_PASSWORD"))
	if err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	prefix := "recipebook-test:" + strings.ToLower(ulid.Make().String()) + ":"
	s, err := NewRedisStore(client, WithRedisPrefix(prefix), WithRedisClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Delete(ctx) })

	exercisePersister(t, s)

	if err := s.Save(ctx, samplePersisted()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ttl, err := client.TTL(ctx, s.Key()).Result()
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Fatalf("ttl = %v; want about 1h", ttl)
	}

	expired := samplePersisted()
	expired.TokenExpirationDate = "2026-03-01T10:00:00.000Z"
	if err := s.Save(ctx, expired); err != nil {
		t.Fatalf("Save expired: %v", err)
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Fatalf("expired record should not be stored")
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	dbURL := os.Getenv("RECIPEBOOK_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("RECIPEBOOK_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx := context.Background()
	pool := mustPGXPool(ctx, t, dbURL)
	t.Cleanup(pool.Close)

	schema := "rb_" + strings.ToLower(ulid.Make().String())
	s, err := NewPostgresStore(pool, WithPostgresSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	// Idempotent.
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema again: %v", err)
	}

	exercisePersister(t, s)
}

func TestNewPostgresStore_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, WithPostgresSchema("Robert'); DROP")); err == nil {
		t.Fatalf("expected error for invalid schema")
	}
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatalf("expected error for nil pool")
	}
}

func mustPGXPool(ctx context.Context, t *testing.T, dbURL string) *pgxpool.Pool {
	t.Helper()

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		t.Skipf("postgres unreachable: %v", err)
	}
	return pool
}
