package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PostgresStore keeps the record in <schema>.local_storage, keyed by StorageKey.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore) error

// WithPostgresSchema sets the schema (default "recipebook").
func WithPostgresSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("%w: invalid schema identifier", ErrConfig)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, schema: "recipebook"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.pool == nil {
		return nil, fmt.Errorf("%w: nil pool", ErrConfig)
	}
	return s, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "local_storage"}.Sanitize()
}

// EnsureSchema creates the schema and table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{s.schema}.Sanitize()); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table()+` (
			key        text PRIMARY KEY,
			value      jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	return err
}

// Load reads the record.
func (s *PostgresStore) Load(ctx context.Context) (Persisted, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM `+s.table()+` WHERE key = $1`,
		StorageKey,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Persisted{}, false, nil
	}
	if err != nil {
		return Persisted{}, false, err
	}

	var p Persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		return Persisted{}, false, fmt.Errorf("%w: %v", ErrInvalidPersisted, err)
	}
	return p, true, nil
}

// Save upserts the record.
func (s *PostgresStore) Save(ctx context.Context, p Persisted) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (key, value, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, StorageKey, string(b))
	return err
}

// Delete removes the record.
func (s *PostgresStore) Delete(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE key = $1`, StorageKey)
	return err
}
