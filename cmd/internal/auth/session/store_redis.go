package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the record in Redis with a TTL equal to the time left before expiry,
// so an expired session disappears without a Delete.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix namespaces the key (default "recipebook:").
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.key = prefix + StorageKey }
}

// WithRedisClock overrides the clock used to compute TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil redis client", ErrConfig)
	}
	s := &RedisStore{
		client: client,
		key:    "recipebook:" + StorageKey,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// NewRedisClient dials addr and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Key returns the Redis key in use.
func (s *RedisStore) Key() string { return s.key }

// Load reads the record.
func (s *RedisStore) Load(ctx context.Context) (Persisted, bool, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Persisted{}, false, nil
	}
	if err != nil {
		return Persisted{}, false, err
	}

	var p Persisted
	if err := json.Unmarshal(val, &p); err != nil {
		return Persisted{}, false, fmt.Errorf("%w: %v", ErrInvalidPersisted, err)
	}
	return p, true, nil
}

// Save writes the record. A record that is already expired is deleted instead.
func (s *RedisStore) Save(ctx context.Context, p Persisted) error {
	exp, ok := p.Expiration()
	if !ok {
		return s.Delete(ctx)
	}
	ttl := exp.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx)
	}

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, ttl).Err()
}

// Delete removes the record.
func (s *RedisStore) Delete(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
