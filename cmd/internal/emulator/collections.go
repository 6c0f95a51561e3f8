package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Collections stores raw JSON documents by collection name. Get returns ok=false when the
// collection was never written.
type Collections interface {
	Get(ctx context.Context, name string) (doc json.RawMessage, ok bool, err error)
	Put(ctx context.Context, name string, doc json.RawMessage) error
}

// MemoryCollections keeps documents in process memory.
type MemoryCollections struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage
}

// NewMemoryCollections constructs an empty MemoryCollections.
func NewMemoryCollections() *MemoryCollections {
	return &MemoryCollections{docs: make(map[string]json.RawMessage)}
}

// Get returns a copy of the stored document.
func (m *MemoryCollections) Get(_ context.Context, name string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[name]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), doc...), true, nil
}

// Put overwrites the document.
func (m *MemoryCollections) Put(_ context.Context, name string, doc json.RawMessage) error {
	m.mu.Lock()
	m.docs[name] = append(json.RawMessage(nil), doc...)
	m.mu.Unlock()
	return nil
}

// RedisCollections keeps each document under <prefix><name>.
type RedisCollections struct {
	client *redis.Client
	prefix string
}

// NewRedisCollections constructs a RedisCollections. An empty prefix means "recipebook:emulator:".
func NewRedisCollections(client *redis.Client, prefix string) (*RedisCollections, error) {
	if client == nil {
		return nil, ErrConfig
	}
	if prefix == "" {
		prefix = "recipebook:emulator:"
	}
	return &RedisCollections{client: client, prefix: prefix}, nil
}

// Get reads the document.
func (r *RedisCollections) Get(ctx context.Context, name string) (json.RawMessage, bool, error) {
	b, err := r.client.Get(ctx, r.prefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(b), true, nil
}

// Put overwrites the document with no expiry.
func (r *RedisCollections) Put(ctx context.Context, name string, doc json.RawMessage) error {
	return r.client.Set(ctx, r.prefix+name, []byte(doc), 0).Err()
}
