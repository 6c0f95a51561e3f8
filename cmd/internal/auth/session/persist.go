package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// StorageKey is the fixed name the persisted session lives under.
const StorageKey = "userData"

// Persister is durable key-value storage for the single persisted session.
//
// Load returns ok=false (and a nil error) when nothing is stored. Delete of a missing record
// is not an error.
type Persister interface {
	Load(ctx context.Context) (p Persisted, ok bool, err error)
	Save(ctx context.Context, p Persisted) error
	Delete(ctx context.Context) error
}

// MemoryStore keeps the record in process memory. It does not survive restarts.
type MemoryStore struct {
	mu  sync.Mutex
	rec *Persisted
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Load returns the stored record.
func (s *MemoryStore) Load(ctx context.Context) (Persisted, bool, error) {
	if err := ctx.Err(); err != nil {
		return Persisted{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return Persisted{}, false, nil
	}
	return *s.rec, true, nil
}

// Save overwrites the stored record.
func (s *MemoryStore) Save(ctx context.Context, p Persisted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rec = &p
	s.mu.Unlock()
	return nil
}

// Delete removes the stored record.
func (s *MemoryStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.rec = nil
	s.mu.Unlock()
	return nil
}

// FileStore keeps the record as <dir>/userData.json, readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore constructs a FileStore rooted at dir, creating dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("%w: empty session dir", ErrConfig)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, StorageKey+".json")}, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string { return s.path }

// Load reads the record. A file that does not decode is reported as ErrInvalidPersisted.
func (s *FileStore) Load(ctx context.Context) (Persisted, bool, error) {
	if err := ctx.Err(); err != nil {
		return Persisted{}, false, err
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Persisted{}, false, nil
	}
	if err != nil {
		return Persisted{}, false, err
	}

	var p Persisted
	if err := json.Unmarshal(b, &p); err != nil {
		return Persisted{}, false, fmt.Errorf("%w: %v", ErrInvalidPersisted, err)
	}
	return p, true, nil
}

// Save writes the record through a temp file and rename so readers never see a partial write.
func (s *FileStore) Save(ctx context.Context, p Persisted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+StorageKey+"-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Delete removes the file.
func (s *FileStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
