package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble/v2"
)

// Store is a small durable key-value store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Close() error
}

// PebbleStore keeps identity state in a PebbleDB directory.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if needed) a pebble database at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, errors.New("empty data path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key string) (string, bool, error) {
	data, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	defer closer.Close()
	// data is only valid until closer.Close.
	return string(data), true, nil
}

func (s *PebbleStore) Set(key, value string) error {
	return s.db.Set([]byte(key), []byte(value), pebble.Sync)
}

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.Mutex
	vals map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vals: map[string]string{}}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.vals[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
