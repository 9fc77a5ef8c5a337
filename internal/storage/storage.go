// Package storage provides keyed JSON persistence for user-facing state
// such as saved lists. Keys are namespaced strings ("lists", "researchers")
// and values are opaque JSON documents.
package storage

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/researchbridge/backend/internal/database"
)

// ErrKeyNotFound is returned when a key has no stored value
var ErrKeyNotFound = errors.New("key not found")

// Store is a keyed JSON document store
type Store interface {
	Get(key string, out interface{}) error
	Set(key string, value interface{}) error
	Remove(key string) error
	Keys(prefix string) ([]string, error)
}

// SQLiteStore persists documents in the application database
type SQLiteStore struct {
	repo *database.Repository
}

// NewSQLiteStore creates a store backed by the application database
func NewSQLiteStore(repo *database.Repository) *SQLiteStore {
	return &SQLiteStore{repo: repo}
}

func (s *SQLiteStore) Get(key string, out interface{}) error {
	value, err := s.repo.GetValue(key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(value), out)
}

func (s *SQLiteStore) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.repo.SetValue(key, string(data))
}

func (s *SQLiteStore) Remove(key string) error {
	return s.repo.DeleteValue(key)
}

func (s *SQLiteStore) Keys(prefix string) ([]string, error) {
	return s.repo.ListKeys(prefix)
}

// MemoryStore keeps documents in memory, used in tests and when no
// data directory is configured
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key string, out interface{}) error {
	s.mu.RLock()
	data, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(data, out)
}

func (s *MemoryStore) Set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.items[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
