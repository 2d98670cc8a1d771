// Package memory provides an in-process key-value backend for tests and
// ephemeral sessions. Nothing survives the process.
package memory

import (
	"context"
	"sync"

	"envirotrack/pkg/domain"
)

var _ domain.KVStore = (*Store)(nil)

// Store is a map guarded by a RWMutex. Values are copied on the way in and out.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: make(map[string][]byte)}
}

// Get returns a copy of the value under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.values[key] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

// Keys lists the stored keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
