package storage

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store used in ephemeral mode and tests.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string, dst any) (bool, error) {
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return false, errKey
	}
	s.mu.Lock()
	payload, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, decode(key, payload, dst)
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value any) error {
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return errKey
	}
	payload, errEncode := encode(key, value)
	if errEncode != nil {
		return errEncode
	}
	s.mu.Lock()
	s.values[key] = payload
	s.mu.Unlock()
	return nil
}

// SetRaw stores payload verbatim, bypassing encoding.
func (s *MemoryStore) SetRaw(key string, payload []byte) {
	s.mu.Lock()
	s.values[key] = append([]byte(nil), payload...)
	s.mu.Unlock()
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	key, errKey := normalizeKey(key)
	if errKey != nil {
		return errKey
	}
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}
