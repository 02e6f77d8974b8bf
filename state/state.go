// Package state provides the persistence backends for namespaced client
// records. The cart and checkout stores treat a backend as an opaque
// key-value store of JSON snapshots; each key is written atomically.
package state

import (
	"context"
	"sync"
)

// Store is a namespaced key-value backend for serialized client records.
// Implementations must make each Set visible atomically: a concurrent Get
// observes either the previous or the new payload, never a partial write.
type Store interface {
	// Get returns the payload stored under key, or ok=false when absent.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	// Set stores payload under key, replacing any previous value.
	Set(ctx context.Context, key string, payload []byte) error
	// Delete removes the record under key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process Store used as the default backend and in tests.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	// Copy so callers cannot mutate the stored snapshot.
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true, nil
}

func (s *Memory) Set(_ context.Context, key string, payload []byte) error {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = stored
	return nil
}

func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
