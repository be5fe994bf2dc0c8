package storage

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. It backs tests and the degraded
// mode entered when the durable store cannot be opened.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string][]byte{}}
}

func (store *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	value, ok := store.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (store *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.values[key] = append([]byte(nil), value...)
	return nil
}

func (store *MemoryStore) GetMultiple(_ context.Context, keys []string) (map[string][]byte, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := store.values[key]; ok {
			result[key] = append([]byte(nil), value...)
		}
	}
	return result, nil
}

func (store *MemoryStore) SetMultiple(_ context.Context, values map[string][]byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	for key, value := range values {
		store.values[key] = append([]byte(nil), value...)
	}
	return nil
}

func (store *MemoryStore) Remove(_ context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.values, key)
	return nil
}

// Len reports the number of stored keys.
func (store *MemoryStore) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.values)
}
