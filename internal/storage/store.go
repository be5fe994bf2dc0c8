// Package storage provides the durable key-value store used by the
// timer state machine, plus the session history repository.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a key-value store. Values are opaque JSON documents.
// Writes are last-write-wins per key; there are no transactions.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	GetMultiple(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMultiple(ctx context.Context, values map[string][]byte) error
	Remove(ctx context.Context, key string) error
}
