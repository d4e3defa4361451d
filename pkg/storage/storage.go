package storage

import (
	"context"
)

// Store is the local key/value store behind the save system. Values are
// opaque strings; the save layer owns their encoding.
type Store interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Get returns the value stored under key. ok is false when the key does
	// not exist; err is reserved for store failures.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Del removes key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error
}
