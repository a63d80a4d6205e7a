// Package db defines the storage contract for the gateway's shared
// transient state. Consumers depend on the narrow sub-interfaces.
package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces.
type Store interface {
	Pinger
	ListStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ListStore provides ordered-list operations used by the staging
// repository. Lists keep insertion order, which the positional
// addressing of staged uploads relies on.
type ListStore interface {
	// ListReplace atomically replaces the list at key with the given
	// elements and applies ttl. An empty elems deletes the key.
	ListReplace(ctx context.Context, key string, elems []string, ttl time.Duration) error
	// ListRange returns all elements of the list at key, oldest first.
	// A missing key yields an empty slice.
	ListRange(ctx context.Context, key string) ([]string, error)
	// ListRemoveAt removes the element at a positional index. An
	// out-of-range index is a no-op.
	ListRemoveAt(ctx context.Context, key string, index int) error
	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) error
}
