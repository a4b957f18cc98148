package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the key is absent or its entry has expired.
	ErrCacheMiss = errors.New("cache miss")
)

// Store is a keyed, TTL-expiring byte store. Implementations must be safe
// for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrCacheMiss when the key is
	// absent or expired. Expired entries are treated as absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL, resetting the TTL
	// clock for an existing key. A non-positive TTL is a no-op.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries immediately.
	Clear(ctx context.Context) error
}
