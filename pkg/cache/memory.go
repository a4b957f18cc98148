package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a stored value with its expiry deadline.
type entry struct {
	value     []byte
	cachedAt  time.Time
	expiresAt time.Time
}

// expired reports whether the entry is past its deadline at now.
func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore is an in-process Store backed by a map. Expired entries are
// evicted lazily when a lookup observes them; there is no background sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value for key, or ErrCacheMiss when absent or expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	if e.expired(s.now()) {
		s.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry since the read above.
		if cur, ok := s.entries[key]; ok && cur.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()

		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	return e.value, nil
}

// Set stores value under key, resetting the TTL clock. A non-positive TTL
// is a no-op.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	now := s.now()
	s.mu.Lock()
	s.entries[key] = entry{
		value:     value,
		cachedAt:  now,
		expiresAt: now.Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear removes all entries immediately.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not. Intended for
// tests and diagnostics.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetClock replaces the store's time source. Intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}
