// Package cache provides a TTL-expiring store for PubMed responses.
//
// The client caches two kinds of values under string keys: parsed search
// results keyed by normalized request parameters, and individual articles
// keyed by PMID. Values are opaque bytes (JSON-encoded domain objects), so
// every backend stores the same representation.
//
// Two backends are provided:
//
//   - MemoryStore: in-process map, the default when caching is enabled.
//   - RedisStore: shared cache for processes that want hits across
//     instances or restarts.
//
// Expiry is lazy: an entry is visible to readers only while
// now minus creation time is under the TTL, checked at lookup. There is no background
// sweep; expired entries are evicted when observed. Storing a value resets
// its TTL clock.
//
// # Basic Usage
//
//	store := cache.NewMemoryStore()
//	store.Set(ctx, "efetch:pubmed:12345", data, time.Hour)
//
//	value, err := store.Get(ctx, "efetch:pubmed:12345")
//	if err == cache.ErrCacheMiss {
//		// absent or expired - fetch from the network
//	}
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - pubmed_cache_hits_total{backend} - cache hits
//   - pubmed_cache_misses_total - cache misses (including expiries)
//   - pubmed_cache_errors_total{operation} - backend operation errors
package cache
