// Package idempotency provides short-term deduplication of payment and
// webhook events. The external provider retries webhook delivery on non-2xx
// responses and users may double-submit payment confirmations; replays
// within the window short-circuit to the previously recorded result without
// re-mutating subscription state.
package idempotency

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is the deduplication window. Correctness relies on the
// provider's retry horizon staying within it; longer-term exactly-once
// guarantees need a durable backing store.
const DefaultTTL = time.Hour

// KeyValueTTLCache is the storage capability behind the guard. The
// in-process implementation below is only acceptable for single-instance
// deployments; a shared durable store should back it in production so
// correctness survives restarts and scales across instances.
type KeyValueTTLCache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	// Add stores the value only when the key is absent and reports whether
	// it did. The check-and-set is atomic, so concurrent callers racing on
	// the same key see exactly one true.
	Add(key string, value any, ttl time.Duration) bool
	// Sweep evicts expired entries. Implementations may also evict lazily.
	Sweep()
}

// memoryCache adapts go-cache to KeyValueTTLCache.
type memoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache returns an in-process KeyValueTTLCache with the given
// default TTL. Expired entries are dropped lazily on read and by Sweep.
func NewMemoryCache(defaultTTL time.Duration) KeyValueTTLCache {
	// Janitor disabled; sweeping is driven explicitly by the process
	// lifecycle so tests stay deterministic.
	return &memoryCache{c: gocache.New(defaultTTL, 0)}
}

func (m *memoryCache) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *memoryCache) Set(key string, value any, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *memoryCache) Add(key string, value any, ttl time.Duration) bool {
	return m.c.Add(key, value, ttl) == nil
}

func (m *memoryCache) Sweep() {
	m.c.DeleteExpired()
}
