// Package cache holds small in-process TTL caches. The pipeline uses one to
// memoize MailWizz subscriber uids so the sync path skips a search round-trip
// for donors it has pushed recently.
package cache

import (
	"sync"
	"time"
)

// Cache is a TTL'd key-value store.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// TTLCache is a mutex-guarded map with per-entry expiry. Expired entries are
// dropped lazily on read and swept whenever a write lands, so there is no
// background janitor to manage.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]entry[V]
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{entries: make(map[K]entry[V])}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	now := time.Now()
	e := entry[V]{value: value}
	if ttl > 0 {
		e.deadline = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, existing := range c.entries {
		if existing.expired(now) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = e
}

func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// NoopCache misses every read and discards every write. Tests use it to force
// the uncached path.
type NoopCache[K comparable, V any] struct{}

func (NoopCache[K, V]) Get(K) (V, bool) {
	var zero V
	return zero, false
}

func (NoopCache[K, V]) Set(K, V, time.Duration) {}

func (NoopCache[K, V]) Delete(K) {}
