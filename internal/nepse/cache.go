package nepse

import "time"

// CacheEntry is a value with an absolute expiry
type CacheEntry[T any] struct {
	Data   T
	Expiry time.Time
}

// Cache is an immutable TTL map. Set returns a new cache; the receiver is
// never modified, so a Cache can be shared between state values.
type Cache[T any] struct {
	entries map[string]CacheEntry[T]
}

// Get returns the value for key while now <= expiry. Expired entries are
// misses and are left in place.
func (c Cache[T]) Get(key string, now time.Time) (T, bool) {
	var zero T
	entry, ok := c.entries[key]
	if !ok || now.After(entry.Expiry) {
		return zero, false
	}
	return entry.Data, true
}

// Set returns a copy of c holding value under key until now+ttl.
func (c Cache[T]) Set(key string, value T, ttl time.Duration, now time.Time) Cache[T] {
	next := make(map[string]CacheEntry[T], len(c.entries)+1)
	for k, v := range c.entries {
		next[k] = v
	}
	next[key] = CacheEntry[T]{Data: value, Expiry: now.Add(ttl)}
	return Cache[T]{entries: next}
}

// Len counts stored entries, expired ones included
func (c Cache[T]) Len() int { return len(c.entries) }
