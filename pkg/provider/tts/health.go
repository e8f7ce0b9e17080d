package tts

import (
	"context"
	"sync"
	"time"
)

// DefaultHealthTTL is how long an Available result is trusted before the
// backend is probed again.
const DefaultHealthTTL = 30 * time.Second

type healthEntry struct {
	err     error
	checked time.Time
}

// HealthCache memoises Backend.Available results so the fallback chain does
// not probe every backend on every utterance. Safe for concurrent use.
type HealthCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]healthEntry
	now     func() time.Time
}

// NewHealthCache creates a cache with the given TTL. A non-positive ttl
// falls back to [DefaultHealthTTL].
func NewHealthCache(ttl time.Duration) *HealthCache {
	if ttl <= 0 {
		ttl = DefaultHealthTTL
	}
	return &HealthCache{
		ttl:     ttl,
		entries: make(map[string]healthEntry),
		now:     time.Now,
	}
}

// Check returns the cached availability of b, probing it when the cached
// result has expired. Both healthy and unhealthy results are cached so a
// dead backend is not re-probed on every utterance either.
func (c *HealthCache) Check(ctx context.Context, b Backend) error {
	name := b.Name()

	c.mu.Lock()
	entry, ok := c.entries[name]
	fresh := ok && c.now().Sub(entry.checked) < c.ttl
	c.mu.Unlock()
	if fresh {
		return entry.err
	}

	err := b.Available(ctx)

	c.mu.Lock()
	c.entries[name] = healthEntry{err: err, checked: c.now()}
	c.mu.Unlock()
	return err
}

// Invalidate drops the cached result for the named backend, forcing the
// next Check to probe. Used after a synthesis failure so a backend marked
// healthy moments ago is re-examined.
func (c *HealthCache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.entries, name)
	c.mu.Unlock()
}
