// Package respcache is a process-local TTL cache for rendered HTTP responses.
//
// Entries are keyed by request URL and can be dropped in bulk by substring
// match, so writers can invalidate every cached page that embeds the data
// they changed.
package respcache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is used when New is given a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// Entry is a cached response.
type Entry struct {
	Status      int
	ContentType string
	Body        []byte
}

type item struct {
	Entry
	expiresAt time.Time
}

// Cache stores responses for a fixed TTL. It is safe for concurrent use.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]item
}

// New creates a Cache whose entries live for ttl.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]item),
	}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the live entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	it, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(it.expiresAt) {
		return Entry{}, false
	}
	return it.Entry, true
}

// Set stores e under key, replacing any previous entry.
func (c *Cache) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = item{Entry: e, expiresAt: c.now().Add(c.ttl)}
}

// InvalidateContaining removes every entry whose key contains any of the
// given substrings and returns how many were removed.
func (c *Cache) InvalidateContaining(substrs ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		for _, s := range substrs {
			if strings.Contains(key, s) {
				delete(c.entries, key)
				removed++
				break
			}
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) evictExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, it := range c.entries {
		if !now.Before(it.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// StartEviction removes expired entries every TTL until ctx is done.
func (c *Cache) StartEviction(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.evictExpired()
			}
		}
	}()
}
