// Package dedupe remembers which records a long-running consumer has already
// handled so replays of the same record are not re-indexed within a window.
package dedupe

import (
	"sync"
	"time"

	"github.com/DeafMist/media-aggregator/internal/models"
)

type seenAt struct {
	key string
	at  time.Time
}

// Cache is a bounded, TTL-limited set of record keys. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []seenAt
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache holding at most capacity keys for ttl each.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]seenAt, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Key identifies a record across sources and kinds. Posts without an id
// have no key.
func Key(source string, rec models.Record) (string, error) {
	id, err := rec.StoreID()
	if err != nil {
		return "", err
	}
	return rec.Kind().String() + "/" + source + "/" + id, nil
}

// IsSeen reports whether key was marked inside the ttl window.
func (c *Cache) IsSeen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.items[key]
	return ok && c.now().Sub(at) <= c.ttl
}

// MarkSeen records key. Callers mark only after the record is durably handled.
func (c *Cache) MarkSeen(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, key := range keys {
		c.items[key] = now
		c.order = append(c.order, seenAt{key: key, at: now})
	}
	c.evict(now)
}

// Len returns the number of live keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) evict(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].at.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		// A re-marked key has a newer entry further down the queue.
		if at, ok := c.items[oldest.key]; ok && at.Equal(oldest.at) {
			delete(c.items, oldest.key)
		}
	}
}
