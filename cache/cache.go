// Package cache holds scraped answers in memory so repeated runs (or
// repeated prompts within a run) skip the browser round trip.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/chateval/models"
)

// entry holds a cached answer with its creation timestamp.
type entry struct {
	response  *models.ChatResponse
	createdAt time.Time
}

// Cache is a bounded in-memory answer cache. Safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache. A background goroutine evicts expired entries every
// 5 minutes.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
	go c.cleanupLoop()
	return c
}

// Key derives the cache key from the target URL and the prompt.
func Key(targetURL, prompt string) string {
	h := sha256.New()
	h.Write([]byte(targetURL))
	h.Write([]byte("|"))
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached answer if it exists and has not expired.
func (c *Cache) Get(key string) (*models.ChatResponse, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.response, true
}

// Set stores an answer. If the cache is at capacity, a random entry is
// evicted to make room (map iteration is random in Go).
func (c *Cache) Set(key string, resp *models.ChatResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts expired entries every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
