package store

import (
	"context"
	"sync"
	"time"

	"github.com/intentflow/intentflow/internal/models"
)

type cachedSession struct {
	session  *models.ConversationState
	cachedAt time.Time
}

// MemorySessionCache is a process-local TTL cache used when Redis is not
// configured. Expired entries are swept by a background goroutine.
type MemorySessionCache struct {
	cache map[string]*cachedSession
	mu    sync.RWMutex
	ttl   time.Duration
	stop  chan struct{}
}

// NewMemorySessionCache creates a cache with the given TTL and starts its
// background cleanup.
func NewMemorySessionCache(ttl time.Duration) *MemorySessionCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	c := &MemorySessionCache{
		cache: make(map[string]*cachedSession),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get retrieves a cached session if it has not expired.
func (c *MemorySessionCache) Get(ctx context.Context, id string) (*models.ConversationState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.cache[id]; ok {
		if time.Since(entry.cachedAt) < c.ttl {
			return entry.session, true
		}
	}
	return nil, false
}

// Set stores a session.
func (c *MemorySessionCache) Set(ctx context.Context, session *models.ConversationState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache[session.ID] = &cachedSession{session: session, cachedAt: time.Now()}
	return nil
}

// Invalidate drops a session from the cache.
func (c *MemorySessionCache) Invalidate(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, id)
	return nil
}

// Close stops the background cleanup.
func (c *MemorySessionCache) Close() error {
	close(c.stop)
	return nil
}

// cleanup removes expired entries periodically.
func (c *MemorySessionCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for id, entry := range c.cache {
				if now.Sub(entry.cachedAt) > c.ttl {
					delete(c.cache, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
