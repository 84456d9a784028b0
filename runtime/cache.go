package runtime

import (
	"chat-relay/domain"
	"sync"
)

// DefaultRecentCacheCapacity bounds the in-memory public history.
const DefaultRecentCacheCapacity = 100

// RecentCache is the bounded FIFO of recent public messages: a best
// effort read accelerator in front of the durable store, never the
// source of truth. Insertion order is arrival order; once full, the
// oldest entry is evicted.
type RecentCache struct {
	mu       sync.Mutex
	capacity int
	messages []domain.ChatMessage
}

func NewRecentCache(capacity int) *RecentCache {
	if capacity <= 0 {
		capacity = DefaultRecentCacheCapacity
	}
	return &RecentCache{capacity: capacity}
}

func (c *RecentCache) Append(message domain.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, message)
	if len(c.messages) > c.capacity {
		c.messages = c.messages[1:]
	}
}

// Newest returns up to limit cached messages, newest first, and
// whether the cache can satisfy the request on its own.
func (c *RecentCache) Newest(limit int) ([]domain.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 || len(c.messages) < limit {
		return nil, false
	}
	out := make([]domain.ChatMessage, 0, limit)
	for i := len(c.messages) - 1; i >= len(c.messages)-limit; i-- {
		out = append(out, c.messages[i])
	}
	return out, true
}

func (c *RecentCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Oldest is the cache's eviction candidate, exposed for tests and the
// inspect page.
func (c *RecentCache) Oldest() (domain.ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.messages) == 0 {
		return domain.ChatMessage{}, false
	}
	return c.messages[0], true
}
