// Package patterns implements pattern memory: a bounded LRU cache over a
// durable table of condensed validation patterns keyed by context signature.
package patterns

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/ShayCichocki/vigil/pkg/models"
)

// Cache is a fixed-capacity LRU cache of patterns keyed by pattern ID.
// Eviction removes entries from memory only; the durable store is never
// touched. All methods are safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type cacheEntry struct {
	id      string
	pattern *models.ValidationPattern
}

// NewCache creates an LRU cache with the given capacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 100
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached pattern and marks it most recently used.
func (c *Cache) Get(id string) (*models.ValidationPattern, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[id]; ok {
		c.order.MoveToFront(elem)
		c.hits.Add(1)
		return elem.Value.(*cacheEntry).pattern, true
	}
	c.misses.Add(1)
	return nil, false
}

// Put inserts or refreshes a pattern, evicting the least-recently-used entry
// when over capacity.
func (c *Cache) Put(id string, p *models.ValidationPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[id]; ok {
		elem.Value.(*cacheEntry).pattern = p
		c.order.MoveToFront(elem)
		return
	}

	c.items[id] = c.order.PushFront(&cacheEntry{id: id, pattern: p})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).id)
			c.evictions.Add(1)
		}
	}
}

// Len returns the number of cached patterns.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Recent returns up to limit cached patterns in most-recently-used order.
func (c *Cache) Recent(limit int) []*models.ValidationPattern {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*models.ValidationPattern, 0, limit)
	for elem := c.order.Front(); elem != nil && len(out) < limit; elem = elem.Next() {
		out = append(out, elem.Value.(*cacheEntry).pattern)
	}
	return out
}

// Stats returns hit, miss, and eviction counts.
func (c *Cache) Stats() (hits, misses, evictions int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}
