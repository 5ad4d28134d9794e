package metadata

import (
	"container/list"
	"sync"
	"time"
)

// CachePolicy bounds a Cache. Zero values mean no expiry and no size limit.
type CachePolicy struct {
	TTL        time.Duration
	MaxEntries int
}

// Cache is a mutex-guarded map with optional TTL expiry and LRU eviction.
type Cache[K comparable, V any] struct {
	mu     sync.Mutex
	policy CachePolicy
	items  map[K]*list.Element
	order  *list.List // front is most recently used
	now    func() time.Time
}

type cacheEntry[K comparable, V any] struct {
	key      K
	value    V
	storedAt time.Time
}

// NewCache creates an empty cache with the given policy.
func NewCache[K comparable, V any](policy CachePolicy) *Cache[K, V] {
	return &Cache[K, V]{
		policy: policy,
		items:  make(map[K]*list.Element),
		order:  list.New(),
		now:    time.Now,
	}
}

// Get returns the value for key. Entries older than the TTL are removed and
// reported as misses.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	entry := el.Value.(*cacheEntry[K, V])
	if c.policy.TTL > 0 && c.now().Sub(entry.storedAt) >= c.policy.TTL {
		c.removeElement(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry[K, V])
		entry.value = value
		entry.storedAt = now
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry[K, V]{key: key, value: value, storedAt: now})
	c.items[key] = el

	if c.policy.MaxEntries > 0 {
		for c.order.Len() > c.policy.MaxEntries {
			c.removeElement(c.order.Back())
		}
	}
}

// Delete removes key if present.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of stored entries, including expired ones not yet
// observed by Get.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	entry := el.Value.(*cacheEntry[K, V])
	delete(c.items, entry.key)
	c.order.Remove(el)
}
