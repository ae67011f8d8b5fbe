package cache

import (
	"sync"
	"sync/atomic"
)

// Cache is a thread-safe LRU cache with a soft entry limit.
// A limit of 0 means unlimited.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*node[K, V]
	lru     list[K, V]
	limit   int
	onEvict func(K, V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most limit entries.
func New[K comparable, V any](limit int) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*node[K, V]),
		limit:   limit,
	}
}

// OnEvict registers fn to be called with every entry dropped by the limit,
// Delete or Clear. fn runs with the cache lock held and must not call back
// into the cache.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get retrieves a value and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	c.lru.moveToFront(n)
	return n.value, true
}

// Set stores a value, evicting the least recently used entries while the
// cache is over its limit.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// GetOrCreate returns the cached value for key or stores the result of
// create. create runs without the lock held; if two callers race, the first
// stored value wins and is returned to both. Errors are not cached.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := create()
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.entries[key]; ok {
		c.lru.moveToFront(n)
		return n.value, nil
	}
	c.setLocked(key, v)
	return v, nil
}

// Delete removes an entry. Returns true if it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(n)
	return true
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.lru.tail != nil {
		c.removeLocked(c.lru.tail)
	}
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	s := Stats{
		Len:       c.Len(),
		Capacity:  c.limit,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Caller must hold c.mu.
func (c *Cache[K, V]) setLocked(key K, value V) {
	if n, ok := c.entries[key]; ok {
		n.value = value
		c.lru.moveToFront(n)
		return
	}
	n := &node[K, V]{key: key, value: value}
	c.entries[key] = n
	c.lru.pushFront(n)

	for c.limit > 0 && len(c.entries) > c.limit {
		c.removeLocked(c.lru.tail)
		c.evictions.Add(1)
	}
}

// Caller must hold c.mu.
func (c *Cache[K, V]) removeLocked(n *node[K, V]) {
	c.lru.unlink(n)
	delete(c.entries, n.key)
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}

// Stats contains cache statistics.
type Stats struct {
	// Len is the current number of entries.
	Len int
	// Capacity is the entry limit, 0 for unlimited.
	Capacity int
	// Hits is the number of lookups that found an entry.
	Hits uint64
	// Misses is the number of lookups that found nothing.
	Misses uint64
	// HitRate is Hits / (Hits + Misses), 0 before the first lookup.
	HitRate float64
	// Evictions is the number of entries dropped by the limit.
	Evictions uint64
}

// node is an entry of the intrusive LRU list. head is the most recently used.
type node[K comparable, V any] struct {
	key        K
	value      V
	prev, next *node[K, V]
}

type list[K comparable, V any] struct {
	head, tail *node[K, V]
}

func (l *list[K, V]) pushFront(n *node[K, V]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *list[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (l *list[K, V]) moveToFront(n *node[K, V]) {
	if l.head == n {
		return
	}
	l.unlink(n)
	l.pushFront(n)
}
