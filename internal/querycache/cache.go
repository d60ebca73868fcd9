// Package querycache holds server-query results keyed by query identity.
// Invalidation marks entries stale in place so already-rendered data stays
// displayable until the next fetch replaces it; patching is a synchronous
// read-modify-write over entries that already exist and never creates or
// fetches anything.
package querycache

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
	Stale     bool
}

type ChangeListener func(key string)

type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
	now     func() time.Time

	listenerMu sync.Mutex
	listeners  map[string]ChangeListener
}

func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries:   make(map[string]Entry[V]),
		now:       time.Now,
		listeners: make(map[string]ChangeListener),
	}
}

// Put replaces the entry wholesale with a fresh fetch result. FetchedAt is
// monotonic per key in practice, which gives last-write-wins over any
// earlier optimistic patch without special-casing.
func (c *Cache[V]) Put(key string, v V) {
	c.mu.Lock()
	c.entries[key] = Entry[V]{Value: v, FetchedAt: c.now()}
	c.mu.Unlock()
	c.notify(key)
}

func (c *Cache[V]) Lookup(key string) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Invalidate flags every entry under prefix as stale without removing it.
// Returns the number of entries touched.
func (c *Cache[V]) Invalidate(prefix string) int {
	var touched []string
	c.mu.Lock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) && !e.Stale {
			e.Stale = true
			c.entries[key] = e
			touched = append(touched, key)
		}
	}
	c.mu.Unlock()
	for _, key := range touched {
		c.notify(key)
	}
	return len(touched)
}

// Patch applies fn to the current value of every entry under prefix. Keys
// with no entry are untouched: a patch never creates cache state.
func (c *Cache[V]) Patch(prefix string, fn func(V) V) int {
	var touched []string
	c.mu.Lock()
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.Value = fn(e.Value)
			c.entries[key] = e
			touched = append(touched, key)
		}
	}
	c.mu.Unlock()
	for _, key := range touched {
		c.notify(key)
	}
	return len(touched)
}

func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// OnChange registers a listener called with each mutated key; the returned
// id deregisters it.
func (c *Cache[V]) OnChange(fn ChangeListener) string {
	id := uuid.NewString()
	c.listenerMu.Lock()
	c.listeners[id] = fn
	c.listenerMu.Unlock()
	return id
}

func (c *Cache[V]) RemoveOnChange(id string) {
	c.listenerMu.Lock()
	delete(c.listeners, id)
	c.listenerMu.Unlock()
}

func (c *Cache[V]) notify(key string) {
	c.listenerMu.Lock()
	fns := make([]ChangeListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}
