// Package identity implements the per-query-execution identity cache (spec
// C9): a bounded LRU keyed by (entity type, key value) that lets repeated
// rows collapse onto the same instance within one query's object graph.
package identity

import (
	"fmt"
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one cached instance.
type Key struct {
	Type     reflect.Type
	KeyValue string
}

// Cache is NOT safe to share across queries (spec: "per query execution
// only; never shared across queries") — construct one per execution. Built
// on the same bounded-LRU primitive as C4's compiled-expression cache
// (predicate.Cache), resized in place as maybeGrow adapts.
type Cache struct {
	mu       sync.Mutex
	capacity int
	hardCap  int
	inner    *lru.Cache[Key, reflect.Value]

	hits, misses, evictions    int
	windowEvictions, windowOps int
}

// New builds a Cache with the given starting capacity and hard upper bound
// for adaptive growth (spec: "doubles its capacity up to a hard cap").
func New(initialCapacity, hardCap int) *Cache {
	if initialCapacity <= 0 {
		initialCapacity = 256
	}
	if hardCap <= 0 || hardCap < initialCapacity {
		hardCap = initialCapacity
	}
	c := &Cache{capacity: initialCapacity, hardCap: hardCap}
	inner, err := lru.NewWithEvict[Key, reflect.Value](initialCapacity, func(Key, reflect.Value) {
		c.evictions++
		c.windowEvictions++
	})
	if err != nil {
		// Only possible if initialCapacity <= 0, guarded above.
		panic(err)
	}
	c.inner = inner
	return c
}

// FormatKeyValue renders a possibly-composite key tuple into the cache key's
// string form. Callers pass the values of the mapping's EffectiveKey
// properties, in order.
func FormatKeyValue(values ...any) string {
	return fmt.Sprint(values...)
}

// Resolve returns the canonical instance for (t, keyValue), inserting
// instance if no entry exists yet. Both cache hit and miss are tracked.
func (c *Cache) Resolve(t reflect.Type, keyValue string, instance reflect.Value) reflect.Value {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.windowOps++
	k := Key{Type: t, KeyValue: keyValue}
	if v, ok := c.inner.Get(k); ok {
		c.hits++
		return v
	}

	c.misses++
	c.inner.Add(k, instance)
	c.maybeGrow()
	return instance
}

// maybeGrow runs after each miss. Once at least 100 operations (hits and
// misses) have been counted since the last check, it doubles capacity (up to
// hardCap) if more than 50 evictions happened in that span, then starts a new
// span; the underlying LRU is resized in place via Resize rather than
// rebuilt. The threshold is measured against the operation count, not
// against the number of misses.
func (c *Cache) maybeGrow() {
	const window = 100
	if c.windowOps < window {
		return
	}
	ratio := float64(c.windowEvictions) / float64(window)
	if ratio > 0.5 && c.capacity < c.hardCap {
		c.capacity *= 2
		if c.capacity > c.hardCap {
			c.capacity = c.hardCap
		}
		c.inner.Resize(c.capacity)
	}
	c.windowOps = 0
	c.windowEvictions = 0
}

// Stats is a snapshot of cache counters, useful for diagnostics/logging.
type Stats struct {
	Hits, Misses, Evictions, Capacity int
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Capacity: c.capacity}
}
