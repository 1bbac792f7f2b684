// Package query memoizes the derived per-document products other
// packages compute from a committed document (package pipeline stores
// the binder's symbol table and the type analyzer's tables here). Every
// entry is keyed by (document, version, query name), so a cache hit or
// miss never changes what a query returns, only how fast: invalidating
// a document drops its entries wholesale rather than tracking
// fine-grained dependencies between them.
package query

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/watlang/watls/internal/intern"
)

// Key names one memoized product of one document version.
type Key struct {
	URI     intern.ID
	Version int
	Name    string
}

func (k Key) groupKey() string {
	return fmt.Sprintf("%d:%d:%s", k.URI, k.Version, k.Name)
}

// Cache memoizes query results across concurrent callers. A miss for a
// key already being computed by another goroutine waits on that
// computation instead of duplicating it.
type Cache struct {
	mu     sync.RWMutex
	values map[Key]any
	group  singleflight.Group
}

func New() *Cache {
	return &Cache{values: make(map[Key]any)}
}

// Get returns the cached value for key, calling compute on a miss and
// caching the result. compute runs at most once per key even under
// concurrent callers.
func (c *Cache) Get(key Key, compute func() any) any {
	if v, ok := c.peek(key); ok {
		return v
	}
	v, _, _ := c.group.Do(key.groupKey(), func() (any, error) {
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		v := compute()
		c.mu.Lock()
		c.values[key] = v
		c.mu.Unlock()
		return v, nil
	})
	return v
}

func (c *Cache) peek(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Invalidate drops every entry belonging to uri, regardless of version.
// Call this before a commit installs the document's new version so
// stale entries from prior versions never resurface.
func (c *Cache) Invalidate(uri intern.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.values {
		if k.URI == uri {
			delete(c.values, k)
		}
	}
}

// Len reports the number of cached entries, for tests and diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
