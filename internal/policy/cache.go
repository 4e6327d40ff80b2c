package policy

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is an explicit, injectable policy cache keyed by content hash.
// Entries are write-once and content-addressed, so "identical hash means
// cache hit" is the whole invalidation rule and the cache is safe to share
// across concurrent callers.
type Cache struct {
	entries *lru.Cache[string, *Policy]
}

// NewCache creates a cache bounded to size entries.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[string, *Policy](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Get returns the cached policy for a content hash.
func (c *Cache) Get(hash string) (*Policy, bool) {
	return c.entries.Get(hash)
}

// Put stores a policy under its content hash. Re-putting an existing hash is
// harmless: the value is by construction identical.
func (c *Cache) Put(hash string, p *Policy) {
	c.entries.Add(hash, p)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries.Purge()
}

// Len reports the number of cached policies.
func (c *Cache) Len() int {
	return c.entries.Len()
}
