// Package cache holds fetched post data keyed by canonical topic URL,
// together with the tab registry that drives eviction. Neither type
// expires entries on its own: an entry lives exactly as long as some
// browser tab is bound to its key, and the coordinator is the only
// writer for both.
package cache

import "github.com/lotas/forumhilfe/internal/types"

// Cache maps a content key (canonical post URL) to its fetched record.
// No size bound, no TTL — deletion is driven entirely by registry events.
type Cache struct {
	entries map[string]*types.PostRecord
}

func New() *Cache {
	return &Cache{entries: make(map[string]*types.PostRecord)}
}

// Get returns the record for key, or nil if absent. No side effects.
func (c *Cache) Get(key string) *types.PostRecord {
	return c.entries[key]
}

// Put stores a record under key, replacing any previous entry.
func (c *Cache) Put(key string, rec *types.PostRecord) {
	c.entries[key] = rec
}

// Delete removes the entry for key, if present.
func (c *Cache) Delete(key string) {
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.entries = make(map[string]*types.PostRecord)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}
