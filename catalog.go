package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const catalogStoreName = "movies_db"

// Catalog maps canonical titles to content locators (source channel message
// ids). Last write wins; every mutation is written through to the store.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]string
	store   Store
}

func NewCatalog(store Store) *Catalog {
	c := &Catalog{entries: make(map[string]string), store: store}
	if store != nil {
		if err := store.LoadMap(catalogStoreName, &c.entries); err != nil {
			fmt.Println("⚠️ [CATALOG] Failed to load index:", err.Error())
		}
		if c.entries == nil {
			c.entries = make(map[string]string)
		}
	}
	return c
}

func canonicalTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func (c *Catalog) Put(title, locator string) {
	key := canonicalTitle(title)
	if key == "" {
		return
	}
	c.mu.Lock()
	c.entries[key] = locator
	snapshot := c.copyLocked()
	c.mu.Unlock()
	persist(c.store, catalogStoreName, snapshot)
}

func (c *Catalog) Get(title string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[canonicalTitle(title)]
	return loc, ok
}

func (c *Catalog) Remove(title string) bool {
	key := canonicalTitle(title)
	c.mu.Lock()
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	snapshot := c.copyLocked()
	c.mu.Unlock()
	if ok {
		persist(c.store, catalogStoreName, snapshot)
	}
	return ok
}

// Keys returns a sorted snapshot so matching over it is deterministic.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Catalog) copyLocked() map[string]string {
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}
