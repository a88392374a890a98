package cst

import (
	"context"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of parsed trees kept hot for the query path.
const DefaultCacheSize = 64

type cacheEntry struct {
	tree *Tree
	hash uint64
}

// Cache is an LRU of parsed trees keyed by file path. Entries are validated
// against the current content hash so stale trees are never served.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, cacheEntry]
}

// NewCache creates a tree cache with the given capacity.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// ParseFile returns the parsed tree for path, reusing a cached tree when the
// file content is unchanged.
func (c *Cache) ParseFile(ctx context.Context, path string) (*Tree, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.ParseSource(ctx, path, source)
}

// ParseSource parses source, using path as the cache key.
func (c *Cache) ParseSource(ctx context.Context, path string, source []byte) (*Tree, error) {
	hash := xxhash.Sum64(source)

	c.mu.Lock()
	if entry, ok := c.lru.Get(path); ok && entry.hash == hash {
		c.mu.Unlock()
		return entry.tree, nil
	}
	c.mu.Unlock()

	tree, err := Parse(ctx, source)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Add(path, cacheEntry{tree: tree, hash: hash})
	c.mu.Unlock()
	return tree, nil
}

// Invalidate drops the cached tree for path, if any. Called after edits.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	c.lru.Remove(path)
	c.mu.Unlock()
}
