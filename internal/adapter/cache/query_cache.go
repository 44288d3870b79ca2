package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"ragengine/internal/domain"
)

// QueryCache is an LRU cache of query results with a TTL. Entries are tied to
// the generation of their collection, so any link change invalidates them.
type QueryCache struct {
	mu          sync.RWMutex
	entries     map[string]*cacheEntry
	order       []string
	maxSize     int
	ttl         time.Duration
	generations map[string]uint64
}

type cacheEntry struct {
	result     domain.QueryResult
	timestamp  time.Time
	collection string
	generation uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries:     make(map[string]*cacheEntry),
		order:       make([]string, 0, maxSize),
		maxSize:     maxSize,
		ttl:         ttl,
		generations: make(map[string]uint64),
	}
}

func cacheKey(collection, query string, limit int) string {
	h := sha256.New()
	h.Write([]byte(collection))
	h.Write([]byte{0})
	h.Write([]byte(query))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(limit))
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *QueryCache) Get(collection, query string, limit int) (domain.QueryResult, bool) {
	key := cacheKey(collection, query, limit)

	c.mu.RLock()
	entry, exists := c.entries[key]
	var currentGen uint64
	if exists {
		currentGen = c.generations[entry.collection]
	}
	c.mu.RUnlock()

	if !exists {
		return domain.QueryResult{}, false
	}

	if time.Since(entry.timestamp) > c.ttl || entry.generation != currentGen {
		c.mu.Lock()
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.mu.Unlock()
		return domain.QueryResult{}, false
	}

	c.mu.Lock()
	c.moveToEnd(key)
	c.mu.Unlock()

	return cloneResult(entry.result), true
}

// Generation reports the collection's current generation. Read it before
// computing a result and hand it to Put.
func (c *QueryCache) Generation(collection string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[collection]
}

// Put stores a result computed while the collection was at generation gen.
// The write is dropped if the collection was invalidated since then.
func (c *QueryCache) Put(collection, query string, limit int, gen uint64, result domain.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[collection] != gen {
		return
	}

	key := cacheKey(collection, query, limit)
	entry := &cacheEntry{
		result:     cloneResult(result),
		timestamp:  time.Now(),
		collection: collection,
		generation: gen,
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Invalidate drops every cached result for the collection.
func (c *QueryCache) Invalidate(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[collection]++
}

// Clear drops every cached result.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
	for name := range c.generations {
		c.generations[name]++
	}
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func cloneResult(r domain.QueryResult) domain.QueryResult {
	if r.Chunks != nil {
		chunks := make([]domain.Chunk, len(r.Chunks))
		copy(chunks, r.Chunks)
		r.Chunks = chunks
	}
	return r
}
