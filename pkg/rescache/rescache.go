// Package rescache implements the resource cache: keyed by
// client-supplied cache-id, merging resources by (resourceType, url,
// version), with last-used tracking for pruning.
//
// Built on the shared cache.Cache[K,V] generic LRU rather than
// reimplementing eviction bookkeeping; serialized per-cache-id writes
// are added on top via per-bucket mutexes, so concurrent reads are safe
// and writes serialize per cache-id.
package rescache

import (
	"sync"
	"time"

	"github.com/gofhir/termserver/pkg/concept"

	"github.com/gofhir/termserver/cache"
)

// Key identifies one cached resource within a cache-id bucket.
type Key struct {
	ResourceType string
	URL          string
	Version      string
}

// entry wraps a cached resource with its last-access time, for prune.
type entry struct {
	Resource any // *concept.CodeSystem | *concept.ValueSet | *concept.ConceptMap
	LastUsed time.Time
}

// bucket is one client cache-id's resource set, with its own write
// mutex so concurrent add/set calls for the SAME cache-id serialize
// while different cache-ids proceed independently.
type bucket struct {
	mu    sync.Mutex
	store map[Key]entry
}

// DefaultMaxCacheIDs bounds how many distinct client cache-ids are
// tracked at once when New is called with capacity <= 0.
const DefaultMaxCacheIDs = 4096

// Cache is the resource cache, sharded by client cache-id. The bucket
// registry itself rides on the generic cache.Cache LRU, capped at
// capacity (termserver.Options.ResourceCacheSize); once exceeded, the
// least-recently-used cache-id's whole bucket is evicted, so a client
// that never calls Prune cannot grow the resource cache without bound.
// Per-bucket contents are additionally pruned by age via Prune, not by
// the LRU's size-based eviction.
type Cache struct {
	buckets *cache.Cache[string, *bucket]
}

// New creates an empty resource cache capped at capacity distinct
// cache-ids; capacity <= 0 falls back to DefaultMaxCacheIDs.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultMaxCacheIDs
	}
	return &Cache{buckets: cache.New[string, *bucket](capacity)}
}

func (c *Cache) bucketFor(cacheID string) *bucket {
	return c.buckets.GetOrSet(cacheID, func() *bucket {
		return &bucket{store: make(map[Key]entry)}
	})
}

// Add merges resource into the cache-id bucket: it is inserted only if
// no resource with the same (resourceType, url, version) already
// exists; Add merges, Set replaces.
func (c *Cache) Add(cacheID string, key Key, resource any) {
	b := c.bucketFor(cacheID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.store[key]; !exists {
		b.store[key] = entry{Resource: resource, LastUsed: time.Now()}
	}
}

// Set replaces any existing resource at key, unconditionally.
func (c *Cache) Set(cacheID string, key Key, resource any) {
	b := c.bucketFor(cacheID)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.store[key] = entry{Resource: resource, LastUsed: time.Now()}
}

// Get retrieves a resource, touching its last-used time.
func (c *Cache) Get(cacheID string, key Key) (any, bool) {
	b, ok := c.buckets.Get(cacheID)
	if !ok {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.store[key]
	if !ok {
		return nil, false
	}
	e.LastUsed = time.Now()
	b.store[key] = e
	return e.Resource, true
}

// GetCodeSystem is a typed convenience wrapper over Get.
func (c *Cache) GetCodeSystem(cacheID, url, version string) (*concept.CodeSystem, bool) {
	v, ok := c.Get(cacheID, Key{ResourceType: "CodeSystem", URL: url, Version: version})
	if !ok {
		return nil, false
	}
	cs, ok := v.(*concept.CodeSystem)
	return cs, ok
}

// GetValueSet is a typed convenience wrapper over Get.
func (c *Cache) GetValueSet(cacheID, url, version string) (*concept.ValueSet, bool) {
	v, ok := c.Get(cacheID, Key{ResourceType: "ValueSet", URL: url, Version: version})
	if !ok {
		return nil, false
	}
	vs, ok := v.(*concept.ValueSet)
	return vs, ok
}

// Prune removes every entry across every bucket whose LastUsed exceeds
// maxAge. Returns the number of entries removed.
func (c *Cache) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	c.buckets.Range(func(_ string, b *bucket) bool {
		b.mu.Lock()
		for k, e := range b.store {
			if e.LastUsed.Before(cutoff) {
				delete(b.store, k)
				removed++
			}
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// Size returns the total entry count across every cache-id bucket.
func (c *Cache) Size() int {
	total := 0
	c.buckets.Range(func(_ string, b *bucket) bool {
		b.mu.Lock()
		total += len(b.store)
		b.mu.Unlock()
		return true
	})
	return total
}
