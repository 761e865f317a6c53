// Package expcache implements the expansion cache: keyed by a content
// hash over (ValueSet JSON, parameter projection, sorted
// additional-resource hashes), storing only
// expansions whose computation exceeded MIN_CACHE_TIME_MS.
//
// Built on hashicorp/golang-lru/v2/expirable: it natively combines
// size-capped LRU eviction with per-entry TTL, the exact eviction
// combination this cache needs, so a hand-rolled sweep goroutine would
// only duplicate what the library already does correctly.
package expcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gofhir/termserver/pool"
)

// MinCacheTime is the minimum wall-clock expansion duration before a
// result is worth caching.
const MinCacheTime = 250 * time.Millisecond

// DefaultCapacity is the default LRU size cap.
const DefaultCapacity = 1000

// DefaultTTL bounds how long a cached expansion is trusted before it is
// considered stale, independent of LRU pressure.
const DefaultTTL = 30 * time.Minute

// Params is the parameter projection that participates in the cache
// key: every $expand parameter EXCEPT the tx-resource/valueSet
// parameters (those are hashed separately, see AdditionalHashes).
type Params struct {
	Filter        string
	Count         int
	Offset        int
	DisplayLang   string
	IncludeDesign bool
	ExcludeNested bool
	ActiveOnly    bool
	Extra         map[string]string // any remaining scalar parameters, sorted on hash
}

// Key uniquely identifies one cacheable expansion input.
type Key struct {
	ValueSetJSON     []byte
	Params           Params
	AdditionalHashes []string // sorted SHA-256 hashes of additional resources
}

// Hash computes the content-addressed cache key.
func (k Key) Hash() string {
	h := sha256.New()
	h.Write(k.ValueSetJSON)

	paramJSON, _ := json.Marshal(normalizedParams(k.Params))
	h.Write(paramJSON)

	sorted := pool.AcquireStringSlice()
	*sorted = append(*sorted, k.AdditionalHashes...)
	sort.Strings(*sorted)
	for _, ah := range *sorted {
		h.Write([]byte(ah))
	}
	pool.ReleaseStringSlice(sorted)
	return hex.EncodeToString(h.Sum(nil))
}

func normalizedParams(p Params) map[string]any {
	out := map[string]any{
		"filter":        p.Filter,
		"count":         p.Count,
		"offset":        p.Offset,
		"displayLang":   p.DisplayLang,
		"includeDesign": p.IncludeDesign,
		"excludeNested": p.ExcludeNested,
		"activeOnly":    p.ActiveOnly,
	}
	if len(p.Extra) > 0 {
		out["extra"] = p.Extra
	}
	return out
}

// HashResource computes the SHA-256 hash of one additional resource's
// canonical JSON bytes, for inclusion in Key.AdditionalHashes.
func HashResource(canonicalJSON []byte) string {
	sum := sha256.Sum256(canonicalJSON)
	return hex.EncodeToString(sum[:])
}

// Entry is a cached expansion result.
type Entry struct {
	Codes      []ExpandedCode
	Total      int
	ComputedAt time.Time
	Duration   time.Duration
}

// ExpandedCode is one entry of a cached expansion's code list; the full
// concept.CodeableConcept-shaped view is reconstructed by the expansion
// package from this plus the designation set.
type ExpandedCode struct {
	System  string
	Version string
	Code    string
	Display string
}

// Cache is the expansion cache.
type Cache struct {
	inner *lru.LRU[string, Entry]
}

// New creates an expansion cache with the given capacity and TTL; zero
// values fall back to DefaultCapacity/DefaultTTL.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{inner: lru.NewLRU[string, Entry](capacity, nil, ttl)}
}

// Get retrieves a cached expansion by its content hash.
func (c *Cache) Get(hash string) (Entry, bool) {
	return c.inner.Get(hash)
}

// StoreIfWorthwhile stores result under hash only if duration exceeded
// MinCacheTime: an expansion that came back quickly is cheaper to
// recompute than to cache.
func (c *Cache) StoreIfWorthwhile(hash string, result Entry, duration time.Duration) bool {
	if duration < MinCacheTime {
		return false
	}
	result.Duration = duration
	result.ComputedAt = time.Now()
	c.inner.Add(hash, result)
	return true
}

// Len returns the current number of cached expansions.
func (c *Cache) Len() int { return c.inner.Len() }

// PurgeOldestHalf drops the oldest half of entries by last-used time, a
// memory-pressure response. expirable.LRU does not expose a
// direct "evict half" primitive, so this relies on Keys() returning
// entries oldest-first and removes the leading half of that order.
func (c *Cache) PurgeOldestHalf() int {
	keys := c.inner.Keys()
	n := len(keys) / 2
	for i := 0; i < n; i++ {
		c.inner.Remove(keys[i])
	}
	return n
}
