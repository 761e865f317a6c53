package expcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKey() Key {
	return Key{
		ValueSetJSON: []byte(`{"resourceType":"ValueSet","url":"http://example.org/vs"}`),
		Params:       Params{Count: 10, DisplayLang: "en"},
	}
}

func TestKeyHash_Deterministic(t *testing.T) {
	assert.Equal(t, sampleKey().Hash(), sampleKey().Hash())
}

func TestKeyHash_AdditionalResourceOrderIrrelevant(t *testing.T) {
	a := sampleKey()
	a.AdditionalHashes = []string{HashResource([]byte("one")), HashResource([]byte("two"))}
	b := sampleKey()
	b.AdditionalHashes = []string{a.AdditionalHashes[1], a.AdditionalHashes[0]}
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestKeyHash_ParamsChangeKey(t *testing.T) {
	a := sampleKey()
	b := sampleKey()
	b.Params.Count = 20
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestStoreIfWorthwhile_RespectsMinCacheTime(t *testing.T) {
	c := New(10, time.Minute)
	hash := sampleKey().Hash()
	entry := Entry{Codes: []ExpandedCode{{System: "s", Code: "c"}}, Total: 1}

	assert.False(t, c.StoreIfWorthwhile(hash, entry, 10*time.Millisecond), "fast expansions are not worth caching")
	_, ok := c.Get(hash)
	assert.False(t, ok)

	assert.True(t, c.StoreIfWorthwhile(hash, entry, MinCacheTime+time.Millisecond))
	got, ok := c.Get(hash)
	require.True(t, ok)
	assert.Equal(t, 1, got.Total)
}

func TestCache_LRUEviction(t *testing.T) {
	c := New(2, time.Minute)
	entry := Entry{Total: 0}
	c.StoreIfWorthwhile("a", entry, time.Second)
	c.StoreIfWorthwhile("b", entry, time.Second)
	c.StoreIfWorthwhile("c", entry, time.Second)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
}
