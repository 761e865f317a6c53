package designation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gofhir/termserver/pkg/concept"
)

func TestSet_AllIsUnion(t *testing.T) {
	s := NewSet()
	s.AddBase(concept.Designation{Language: "en", Value: "Dog"})
	s.AddSupplement("http://example.org/sup-nl", 1, concept.Designation{Language: "nl", Value: "hond"})
	s.AddSupplement("http://example.org/sup-de", 2, concept.Designation{Language: "de", Value: "Hund"})

	assert.Len(t, s.All(), 3)
}

func TestSet_BestPrefersLanguageMatch(t *testing.T) {
	s := NewSet()
	s.AddBase(concept.Designation{Language: "en", Value: "Dog"})
	s.AddSupplement("http://example.org/sup-nl", 1, concept.Designation{Language: "nl", Value: "hond"})

	best, ok := s.Best(mustLanguages(t, "nl"))
	assert.True(t, ok)
	assert.Equal(t, "hond", best)
}

func TestSet_BestTieBreaksByRegistrationOrder(t *testing.T) {
	// Two supplements declare a designation for the same language; the
	// first-registered one wins single-value selection.
	s := NewSet()
	s.AddSupplement("http://example.org/first", 1, concept.Designation{Language: "nl", Value: "hond"})
	s.AddSupplement("http://example.org/second", 2, concept.Designation{Language: "nl", Value: "woefhond"})

	best, ok := s.Best(mustLanguages(t, "nl"))
	assert.True(t, ok)
	assert.Equal(t, "hond", best)
}

func TestSet_BestFallsBackToBaseDisplay(t *testing.T) {
	s := NewSet()
	s.AddBase(concept.Designation{Language: "en", Value: "Dog"})
	s.AddSupplement("http://example.org/sup-nl", 1, concept.Designation{Language: "nl", Value: "hond"})

	best, ok := s.Best(mustLanguages(t, "zh-CN"))
	assert.True(t, ok)
	assert.Equal(t, "Dog", best)
}

func TestRegistry_URLsVersionQualified(t *testing.T) {
	r := NewRegistry()
	r.Register(concept.Supplement{URL: "http://example.org/sup", Version: "0.1.1", Base: "http://example.org/base"})
	r.Register(concept.Supplement{URL: "http://example.org/unversioned", Base: "http://example.org/base"})

	assert.Equal(t, []string{
		"http://example.org/sup|0.1.1",
		"http://example.org/unversioned",
	}, r.URLs())
}
