// Package designation builds and merges the per-concept multilingual
// display/synonym set: the concept's own
// display, its declared synonyms, and every designation contributed by a
// registered supplement whose "supplements" metadata matches the target
// CodeSystem.
package designation

import (
	"sort"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
)

// Source identifies where a designation came from, used only to break
// ties deterministically.
type Source struct {
	// Supplement is the supplement URL that contributed this
	// designation, or "" for the base concept's own designations.
	Supplement string
	// Order is the supplement's registration order (0 = base concept,
	// 1.. = registration order of supplements). Lower wins ties.
	Order int
}

// Entry is one designation plus its provenance.
type Entry struct {
	concept.Designation
	Source Source
}

// Set is the accumulated designation set for one concept.
type Set struct {
	entries []Entry
}

// NewSet creates an empty designation set.
func NewSet() *Set { return &Set{} }

// AddBase adds the concept's own display and synonym designations (the
// base CodeSystem's, never a supplement's).
func (s *Set) AddBase(designations ...concept.Designation) {
	for _, d := range designations {
		s.entries = append(s.entries, Entry{Designation: d, Source: Source{Order: 0}})
	}
}

// AddSupplement adds designations contributed by a supplement,
// registered in order 'order' (1-based; lower registers first).
// supplementURL identifies the contributing supplement, carried for
// tie-break provenance and diagnostics.
func (s *Set) AddSupplement(supplementURL string, order int, designations ...concept.Designation) {
	for _, d := range designations {
		s.entries = append(s.entries, Entry{
			Designation: d,
			Source:      Source{Supplement: supplementURL, Order: order},
		})
	}
}

// All returns every designation in the set (base ∪ all supplements),
// the union of every contributing source. No entry is
// ever dropped by All; conflicts are only resolved by Best.
func (s *Set) All() []concept.Designation {
	out := make([]concept.Designation, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Designation
	}
	return out
}

// Best selects a single display value for the given language
// preferences, with fallback chain: exact/region-aware language match
// first (via lang.Languages.Matches), then the base concept's plain
// display regardless of language, then the first designation
// encountered. When multiple
// designations tie on (language, use, value-selection), the one
// registered first (lowest Source.Order) wins.
func (s *Set) Best(languages lang.Languages) (string, bool) {
	if len(s.entries) == 0 {
		return "", false
	}

	candidates := make([]Entry, len(s.entries))
	copy(candidates, s.entries)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Source.Order < candidates[j].Source.Order
	})

	if !languages.Empty() {
		tags := make([]string, len(candidates))
		for i, c := range candidates {
			tags[i] = c.Language
		}
		if idx := languages.Best(tags); idx >= 0 {
			return candidates[idx].Value, true
		}
	}

	// Fall back to the base concept's plain display (Use == nil, Order 0).
	for _, c := range candidates {
		if c.Source.Order == 0 && c.Use == nil {
			return c.Value, true
		}
	}
	return candidates[0].Value, true
}

// ForUse returns every designation whose Use code matches useCode (or
// every designation with a nil Use when useCode == "").
func (s *Set) ForUse(useCode string) []concept.Designation {
	var out []concept.Designation
	for _, e := range s.entries {
		if useCode == "" {
			if e.Use == nil {
				out = append(out, e.Designation)
			}
			continue
		}
		if e.Use != nil && e.Use.Code == useCode {
			out = append(out, e.Designation)
		}
	}
	return out
}

// Registry tracks the active supplements for one provider instance,
// established at worker construction and immutable for its lifetime
//.
type Registry struct {
	supplements []concept.Supplement
}

// NewRegistry creates an empty supplement registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds a supplement in registration order; the returned order
// index feeds Set.AddSupplement for tie-break provenance.
func (r *Registry) Register(s concept.Supplement) (order int) {
	r.supplements = append(r.supplements, s)
	return len(r.supplements)
}

// Active returns supplements whose base matches (baseURL, baseVersion),
// in registration order.
func (r *Registry) Active(baseURL, baseVersion string) []concept.Supplement {
	var out []concept.Supplement
	for _, s := range r.supplements {
		if s.MatchesBase(baseURL, baseVersion) {
			out = append(out, s)
		}
	}
	return out
}

// URLs returns every registered supplement as "url|version" (or bare url
// when version is empty), matching ListSupplements' wire shape
//.
func (r *Registry) URLs() []string {
	out := make([]string, 0, len(r.supplements))
	for _, s := range r.supplements {
		if s.Version == "" {
			out = append(out, s.URL)
		} else {
			out = append(out, s.URL+"|"+s.Version)
		}
	}
	return out
}
