// Package lang resolves Accept-Language headers and display-language
// overrides into an ordered fallback list, and matches that list against
// a concept's available designations.
//
// Grounded on other_examples' wardle-go-terminology, which builds a
// golang.org/x/text/language.Matcher over the server's available
// descriptions (terminology-service.go: "svc.Matcher = newMatcher(svc)").
package lang

import (
	"strings"

	"golang.org/x/text/language"
)

// Languages is an ordered, already-parsed language preference list, most
// preferred first. It is built once per OperationContext and shared with
// every provider call for that operation.
type Languages struct {
	tags []language.Tag
	raw  []string
}

// Parse parses an Accept-Language-style header (comma separated,
// optional ";q=" weights) into an ordered Languages list.
func Parse(acceptLanguage string) Languages {
	if strings.TrimSpace(acceptLanguage) == "" {
		return Languages{}
	}
	tagset, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		// Fall back to a best-effort comma split so a malformed header
		// degrades to "try each token" instead of losing all language
		// preference.
		return fromTokens(strings.Split(acceptLanguage, ","))
	}
	out := Languages{tags: tagset, raw: make([]string, len(tagset))}
	for i, t := range tagset {
		out.raw[i] = t.String()
	}
	return out
}

// Single builds a Languages list containing exactly one tag, used for
// displayLanguage overrides.
func Single(tag string) Languages {
	if strings.TrimSpace(tag) == "" {
		return Languages{}
	}
	t, err := language.Parse(tag)
	if err != nil {
		return Languages{raw: []string{tag}}
	}
	return Languages{tags: []language.Tag{t}, raw: []string{t.String()}}
}

func fromTokens(tokens []string) Languages {
	out := Languages{}
	for _, tok := range tokens {
		tok = strings.TrimSpace(strings.SplitN(tok, ";", 2)[0])
		if tok == "" {
			continue
		}
		if t, err := language.Parse(tok); err == nil {
			out.tags = append(out.tags, t)
			out.raw = append(out.raw, t.String())
		} else {
			out.raw = append(out.raw, tok)
		}
	}
	return out
}

// Empty reports whether no language preference was supplied.
func (l Languages) Empty() bool { return len(l.raw) == 0 }

// Tags returns the ordered list of raw tag strings, most preferred first.
func (l Languages) Tags() []string { return l.raw }

// Matches reports whether candidate (a BCP-47 tag, e.g. "de-CH") is an
// acceptable match for any preference in l: an exact tag match wins,
// then a language-only preference (e.g. "de") matches any region of
// that base language, and a region-qualified preference (e.g. "de-CH")
// matches only a candidate declaring the same region. A Region()
// confidence below Exact means the region was inferred, not declared,
// and is ignored.
func (l Languages) Matches(candidate string) bool {
	if l.Empty() {
		return true // no preference stated: everything matches
	}
	ct, err := language.Parse(candidate)
	if err != nil {
		return containsFold(l.raw, candidate)
	}
	cBase, _ := ct.Base()
	cRegion, cConf := ct.Region()

	for _, pref := range l.tags {
		if pref == ct {
			return true
		}
		pBase, _ := pref.Base()
		if pBase != cBase {
			continue
		}
		pRegion, pConf := pref.Region()
		if pConf != language.Exact {
			// Preference is language-only (e.g. "de"): matches any
			// region of that base language.
			return true
		}
		if cConf == language.Exact && pRegion == cRegion {
			return true
		}
		// Preference declares a region the candidate doesn't carry: not
		// a match ("de-DE" must not match a de-CH-only concept).
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// Best returns the index of the first preference (in order) satisfied by
// one of the given candidate tags, or -1 if none match. Used by
// pkg/designation to pick a single display among several designations.
func (l Languages) Best(candidates []string) int {
	for prefIdx := range l.raw {
		single := Languages{tags: l.tags[prefIdx : prefIdx+1], raw: l.raw[prefIdx : prefIdx+1]}
		for i, c := range candidates {
			if single.Matches(c) {
				return i
			}
		}
	}
	return -1
}
