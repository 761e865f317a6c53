// Package filter implements the shared ValueSet compose-filter execution
// machinery: given a provider's Filterable capability plus
// a (property, op, value) triple, it builds a filter object that can be
// tested for membership (Check) or iterated (Cursor), and composes
// several filters from one include clause with AND semantics.
package filter

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/provider"
)

// Clause is one (property, op, value) compose-filter predicate, carried
// from a ComposeInclude.Filter entry.
type Clause = concept.ComposeFilter

// Object is a single compiled filter: either "closed" (it can enumerate
// its own matching codes, e.g. is-a, in, regex against an indexed
// property) or "open" (it can only test membership of a code handed to
// it by some other source, e.g. most "exists" filters).
type Object interface {
	// Closed reports whether this filter can enumerate Size/Next itself.
	Closed() bool
	// Size reports the enumerable count for a closed filter; ok=false if
	// unknown up front.
	Size() (int, bool)
	// Next yields the next matching code for a closed filter.
	Next(ctx context.Context) (string, bool, error)
	// Check tests whether code satisfies this filter, used both by open
	// filters directly and by closed filters when verifying a candidate
	// produced by a sibling clause in the same AND-group.
	Check(ctx context.Context, code string) (bool, error)
}

// hierarchyProvider is the subset of fhircs-shaped providers the filter
// engine needs for is-a/descendent-of/generalizes/property filters,
// driven by a generic AllCodes()+MatchProperty scan. Concrete provider
// packages (fhircs, snomed) implement it directly.
type hierarchyProvider interface {
	Descendants(code string) []string
	Ancestors(code string) []string
	MatchProperty(code, prop, value string) bool
	PropertyValues(code, prop string) []string
	AllCodes() []string
}

// DirectCompiler lets a provider compile one clause itself instead of
// going through the generic hierarchyProvider scan, for two reasons a
// plain AllCodes()+MatchProperty dispatch can't cover: the provider
// already has a targeted, closed query for this property (the SQL-backed
// families' FilterByX methods) and a full-table AllCodes() scan would be
// wasteful or, for OMOP, outright against the provider's own "too large
// to enumerate" design; or the filter's closedness isn't a fixed
// property of the op at all, e.g. CPT's `modified` filter, which must
// stay open regardless of what AllCodes()+MatchProperty would compute
//.
type DirectCompiler interface {
	CompileFilter(ctx context.Context, c Clause) (Object, error)
}

// NewClosedSet builds a pre-materialized filter Object from a code set a
// DirectCompiler already resolved as closed (e.g. one SQL query result).
// Iteration order is code-ascending regardless of input order.
func NewClosedSet(codes []string) Object {
	return &closedSet{codes: codes}
}

// NewOrderedClosedSet is NewClosedSet without the re-sort: iteration
// keeps the given order. For filters whose source declares a meaningful
// sequence (a LOINC answer LIST, an ECL evaluation): code-ascending
// ordering is the tie-break, not an override of a declared primary
// order.
func NewOrderedClosedSet(codes []string) Object {
	return &closedSet{codes: codes, preserve: true}
}

// NewOpenPredicate builds a filter Object that can only test membership,
// for a DirectCompiler clause with no enumerable closed form.
func NewOpenPredicate(check func(code string) bool) Object {
	return &openPredicate{check: check}
}

// Compile builds an Object for one clause against src. fl is the
// provider's Filterable capability, consulted for the DoesFilter support
// check and, when fl also implements DirectCompiler, for execution
// itself; otherwise execution is data-driven from src.
func Compile(ctx context.Context, fl provider.Filterable, src hierarchyProvider, c Clause) (Object, error) {
	if !fl.DoesFilter(c.Property, c.Op, c.Value) {
		return nil, fmt.Errorf("%w: filter (%s %s %q) is not supported", provider.ErrNotSupported, c.Property, c.Op, c.Value)
	}
	if dc, ok := fl.(DirectCompiler); ok {
		return dc.CompileFilter(ctx, c)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: filter (%s %s %q) has no execution source", provider.ErrNotSupported, c.Property, c.Op, c.Value)
	}

	switch c.Op {
	case concept.OpIsA:
		return &closedSet{codes: append([]string{c.Value}, src.Descendants(c.Value)...)}, nil
	case concept.OpDescendentOf:
		return &closedSet{codes: src.Descendants(c.Value)}, nil
	case concept.OpIsNotA:
		excl := make(map[string]bool)
		excl[c.Value] = true
		for _, d := range src.Descendants(c.Value) {
			excl[d] = true
		}
		all := src.AllCodes()
		out := make([]string, 0, len(all))
		for _, code := range all {
			if !excl[code] {
				out = append(out, code)
			}
		}
		return &closedSet{codes: out}, nil
	case concept.OpGeneralizes:
		return &closedSet{codes: append([]string{c.Value}, src.Ancestors(c.Value)...)}, nil
	case concept.OpEquals:
		var out []string
		for _, code := range src.AllCodes() {
			if src.MatchProperty(code, c.Property, c.Value) {
				out = append(out, code)
			}
		}
		return &closedSet{codes: out}, nil
	case concept.OpIn, concept.OpNotIn:
		wanted := splitCommaList(c.Value)
		wantSet := make(map[string]bool, len(wanted))
		for _, w := range wanted {
			wantSet[w] = true
		}
		var out []string
		for _, code := range src.AllCodes() {
			matches := false
			for w := range wantSet {
				if src.MatchProperty(code, c.Property, w) {
					matches = true
					break
				}
			}
			if c.Op == concept.OpIn && matches {
				out = append(out, code)
			} else if c.Op == concept.OpNotIn && !matches {
				out = append(out, code)
			}
		}
		return &closedSet{codes: out}, nil
	case concept.OpRegex:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return nil, fmt.Errorf("Invalid regex pattern: %w", err)
		}
		matchesCode := c.Property == "code" || c.Property == "concept"
		var out []string
		for _, code := range src.AllCodes() {
			if matchesCode {
				if re.MatchString(code) {
					out = append(out, code)
				}
				continue
			}
			for _, v := range src.PropertyValues(code, c.Property) {
				if re.MatchString(v) {
					out = append(out, code)
					break
				}
			}
		}
		return &closedSet{codes: out}, nil
	case concept.OpExists:
		want := c.Value == "true"
		return &openPredicate{check: func(code string) bool {
			if c.Property == "child" {
				return src.MatchProperty(code, "child", c.Value)
			}
			return (len(src.PropertyValues(code, c.Property)) > 0) == want
		}}, nil
	}
	return nil, fmt.Errorf("%w: unknown filter operator %q", provider.ErrNotSupported, c.Op)
}

// closedSet is a pre-materialized filter object. Unless preserve is set
// it iterates code-ascending for deterministic results; preserve keeps
// the source's declared sequence instead.
type closedSet struct {
	codes    []string
	i        int
	once     bool
	preserve bool
}

func (c *closedSet) Closed() bool { return true }

func (c *closedSet) ensureSorted() {
	if !c.once && !c.preserve {
		sort.Strings(c.codes)
	}
	c.once = true
}

func (c *closedSet) Size() (int, bool) {
	return len(c.codes) - c.i, true
}

func (c *closedSet) Next(_ context.Context) (string, bool, error) {
	c.ensureSorted()
	if c.i >= len(c.codes) {
		return "", false, nil
	}
	code := c.codes[c.i]
	c.i++
	return code, true, nil
}

func (c *closedSet) Check(_ context.Context, code string) (bool, error) {
	c.ensureSorted()
	if c.preserve {
		for _, have := range c.codes {
			if have == code {
				return true, nil
			}
		}
		return false, nil
	}
	i := sort.SearchStrings(c.codes, code)
	return i < len(c.codes) && c.codes[i] == code, nil
}

// openPredicate is a filter object with no enumeration, only membership
// testing.
type openPredicate struct {
	check func(code string) bool
}

func (o *openPredicate) Closed() bool      { return false }
func (o *openPredicate) Size() (int, bool) { return 0, false }
func (o *openPredicate) Next(context.Context) (string, bool, error) {
	return "", false, fmt.Errorf("%w: filter is not closed, cannot enumerate", provider.ErrNotSupported)
}
func (o *openPredicate) Check(_ context.Context, code string) (bool, error) {
	return o.check(code), nil
}

// Group is an AND-composition of filters compiled from one
// ComposeInclude.Filter slice.
type Group struct {
	objects []Object
}

// CompileGroup compiles every clause in clauses against src, erroring on
// the first unsupported or malformed clause.
func CompileGroup(ctx context.Context, fl provider.Filterable, src hierarchyProvider, clauses []Clause) (*Group, error) {
	g := &Group{objects: make([]Object, 0, len(clauses))}
	for _, c := range clauses {
		obj, err := Compile(ctx, fl, src, c)
		if err != nil {
			return nil, err
		}
		g.objects = append(g.objects, obj)
	}
	return g, nil
}

// NotClosed reports whether any member filter cannot be enumerated on
// its own. Execute still drives such a group from its narrowest closed
// member when it has one, and from an external code source (e.g. the
// provider's full iteration) only when it has none.
func (g *Group) NotClosed() bool {
	for _, o := range g.objects {
		if !o.Closed() {
			return true
		}
	}
	return false
}

// Narrowest returns the index of the smallest closed filter in the
// group, used to drive enumeration when at least one filter is closed
//.
func (g *Group) Narrowest() (int, bool) {
	best := -1
	bestSize := -1
	for i, o := range g.objects {
		if !o.Closed() {
			continue
		}
		size, ok := o.Size()
		if !ok {
			continue
		}
		if best == -1 || size < bestSize {
			best = i
			bestSize = size
		}
	}
	return best, best != -1
}

// Check tests code against every member filter (AND semantics): all
// must pass.
func (g *Group) Check(ctx context.Context, code string) (bool, error) {
	for _, o := range g.objects {
		ok, err := o.Check(ctx, code)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Execute drives the group to completion against an optional externally
// supplied candidate source (used when NotClosed and no filter in the
// group can enumerate on its own); when the group has a closed filter,
// fallback is ignored and the narrowest closed filter drives
// enumeration, each candidate verified against the remaining filters.
func Execute(ctx context.Context, g *Group, fallback func(ctx context.Context) ([]string, error)) ([]string, error) {
	if idx, ok := g.Narrowest(); ok {
		var out []string
		for {
			code, more, err := g.objects[idx].Next(ctx)
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			ok := true
			for i, o := range g.objects {
				if i == idx {
					continue
				}
				pass, err := o.Check(ctx, code)
				if err != nil {
					return nil, err
				}
				if !pass {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, code)
			}
		}
		// Driver order is already deterministic (code-ascending, or the
		// source's declared sequence for an ordered set); keep it.
		return out, nil
	}

	if fallback == nil {
		return nil, fmt.Errorf("%w: filter group has no closed member and no fallback source", provider.ErrNotSupported)
	}
	candidates, err := fallback(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, code := range candidates {
		ok, err := g.Check(ctx, code)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

func splitCommaList(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
