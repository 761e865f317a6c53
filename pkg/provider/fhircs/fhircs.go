// Package fhircs implements the in-memory FHIR CodeSystem provider: it
// consumes a CodeSystem resource, validates it at construction, indexes
// codes and hierarchy, and answers the full provider.Provider contract
// plus Hierarchy, Iteration and Filterable.
package fhircs

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/designation"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
)

// node is one indexed concept plus its resolved parent (from nested
// `concept[]` structure and/or a declared "subsumedBy" property).
type node struct {
	concept.CodeSystemConcept
	parent    string
	hasParent bool
}

// handle is fhircs's private provider.Context implementation.
type handle struct {
	system string
	code   string
}

func (h *handle) Tag() string { return h.system }

// Provider is the in-memory CodeSystem provider.
type Provider struct {
	cs       *concept.CodeSystem
	byCode   map[string]*node
	children map[string][]string // parent code -> child codes, declared order
	roots    []string

	supplements *designation.Registry
	supplyDesig map[string][]designation.Entry // code -> supplement-contributed designations
	supplyProps map[string][]concept.ConceptProperty
}

// New validates and indexes cs, returning a ready Provider. It rejects
// malformed resources ("Invalid CodeSystem" / "code is required").
func New(cs *concept.CodeSystem) (*Provider, error) {
	if cs == nil {
		return nil, fmt.Errorf("Invalid CodeSystem: resource is nil")
	}
	if cs.URL == "" {
		return nil, fmt.Errorf("Invalid CodeSystem: url is required")
	}

	p := &Provider{
		cs:          cs,
		byCode:      make(map[string]*node),
		children:    make(map[string][]string),
		supplements: designation.NewRegistry(),
		supplyDesig: make(map[string][]designation.Entry),
		supplyProps: make(map[string][]concept.ConceptProperty),
	}

	var indexLevel func(concepts []concept.CodeSystemConcept, parent string, hasParent bool) error
	indexLevel = func(concepts []concept.CodeSystemConcept, parent string, hasParent bool) error {
		for _, c := range concepts {
			if c.Code == "" {
				return fmt.Errorf("Invalid CodeSystem: code is required")
			}
			if _, dup := p.byCode[c.Code]; dup {
				return fmt.Errorf("Invalid CodeSystem: duplicate code %q", c.Code)
			}
			n := &node{CodeSystemConcept: c, parent: parent, hasParent: hasParent}
			p.byCode[c.Code] = n
			if hasParent {
				p.children[parent] = append(p.children[parent], c.Code)
			} else {
				p.roots = append(p.roots, c.Code)
			}
			if len(c.Concept) > 0 {
				if err := indexLevel(c.Concept, c.Code, true); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := indexLevel(cs.Concept, "", false); err != nil {
		return nil, err
	}

	// Honor declared "subsumedBy" properties as additional hierarchy,
	// overriding the structural parent when present.
	for code, n := range p.byCode {
		for _, prop := range n.Property {
			if prop.Code == "subsumedBy" && prop.ValueCode != "" {
				if n.hasParent {
					// remove from the structural parent's child list
					old := p.children[n.parent]
					for i, c := range old {
						if c == code {
							p.children[n.parent] = append(old[:i], old[i+1:]...)
							break
						}
					}
				} else {
					for i, r := range p.roots {
						if r == code {
							p.roots = append(p.roots[:i], p.roots[i+1:]...)
							break
						}
					}
				}
				n.parent = prop.ValueCode
				n.hasParent = true
				p.children[prop.ValueCode] = append(p.children[prop.ValueCode], code)
			}
		}
	}

	return p, nil
}

// RegisterSupplement merges a supplement CodeSystem's designations and
// properties into this provider by code match.
func (p *Provider) RegisterSupplement(sup *concept.CodeSystem, supplementURL string) error {
	if sup == nil {
		return fmt.Errorf("Invalid CodeSystem: supplement is nil")
	}
	order := p.supplements.Register(concept.Supplement{
		URL: supplementURL, Version: sup.Version, Base: p.cs.URL,
	})

	var walk func(concepts []concept.CodeSystemConcept)
	walk = func(concepts []concept.CodeSystemConcept) {
		for _, c := range concepts {
			if _, ok := p.byCode[c.Code]; ok {
				for _, d := range c.Designation {
					p.supplyDesig[c.Code] = append(p.supplyDesig[c.Code], designation.Entry{
						Designation: d,
						Source:      designation.Source{Supplement: supplementURL, Order: order},
					})
				}
				p.supplyProps[c.Code] = append(p.supplyProps[c.Code], c.Property...)
			}
			if len(c.Concept) > 0 {
				walk(c.Concept)
			}
		}
	}
	walk(sup.Concept)
	return nil
}

func (p *Provider) node(code string) (*node, bool) {
	n, ok := p.byCode[code]
	return n, ok
}

// --- Metadata ---

func (p *Provider) System() string  { return p.cs.URL }
func (p *Provider) Version() string { return p.cs.Version }
func (p *Provider) Description() string {
	if p.cs.Name != "" {
		return p.cs.Name
	}
	return p.cs.URL
}
func (p *Provider) TotalCount() (int, bool) { return len(p.byCode), true }
func (p *Provider) HasParents() bool        { return len(p.children) > 0 }
func (p *Provider) ContentMode() concept.CodeSystemContent {
	if p.cs.Content == "" {
		return concept.ContentComplete
	}
	return p.cs.Content
}

// HasAnyDisplays reports whether any concept has a display or
// designation matching one of the given language preferences, also
// honoring the CodeSystem's own declared `language`.
func (p *Provider) HasAnyDisplays(languages lang.Languages) bool {
	if languages.Empty() {
		return len(p.byCode) > 0
	}
	if p.cs.Language != "" && languages.Matches(p.cs.Language) {
		return true
	}
	for _, n := range p.byCode {
		for _, d := range n.Designation {
			if d.Language != "" && languages.Matches(d.Language) {
				return true
			}
		}
		for _, d := range p.supplyDesig[n.Code] {
			if d.Language != "" && languages.Matches(d.Language) {
				return true
			}
		}
	}
	return false
}

func (p *Provider) ListSupplements() []string { return p.supplements.URLs() }

// --- ConceptAccess ---

// Locate resolves code to a handle, reporting (not throwing) on failure.
func (p *Provider) Locate(_ context.Context, code string) (provider.LocateResult, error) {
	if code == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	if _, ok := p.byCode[code]; !ok {
		return provider.LocateResult{Message: fmt.Sprintf("Code %q not found in %s", code, p.cs.URL)}, nil
	}
	return provider.LocateResult{Context: &handle{system: p.cs.URL, code: code}}, nil
}

func (p *Provider) own(c provider.Context) (*handle, error) {
	h, ok := c.(*handle)
	if !ok || h.system != p.cs.URL {
		return nil, provider.ErrTypeMismatch
	}
	return h, nil
}

func (p *Provider) Code(_ context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	if err != nil {
		return "", err
	}
	if _, ok := p.byCode[h.code]; !ok {
		return "", provider.ErrNotFound
	}
	return h.code, nil
}

func (p *Provider) Display(_ context.Context, c provider.Context) (string, error) {
	h, err := p.own(c)
	if err != nil {
		return "", err
	}
	n, ok := p.byCode[h.code]
	if !ok {
		return "", provider.ErrNotFound
	}
	return n.Display, nil
}

func (p *Provider) Designations(_ context.Context, c provider.Context, out *[]concept.Designation) error {
	h, err := p.own(c)
	if err != nil {
		return err
	}
	n, ok := p.byCode[h.code]
	if !ok {
		return provider.ErrNotFound
	}
	set := designation.NewSet()
	if n.Display != "" {
		set.AddBase(concept.Designation{Language: p.cs.Language, Value: n.Display})
	}
	set.AddBase(n.Designation...)
	for _, e := range p.supplyDesig[n.Code] {
		set.AddSupplement(e.Source.Supplement, e.Source.Order, e.Designation)
	}
	*out = append(*out, set.All()...)
	return nil
}

func (p *Provider) IsAbstract(c provider.Context) bool {
	n := p.mustNode(c)
	if n == nil {
		return false
	}
	for _, prop := range n.Property {
		if prop.Code == "notSelectable" && prop.ValueBool != nil && *prop.ValueBool {
			return true
		}
	}
	return false
}

func (p *Provider) IsInactive(c provider.Context) bool {
	return p.GetStatus(c) == "retired" || p.GetStatus(c) == "inactive"
}

func (p *Provider) IsDeprecated(c provider.Context) bool {
	return p.GetStatus(c) == "retired"
}

func (p *Provider) GetStatus(c provider.Context) string {
	n := p.mustNode(c)
	if n == nil {
		return ""
	}
	for _, prop := range n.Property {
		if prop.Code == "status" {
			return prop.ValueCode
		}
	}
	return ""
}

func (p *Provider) ItemWeight(c provider.Context) (float64, bool) {
	n := p.mustNode(c)
	if n == nil {
		return 0, false
	}
	for _, prop := range n.Property {
		if prop.Code == "itemWeight" && prop.ValueDec != nil {
			return *prop.ValueDec, true
		}
	}
	return 0, false
}

func (p *Provider) Extensions(c provider.Context) []concept.Property {
	return nil
}

func (p *Provider) Properties(_ context.Context, c provider.Context) ([]concept.Property, error) {
	h, err := p.own(c)
	if err != nil {
		return nil, err
	}
	n, ok := p.byCode[h.code]
	if !ok {
		return nil, provider.ErrNotFound
	}
	out := make([]concept.Property, 0, len(n.Property))
	for _, prop := range n.Property {
		out = append(out, concept.Property{Code: prop.Code, Value: propertyValue(prop)})
	}
	for _, prop := range p.supplyProps[n.Code] {
		out = append(out, concept.Property{Code: prop.Code, Value: propertyValue(prop)})
	}
	return out, nil
}

func propertyValue(p concept.ConceptProperty) any {
	switch {
	case p.ValueCode != "":
		return p.ValueCode
	case p.ValueStr != "":
		return p.ValueStr
	case p.ValueBool != nil:
		return *p.ValueBool
	case p.ValueInt != nil:
		return *p.ValueInt
	case p.ValueDec != nil:
		return *p.ValueDec
	default:
		return nil
	}
}

func (p *Provider) mustNode(c provider.Context) *node {
	h, err := p.own(c)
	if err != nil {
		return nil
	}
	n, ok := p.byCode[h.code]
	if !ok {
		return nil
	}
	return n
}

// --- Hierarchy ---

func (p *Provider) Parent(_ context.Context, code string) (string, bool) {
	n, ok := p.node(code)
	if !ok || !n.hasParent {
		return "", false
	}
	return n.parent, true
}

func (p *Provider) SameConcept(a, b provider.Context) bool {
	ha, errA := p.own(a)
	hb, errB := p.own(b)
	if errA != nil || errB != nil {
		return false
	}
	return ha.code == hb.code
}

func (p *Provider) LocateIsA(_ context.Context, child, parentCode string, disallowSelf bool) (provider.LocateResult, error) {
	if _, ok := p.byCode[parentCode]; !ok {
		return provider.LocateResult{Message: fmt.Sprintf("Code %q not found", parentCode)}, nil
	}
	if child == parentCode {
		if disallowSelf {
			return provider.LocateResult{Message: "concept is not a strict descendant of itself"}, nil
		}
		return provider.LocateResult{Context: &handle{system: p.cs.URL, code: child}}, nil
	}
	cur := child
	for {
		n, ok := p.byCode[cur]
		if !ok || !n.hasParent {
			return provider.LocateResult{Message: fmt.Sprintf("%q is not a descendant of %q", child, parentCode)}, nil
		}
		if n.parent == parentCode {
			return provider.LocateResult{Context: &handle{system: p.cs.URL, code: child}}, nil
		}
		cur = n.parent
	}
}

func (p *Provider) SubsumesTest(_ context.Context, a, b string) (provider.Subsumption, error) {
	if _, ok := p.byCode[a]; !ok {
		return "", provider.ErrNotFound
	}
	if _, ok := p.byCode[b]; !ok {
		return "", provider.ErrNotFound
	}
	if a == b {
		return provider.Equivalent, nil
	}
	if p.isDescendant(b, a) {
		return provider.Subsumes, nil
	}
	if p.isDescendant(a, b) {
		return provider.SubsumedBy, nil
	}
	return provider.NotSubsumed, nil
}

func (p *Provider) isDescendant(code, ancestor string) bool {
	cur := code
	for {
		n, ok := p.byCode[cur]
		if !ok || !n.hasParent {
			return false
		}
		if n.parent == ancestor {
			return true
		}
		cur = n.parent
	}
}

// --- Iteration ---

type sliceCursor struct {
	system string
	codes  []string
	i      int
}

func (c *sliceCursor) Next(_ context.Context) (provider.Context, bool, error) {
	if c.i >= len(c.codes) {
		return nil, false, nil
	}
	h := &handle{system: c.system, code: c.codes[c.i]}
	c.i++
	return h, true, nil
}

func (c *sliceCursor) Size() (int, bool) { return len(c.codes) - c.i, true }

func (p *Provider) Iterator(_ context.Context, parent provider.Context) (provider.Cursor, error) {
	if parent == nil {
		return &sliceCursor{system: p.cs.URL, codes: append([]string(nil), p.roots...)}, nil
	}
	h, err := p.own(parent)
	if err != nil {
		return nil, err
	}
	return &sliceCursor{system: p.cs.URL, codes: append([]string(nil), p.children[h.code]...)}, nil
}

func (p *Provider) IteratorAll(_ context.Context) (provider.Cursor, error) {
	return &sliceCursor{system: p.cs.URL, codes: p.AllCodes()}, nil
}

// --- Filterable ---

func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	switch op {
	case concept.OpIsA, concept.OpIsNotA, concept.OpDescendentOf, concept.OpGeneralizes:
		return property == "concept" || property == "code"
	case concept.OpEquals, concept.OpIn, concept.OpNotIn, concept.OpRegex:
		return true
	case concept.OpExists:
		return property == "child"
	}
	return false
}

// CompileRegex compiles a regex filter value, returning the
// "Invalid regex pattern" diagnostic on failure.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("Invalid regex pattern: %w", err)
	}
	return re, nil
}

// Descendants returns every code in the subtree rooted at code
// (excluding code itself), used by the filter engine's is-a/descendent-of
// execution.
func (p *Provider) Descendants(code string) []string {
	var out []string
	var walk func(c string)
	walk = func(c string) {
		for _, child := range p.children[c] {
			out = append(out, child)
			walk(child)
		}
	}
	walk(code)
	return out
}

// MatchProperty reports whether code has property `prop` equal to value
// (used by the filter engine's "=" and "in"/"not-in" property filters).
// The pseudo-properties "code" and "child" resolve against the code
// itself and the child index rather than declared properties.
func (p *Provider) MatchProperty(code, prop, value string) bool {
	n, ok := p.byCode[code]
	if !ok {
		return false
	}
	switch prop {
	case "code":
		return code == value
	case "child":
		return p.childExists(code) == (value == "true")
	}
	for _, cp := range n.Property {
		if cp.Code != prop {
			continue
		}
		if cp.ValueCode == value || cp.ValueStr == value {
			return true
		}
	}
	return false
}

// PropertyValues returns every declared value of prop on code, for the
// filter engine's regex and exists property filters.
func (p *Provider) PropertyValues(code, prop string) []string {
	n, ok := p.byCode[code]
	if !ok {
		return nil
	}
	var out []string
	for _, cp := range n.Property {
		if cp.Code != prop {
			continue
		}
		if cp.ValueCode != "" {
			out = append(out, cp.ValueCode)
		} else if cp.ValueStr != "" {
			out = append(out, cp.ValueStr)
		}
	}
	return out
}

// Ancestors returns the parent chain of code, nearest first, for the
// generalizes filter.
func (p *Provider) Ancestors(code string) []string {
	var out []string
	n, ok := p.byCode[code]
	for ok && n.hasParent {
		out = append(out, n.parent)
		n, ok = p.byCode[n.parent]
	}
	return out
}

// AllCodes returns every indexed code, ascending, for deterministic
// iteration.
func (p *Provider) AllCodes() []string {
	out := make([]string, 0, len(p.byCode))
	for code := range p.byCode {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

var _ provider.Provider = (*Provider)(nil)
var _ provider.Hierarchy = (*Provider)(nil)
var _ provider.Iteration = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)

// childExists reports whether code has at least one declared child
// (used by the "child exists" filter).
func (p *Provider) childExists(code string) bool {
	return len(p.children[code]) > 0
}

// ChildExists is the exported form of childExists for the filter engine.
func (p *Provider) ChildExists(code string) bool { return p.childExists(code) }
