// Package snomed implements the SNOMED CT provider: a
// multi-parent concept graph backed by a precompiled cache, multilingual
// descriptions, reference set membership, and ECL-backed filter
// expressions.
//
// Grounded on other_examples' wardle-go-terminology RF2 model
// (snomed-model.go: DescriptionTypeID/CaseSignificanceID/LanguageTag,
// Concept/Description/Relationship shapes) and server-concepts.go's
// graph-of-relationships approach to parent/child computation, adapted
// from RF2's raw release-file shapes to an in-memory indexed provider.
package snomed

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/text/language"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/designation"
	"github.com/gofhir/termserver/pkg/ecl"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/provider"
)

// IsARelationship is the SNOMED "Is a" attribute's well-known concept id.
const IsARelationship = "116680003"

// ConceptModelAttributeRoot is the root concept of the "Concept model
// attribute" hierarchy; every valid relationship type descends from it
//.
const ConceptModelAttributeRoot = "410662002"

// Description is one SNOMED description (RF2's Description file row,
// trimmed to the fields the provider needs).
type Description struct {
	Term     string
	Language string // BCP-47, derived from RF2 languageCode + dialect refset
	TypeID   string // Synonym | FullySpecifiedName | Definition
	Active   bool
}

// LanguageTag parses Description.Language into an x/text/language.Tag.
func (d Description) LanguageTag() language.Tag {
	return language.Make(d.Language)
}

// RawConcept is one loaded SNOMED concept plus its descriptions and
// outbound relationships (attribute id -> target concept ids), as
// produced by a release loader; the backing cache format is opaque
// to this package.
type RawConcept struct {
	ID            string
	Active        bool
	Descriptions  []Description
	Relationships map[string][]string // attributeID -> target concept ids (includes "116680003" for Is-a)
}

// Provider is the SNOMED CT provider.
type Provider struct {
	system      string
	version     string
	concepts    map[string]*RawConcept
	parents     map[string][]string // concept -> Is-a parents (may be multiple)
	children    map[string][]string // concept -> Is-a children
	refsets     map[string][]string // refset id -> member concept ids
	wildcardCap int
}

type handle struct{ code string }

func (h handle) Tag() string { return "http://snomed.info/sct" }

// New builds a Provider from a flat concept map. version is the SNOMED
// edition/release version string (e.g. "http://snomed.info/sct/900000000000207008/version/20240101").
func New(version string, concepts map[string]*RawConcept) *Provider {
	p := &Provider{
		system:   "http://snomed.info/sct",
		version:  version,
		concepts: concepts,
		parents:  make(map[string][]string),
		children: make(map[string][]string),
		refsets:  make(map[string][]string),
	}
	for id, c := range concepts {
		for _, parent := range c.Relationships[IsARelationship] {
			p.parents[id] = append(p.parents[id], parent)
			p.children[parent] = append(p.children[parent], id)
		}
	}
	return p
}

// RegisterRefset associates member concepts with a reference set id, for
// "^" member-of ECL expressions and the refset-membership filter.
func (p *Provider) RegisterRefset(refsetID string, members []string) {
	p.refsets[refsetID] = append(p.refsets[refsetID], members...)
}

// SetWildcardCap overrides the ECL wildcard result cap for this provider
// (0 keeps ecl.DefaultWildcardCap).
func (p *Provider) SetWildcardCap(n int) { p.wildcardCap = n }

// --- Metadata ---

func (p *Provider) System() string                         { return p.system }
func (p *Provider) Version() string                        { return p.version }
func (p *Provider) Description() string                    { return "SNOMED CT" }
func (p *Provider) TotalCount() (int, bool)                { return len(p.concepts), true }
func (p *Provider) HasParents() bool                       { return true }
func (p *Provider) ContentMode() concept.CodeSystemContent { return concept.ContentComplete }
func (p *Provider) ListSupplements() []string              { return nil }

func (p *Provider) HasAnyDisplays(languages lang.Languages) bool {
	if languages.Empty() {
		return len(p.concepts) > 0
	}
	for _, c := range p.concepts {
		for _, d := range c.Descriptions {
			if languages.Matches(d.Language) {
				return true
			}
		}
	}
	return false
}

// --- ConceptAccess ---

func (p *Provider) Locate(_ context.Context, code string) (provider.LocateResult, error) {
	if code == "" {
		return provider.LocateResult{Message: "Empty code"}, nil
	}
	c, ok := p.concepts[code]
	if !ok {
		return provider.LocateResult{Message: fmt.Sprintf("Concept %q not found", code)}, nil
	}
	if !c.Active {
		// Inactive concepts are still locatable (IsInactive reports
		// true); only an unknown id fails to locate.
	}
	return provider.LocateResult{Context: handle{code: code}}, nil
}

func (p *Provider) own(c provider.Context) (*RawConcept, error) {
	h, ok := c.(handle)
	if !ok {
		return nil, provider.ErrTypeMismatch
	}
	rc, ok := p.concepts[h.code]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return rc, nil
}

func (p *Provider) Code(_ context.Context, c provider.Context) (string, error) {
	h, ok := c.(handle)
	if !ok {
		return "", provider.ErrTypeMismatch
	}
	return h.code, nil
}

func (p *Provider) Display(ctx context.Context, c provider.Context) (string, error) {
	return p.bestTerm(c, lang.Languages{})
}

func (p *Provider) bestTerm(c provider.Context, languages lang.Languages) (string, error) {
	rc, err := p.own(c)
	if err != nil {
		return "", err
	}
	set := designation.NewSet()
	for _, d := range rc.Descriptions {
		if !d.Active {
			continue
		}
		set.AddBase(concept.Designation{
			Language: d.Language,
			Value:    d.Term,
			Use:      &concept.Coding{System: p.system, Code: d.TypeID},
		})
	}
	if v, ok := set.Best(languages); ok {
		return v, nil
	}
	return "", nil
}

// DisplayWithLanguages resolves a display using an explicit language
// preference list, used by $lookup's displayLanguage parameter.
func (p *Provider) DisplayWithLanguages(c provider.Context, languages lang.Languages) (string, error) {
	return p.bestTerm(c, languages)
}

func (p *Provider) Designations(_ context.Context, c provider.Context, out *[]concept.Designation) error {
	rc, err := p.own(c)
	if err != nil {
		return err
	}
	for _, d := range rc.Descriptions {
		if !d.Active {
			continue
		}
		*out = append(*out, concept.Designation{
			Language: d.Language,
			Value:    d.Term,
			Use:      &concept.Coding{System: p.system, Code: d.TypeID},
		})
	}
	return nil
}

func (p *Provider) IsAbstract(provider.Context) bool { return false }

func (p *Provider) IsInactive(c provider.Context) bool {
	rc, err := p.own(c)
	return err == nil && !rc.Active
}

func (p *Provider) IsDeprecated(c provider.Context) bool { return p.IsInactive(c) }

func (p *Provider) GetStatus(c provider.Context) string {
	if p.IsInactive(c) {
		return "inactive"
	}
	return "active"
}

func (p *Provider) ItemWeight(provider.Context) (float64, bool)    { return 0, false }
func (p *Provider) Extensions(provider.Context) []concept.Property { return nil }

func (p *Provider) Properties(_ context.Context, c provider.Context) ([]concept.Property, error) {
	rc, err := p.own(c)
	if err != nil {
		return nil, err
	}
	out := []concept.Property{{Code: "inactive", Value: !rc.Active}}
	for attr, targets := range rc.Relationships {
		for _, t := range targets {
			out = append(out, concept.Property{Code: attr, Value: t})
		}
	}
	return out, nil
}

// --- Hierarchy ---

func (p *Provider) Parent(_ context.Context, code string) (string, bool) {
	parents := p.parents[code]
	if len(parents) == 0 {
		return "", false
	}
	return parents[0], true // primary parent; see Parents for the full multi-parent set
}

// Parents returns every Is-a parent of code (SNOMED concepts may have
// several), not just the single value Parent returns for the Hierarchy
// interface's simpler contract.
func (p *Provider) Parents(code string) []string {
	return append([]string(nil), p.parents[code]...)
}

func (p *Provider) SameConcept(a, b provider.Context) bool {
	ha, okA := a.(handle)
	hb, okB := b.(handle)
	return okA && okB && ha.code == hb.code
}

func (p *Provider) LocateIsA(_ context.Context, child, parentCode string, disallowSelf bool) (provider.LocateResult, error) {
	if child == parentCode {
		if disallowSelf {
			return provider.LocateResult{Message: "not a strict descendant of itself"}, nil
		}
		return provider.LocateResult{Context: handle{code: child}}, nil
	}
	if p.isDescendant(child, parentCode) {
		return provider.LocateResult{Context: handle{code: child}}, nil
	}
	return provider.LocateResult{Message: fmt.Sprintf("%q is not a descendant of %q", child, parentCode)}, nil
}

func (p *Provider) isDescendant(code, ancestor string) bool {
	visited := make(map[string]bool)
	var walk func(c string) bool
	walk = func(c string) bool {
		if visited[c] {
			return false
		}
		visited[c] = true
		for _, parent := range p.parents[c] {
			if parent == ancestor || walk(parent) {
				return true
			}
		}
		return false
	}
	return walk(code)
}

func (p *Provider) SubsumesTest(_ context.Context, a, b string) (provider.Subsumption, error) {
	if _, ok := p.concepts[a]; !ok {
		return "", provider.ErrNotFound
	}
	if _, ok := p.concepts[b]; !ok {
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

// --- ecl.Graph ---

func (p *Provider) Descendants(code string) []string {
	visited := make(map[string]bool)
	var out []string
	var walk func(c string)
	walk = func(c string) {
		for _, child := range p.children[c] {
			if !visited[child] {
				visited[child] = true
				out = append(out, child)
				walk(child)
			}
		}
	}
	walk(code)
	return out
}

func (p *Provider) Ancestors(code string) []string {
	visited := make(map[string]bool)
	var out []string
	var walk func(c string)
	walk = func(c string) {
		for _, parent := range p.parents[c] {
			if !visited[parent] {
				visited[parent] = true
				out = append(out, parent)
				walk(parent)
			}
		}
	}
	walk(code)
	return out
}

func (p *Provider) AllCodes() []string {
	out := make([]string, 0, len(p.concepts))
	for id := range p.concepts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PropertyValues returns the targets of attribute prop on code, for the
// filter engine's generic property filters.
func (p *Provider) PropertyValues(code, prop string) []string {
	return p.RelationshipTargets(code, prop)
}

func (p *Provider) RelationshipTargets(code, attrCode string) []string {
	c, ok := p.concepts[code]
	if !ok {
		return nil
	}
	return c.Relationships[attrCode]
}

func (p *Provider) MemberOf(refsetID string) []string {
	return append([]string(nil), p.refsets[refsetID]...)
}

func (p *Provider) MatchProperty(code, prop, value string) bool {
	c, ok := p.concepts[code]
	if !ok {
		return false
	}
	if prop == "inactive" {
		return fmt.Sprintf("%v", !c.Active) == value
	}
	for _, v := range c.Relationships[prop] {
		if v == value {
			return true
		}
	}
	return false
}

// --- Filterable ---

func (p *Provider) DoesFilter(property string, op concept.FilterOp, value string) bool {
	switch {
	case property == "concept" && (op == concept.OpIsA || op == concept.OpIsNotA || op == concept.OpDescendentOf || op == concept.OpGeneralizes):
		return true
	case property == "concept" && (op == concept.OpEquals || op == concept.OpIn):
		return true
	case property == "constraint" && op == concept.OpEquals:
		return true // ECL expression filter: value is the ECL source
	case property == "expression" && op == concept.OpEquals:
		return true
	case property == "expressions" && op == concept.OpEquals:
		return true
	default:
		return false
	}
}

// EvaluateExpressionFilter evaluates an "expression = <ECL>" compose
// filter by delegating to pkg/ecl.
func (p *Provider) EvaluateExpressionFilter(ctx context.Context, eclSource string) ([]string, error) {
	expr, err := ecl.Parse(eclSource)
	if err != nil {
		return nil, err
	}
	if errs := ecl.ValidateTerms(expr, p); len(errs) > 0 {
		return nil, errs[0]
	}
	if err := ecl.Validate(expr, permissiveDomain{}); err != nil {
		return nil, err
	}
	cap := p.wildcardCap
	if cap <= 0 {
		cap = ecl.DefaultWildcardCap
	}
	return ecl.EvaluateWithCap(ctx, expr, p, cap)
}

// ActiveDescriptions returns the active description terms of conceptID,
// for ECL's term validation pass.
func (p *Provider) ActiveDescriptions(conceptID string) []string {
	c, ok := p.concepts[conceptID]
	if !ok {
		return nil
	}
	var out []string
	for _, d := range c.Descriptions {
		if d.Active {
			out = append(out, d.Term)
		}
	}
	return out
}

// permissiveDomain treats every attribute as valid with no range
// restriction, used until a real MRCM reference set is wired; this
// keeps each validation phase independent: a provider without loaded
// MRCM data degrades to skipping semantic validation rather than
// rejecting every expression.
type permissiveDomain struct{}

func (permissiveDomain) KnownAttribute(string) bool               { return true }
func (permissiveDomain) RuleFor(string) (ecl.AttributeRule, bool) { return ecl.AttributeRule{}, false }
func (permissiveDomain) IsDescendantOrSelf(_, _ string) bool      { return true }

var _ provider.Provider = (*Provider)(nil)
var _ provider.Hierarchy = (*Provider)(nil)
var _ provider.Filterable = (*Provider)(nil)
var _ ecl.Graph = (*Provider)(nil)
var _ ecl.Descriptions = (*Provider)(nil)
