package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/provider"
	"github.com/gofhir/termserver/pkg/provider/fhircs"
	"github.com/gofhir/termserver/pkg/resourceval"
)

// Providers is the system-URL -> Provider registry. It also keeps the
// raw CodeSystem/ValueSet/ConceptMap resources a provider or expansion
// was built from, so pkg/resourceval
// can check cross-resource invariants (e.g. a supplement against its
// base) and service/ can resolve ValueSet/ConceptMap references by URL.
//
// Implements pkg/expansion.Resolver.
type Providers struct {
	mu          sync.RWMutex
	byURL       map[string]provider.Provider
	codeSystems map[string]*concept.CodeSystem
	valueSets   map[string]*concept.ValueSet
	conceptMaps map[string]*concept.ConceptMap
	// pendingSupplements holds supplement CodeSystems whose base hasn't
	// been registered yet, keyed by the base URL; package load order
	// doesn't guarantee bases arrive first.
	pendingSupplements map[string][]*concept.CodeSystem
}

// NewProviders creates an empty registry.
func NewProviders() *Providers {
	return &Providers{
		byURL:              make(map[string]provider.Provider),
		codeSystems:        make(map[string]*concept.CodeSystem),
		valueSets:          make(map[string]*concept.ValueSet),
		conceptMaps:        make(map[string]*concept.ConceptMap),
		pendingSupplements: make(map[string][]*concept.CodeSystem),
	}
}

// supplementable is the capability a provider needs to accept supplement
// designations/properties; implemented by fhircs.Provider.
type supplementable interface {
	RegisterSupplement(sup *concept.CodeSystem, supplementURL string) error
}

// Register attaches a provider to a system URL, overwriting any
// previous registration for that URL (a later CodeSystem version or an
// operator-supplied external provider wins).
func (p *Providers) Register(system string, prov provider.Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byURL[system] = prov
}

// ProviderFor implements pkg/expansion.Resolver.
func (p *Providers) ProviderFor(system string) (provider.Provider, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prov, ok := p.byURL[system]
	return prov, ok
}

// RegisterCodeSystem stores cs and, when its content is complete or
// fragment, builds and registers an in-memory fhircs.Provider for it —
// the path a loaded FHIR package's CodeSystem-*.json resources take
// (registry/loader.go). SQL-backed and external provider families
// (snomed, loinc, rxnorm, ndc, cpt, omop, ucum, hgvs, bcp47) are wired
// separately via Register, since their content lives outside any single
// CodeSystem resource.
func (p *Providers) RegisterCodeSystem(cs *concept.CodeSystem) error {
	if cs == nil || cs.URL == "" {
		return fmt.Errorf("registry: codesystem has no url")
	}

	p.mu.Lock()
	p.codeSystems[cs.URL] = cs
	p.mu.Unlock()

	switch cs.Content {
	case concept.ContentComplete, concept.ContentFragment:
		prov, err := fhircs.New(cs)
		if err != nil {
			return fmt.Errorf("registry: building fhircs provider for %s: %w", cs.URL, err)
		}
		p.Register(cs.URL, prov)

		p.mu.Lock()
		pending := p.pendingSupplements[cs.URL]
		delete(p.pendingSupplements, cs.URL)
		p.mu.Unlock()
		for _, sup := range pending {
			if err := p.applySupplement(prov, sup); err != nil {
				return err
			}
		}

	case concept.ContentSupplement:
		base, _ := splitCanonical(cs.Supplements)
		if base == "" {
			return fmt.Errorf("registry: supplement %s names no base", cs.URL)
		}
		prov, ok := p.ProviderFor(base)
		if !ok {
			p.mu.Lock()
			p.pendingSupplements[base] = append(p.pendingSupplements[base], cs)
			p.mu.Unlock()
			return nil
		}
		return p.applySupplement(prov, cs)
	}
	return nil
}

// applySupplement merges sup into a base provider that can take it,
// first checking it introduces no codes the base doesn't declare.
func (p *Providers) applySupplement(prov provider.Provider, sup *concept.CodeSystem) error {
	sp, ok := prov.(supplementable)
	if !ok {
		return fmt.Errorf("registry: provider for %s cannot accept supplement %s", sup.Supplements, sup.URL)
	}
	base, _ := splitCanonical(sup.Supplements)
	if baseCS, ok := p.CodeSystemByURL(base); ok {
		for _, iss := range resourceval.ValidateSupplementAgainstBase(sup, baseCS) {
			if iss.IsError() {
				return fmt.Errorf("registry: supplement %s rejected: %s", sup.URL, iss.Diagnostics)
			}
		}
	}
	return sp.RegisterSupplement(sup, sup.URL)
}

// splitCanonical splits a "url|version" canonical reference.
func splitCanonical(ref string) (url, version string) {
	if i := strings.IndexByte(ref, '|'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

// CodeSystemByURL returns the raw CodeSystem resource registered for a
// URL, independent of whether a Provider was built for it.
func (p *Providers) CodeSystemByURL(url string) (*concept.CodeSystem, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cs, ok := p.codeSystems[url]
	return cs, ok
}

// RegisterValueSet stores vs for later resolution by URL, both for
// pkg/expansion's ValueSet-of-ValueSet recursion and for $validate-code/
// $expand callers that pass a valueSet canonical URL.
func (p *Providers) RegisterValueSet(vs *concept.ValueSet) error {
	if vs == nil || vs.URL == "" {
		return fmt.Errorf("registry: valueset has no url")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valueSets[vs.URL] = vs
	return nil
}

// ValueSetByURL implements pkg/expansion.Resolver.
func (p *Providers) ValueSetByURL(url string) (*concept.ValueSet, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	vs, ok := p.valueSets[url]
	return vs, ok
}

// RegisterConceptMap stores cm, indexed for $translate lookup by its own
// canonical URL.
func (p *Providers) RegisterConceptMap(cm *concept.ConceptMap) error {
	if cm == nil || cm.URL == "" {
		return fmt.Errorf("registry: conceptmap has no url")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conceptMaps[cm.URL] = cm
	return nil
}

// ConceptMapByURL returns a registered ConceptMap by its own canonical URL.
func (p *Providers) ConceptMapByURL(url string) (*concept.ConceptMap, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cm, ok := p.conceptMaps[url]
	return cm, ok
}

// ResourceByID finds a stored CodeSystem, ValueSet, or ConceptMap by its
// logical id, serving the read endpoint. The id is taken as the last
// path segment of a resource's canonical URL, the usual FHIR convention
// for package-sourced resources
// (e.g. "http://example.org/ValueSet/animals" has id "animals").
func (p *Providers) ResourceByID(resourceType, id string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch resourceType {
	case "CodeSystem":
		for _, cs := range p.codeSystems {
			if urlID(cs.URL) == id {
				return cs, true
			}
		}
	case "ValueSet":
		for _, vs := range p.valueSets {
			if urlID(vs.URL) == id {
				return vs, true
			}
		}
	case "ConceptMap":
		for _, cm := range p.conceptMaps {
			if urlID(cm.URL) == id {
				return cm, true
			}
		}
	}
	return nil, false
}

func urlID(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

// ConceptMapsFor returns every registered ConceptMap whose source/target
// pair could translate from sourceSystem, used by $translate when no
// explicit ConceptMap URL is given.
func (p *Providers) ConceptMapsFor(sourceSystem, targetSystem string) []*concept.ConceptMap {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*concept.ConceptMap
	for _, cm := range p.conceptMaps {
		for _, g := range cm.Group {
			if g.Source != sourceSystem {
				continue
			}
			if targetSystem != "" && g.Target != targetSystem {
				continue
			}
			out = append(out, cm)
			break
		}
	}
	return out
}
