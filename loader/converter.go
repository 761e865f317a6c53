package loader

import (
	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/termserver/pkg/concept"
)

// R4Converter converts R4 FHIR models to the internal concept domain:
// ConvertCodeSystem/ConvertValueSet/ConvertConceptMap, which feed
// registry/providers.go and pkg/resourceval before a resource is
// registered with a provider.
type R4Converter struct{}

// NewR4Converter creates a new R4 converter.
func NewR4Converter() *R4Converter {
	return &R4Converter{}
}

// ConvertCodeSystem converts an r4.CodeSystem to concept.CodeSystem.
func (c *R4Converter) ConvertCodeSystem(cs *r4.CodeSystem) *concept.CodeSystem {
	if cs == nil {
		return nil
	}

	result := &concept.CodeSystem{
		URL:              derefString(cs.Url),
		Version:          derefString(cs.Version),
		Name:             derefString(cs.Name),
		Status:           string(derefPublicationStatus(cs.Status)),
		Content:          concept.CodeSystemContent(derefCodeSystemContentMode(cs.Content)),
		Language:         derefString(cs.Language),
		Supplements:      derefString(cs.Supplements),
		CaseSensitive:    derefBool(cs.CaseSensitive),
		HierarchyMeaning: string(derefCodeSystemHierarchyMeaning(cs.HierarchyMeaning)),
	}

	for i := range cs.Property {
		p := &cs.Property[i]
		result.Property = append(result.Property, concept.PropertyDefinition{
			Code:        derefString(p.Code),
			URI:         derefString(p.Uri),
			Description: derefString(p.Description),
			Type:        string(derefPropertyType(p.Type)),
		})
	}

	for i := range cs.Filter {
		f := &cs.Filter[i]
		result.FilterDef = append(result.FilterDef, concept.FilterDefinition{
			Code:        derefString(f.Code),
			Description: derefString(f.Description),
			Operator:    convertFilterOperators(f.Operator),
			Value:       derefString(f.Value),
		})
	}

	result.Concept = c.convertCodeSystemConcepts(cs.Concept)
	return result
}

func (c *R4Converter) convertCodeSystemConcepts(concepts []r4.CodeSystemConcept) []concept.CodeSystemConcept {
	if len(concepts) == 0 {
		return nil
	}

	result := make([]concept.CodeSystemConcept, 0, len(concepts))
	for i := range concepts {
		cc := &concepts[i]
		node := concept.CodeSystemConcept{
			Code:       derefString(cc.Code),
			Display:    derefString(cc.Display),
			Definition: derefString(cc.Definition),
		}

		for j := range cc.Designation {
			d := &cc.Designation[j]
			node.Designation = append(node.Designation, concept.Designation{
				Language: derefString(d.Language),
				Use:      convertDesignationUse(d.Use),
				Value:    derefString(d.Value),
			})
		}

		for j := range cc.Property {
			p := &cc.Property[j]
			node.Property = append(node.Property, concept.ConceptProperty{
				Code:      derefString(p.Code),
				ValueCode: derefString(p.ValueCode),
				ValueStr:  derefString(p.ValueString),
				ValueBool: p.ValueBoolean,
				ValueInt:  derefIntFromInteger(p.ValueInteger),
				ValueDec:  p.ValueDecimal,
			})
		}

		node.Concept = c.convertCodeSystemConcepts(cc.Concept)
		result = append(result, node)
	}
	return result
}

// ConvertValueSet converts an r4.ValueSet to concept.ValueSet.
func (c *R4Converter) ConvertValueSet(vs *r4.ValueSet) *concept.ValueSet {
	if vs == nil {
		return nil
	}

	result := &concept.ValueSet{
		URL:     derefString(vs.Url),
		Version: derefString(vs.Version),
		Name:    derefString(vs.Name),
		Status:  string(derefPublicationStatus(vs.Status)),
	}

	if vs.Compose != nil {
		result.Compose = concept.Compose{
			LockedDate: derefString(vs.Compose.LockedDate),
			Inactive:   derefBool(vs.Compose.Inactive),
			Include:    c.convertComposeIncludes(vs.Compose.Include),
			Exclude:    c.convertComposeIncludes(vs.Compose.Exclude),
		}
	}

	return result
}

func (c *R4Converter) convertComposeIncludes(includes []r4.ValueSetComposeInclude) []concept.ComposeInclude {
	if len(includes) == 0 {
		return nil
	}

	result := make([]concept.ComposeInclude, 0, len(includes))
	for i := range includes {
		inc := &includes[i]
		ci := concept.ComposeInclude{
			System:  derefString(inc.System),
			Version: derefString(inc.Version),
		}

		for j := range inc.Concept {
			cc := &inc.Concept[j]
			entry := concept.ComposeConcept{
				Code:    derefString(cc.Code),
				Display: derefString(cc.Display),
			}
			for k := range cc.Designation {
				d := &cc.Designation[k]
				entry.Designation = append(entry.Designation, concept.Designation{
					Language: derefString(d.Language),
					Use:      convertDesignationUse(d.Use),
					Value:    derefString(d.Value),
				})
			}
			ci.Concept = append(ci.Concept, entry)
		}

		for j := range inc.Filter {
			f := &inc.Filter[j]
			ci.Filter = append(ci.Filter, concept.ComposeFilter{
				Property: derefString(f.Property),
				Op:       concept.FilterOp(derefFilterOperator(f.Op)),
				Value:    derefString(f.Value),
			})
		}

		ci.ValueSet = append(ci.ValueSet, inc.ValueSet...)

		result = append(result, ci)
	}
	return result
}

// ConvertConceptMap converts an r4.ConceptMap to concept.ConceptMap.
func (c *R4Converter) ConvertConceptMap(cm *r4.ConceptMap) *concept.ConceptMap {
	if cm == nil {
		return nil
	}

	result := &concept.ConceptMap{
		URL:     derefString(cm.Url),
		Version: derefString(cm.Version),
		Name:    derefString(cm.Name),
		Status:  string(derefPublicationStatus(cm.Status)),
		Source:  derefString(cm.SourceCanonical),
		Target:  derefString(cm.TargetCanonical),
	}

	for i := range cm.Group {
		g := &cm.Group[i]
		group := concept.ConceptMapGroup{
			Source: derefString(g.Source),
			Target: derefString(g.Target),
		}

		for j := range g.Element {
			e := &g.Element[j]
			elem := concept.ConceptMapElement{
				Code:    derefString(e.Code),
				Display: derefString(e.Display),
			}

			for k := range e.Target {
				t := &e.Target[k]
				target := concept.ConceptMapTarget{
					Code:        derefString(t.Code),
					Display:     derefString(t.Display),
					Equivalence: concept.ConceptMapEquivalence(derefConceptMapEquivalence(t.Equivalence)),
					Comment:     derefString(t.Comment),
				}
				for l := range t.DependsOn {
					target.DependsOn = append(target.DependsOn, convertConceptMapDependency(&t.DependsOn[l]))
				}
				for l := range t.Product {
					target.Product = append(target.Product, convertConceptMapDependency(&t.Product[l]))
				}
				elem.Target = append(elem.Target, target)
			}

			group.Element = append(group.Element, elem)
		}

		result.Group = append(result.Group, group)
	}

	return result
}

func convertConceptMapDependency(d *r4.ConceptMapGroupElementTargetDependsOn) concept.ConceptMapDependency {
	return concept.ConceptMapDependency{
		Property: derefString(d.Property),
		System:   derefString(d.System),
		Value:    derefString(d.Value),
		Display:  derefString(d.Display),
	}
}

func convertDesignationUse(use *r4.Coding) *concept.Coding {
	if use == nil {
		return nil
	}
	return &concept.Coding{
		System:  derefString(use.System),
		Version: derefString(use.Version),
		Code:    derefString(use.Code),
		Display: derefString(use.Display),
	}
}

func convertFilterOperators(ops []r4.FilterOperator) []string {
	if len(ops) == 0 {
		return nil
	}
	result := make([]string, 0, len(ops))
	for _, op := range ops {
		result = append(result, string(op))
	}
	return result
}

func derefFilterOperator(op *r4.FilterOperator) string {
	if op == nil {
		return ""
	}
	return string(*op)
}

func derefPublicationStatus(s *r4.PublicationStatus) r4.PublicationStatus {
	if s == nil {
		return ""
	}
	return *s
}

func derefCodeSystemContentMode(m *r4.CodeSystemContentMode) r4.CodeSystemContentMode {
	if m == nil {
		return ""
	}
	return *m
}

func derefCodeSystemHierarchyMeaning(m *r4.CodeSystemHierarchyMeaning) r4.CodeSystemHierarchyMeaning {
	if m == nil {
		return ""
	}
	return *m
}

func derefPropertyType(t *r4.PropertyType) r4.PropertyType {
	if t == nil {
		return ""
	}
	return *t
}

func derefConceptMapEquivalence(e *r4.ConceptMapEquivalence) r4.ConceptMapEquivalence {
	if e == nil {
		return ""
	}
	return *e
}

func derefIntFromInteger(i *int32) *int {
	if i == nil {
		return nil
	}
	v := int(*i)
	return &v
}

// Generic helpers

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
