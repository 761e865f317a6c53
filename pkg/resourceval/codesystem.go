package resourceval

import (
	"fmt"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/concept"
)

const phaseCodeSystem = "resourceval.codesystem"

var validPropertyTypes = map[string]bool{
	"code": true, "Coding": true, "string": true, "integer": true,
	"boolean": true, "dateTime": true, "decimal": true,
}

var validHierarchyMeanings = map[string]bool{
	"": true, "grouped-by": true, "is-a": true, "part-of": true, "classified-with": true,
}

var validContent = map[concept.CodeSystemContent]bool{
	concept.ContentComplete: true, concept.ContentFragment: true, concept.ContentExample: true,
	concept.ContentNotPresent: true, concept.ContentSupplement: true,
}

// ValidateCodeSystem checks the structural invariants of an inbound
// CodeSystem: url/status/content required, declared
// property types and filter operators well-formed, and codes unique
// across the whole concept tree. It never fails fatally — a nil or
// severely malformed resource comes back as a single required-element
// issue, leaving hard invariant enforcement (duplicate code, missing
// code) to the provider constructor that actually indexes the tree.
func ValidateCodeSystem(cs *concept.CodeSystem) []termserver.Issue {
	var issues []termserver.Issue
	if cs == nil {
		return append(issues, required(phaseCodeSystem, "CodeSystem"))
	}

	if cs.URL == "" {
		issues = append(issues, required(phaseCodeSystem, "CodeSystem.url"))
	}
	if cs.Status == "" {
		issues = append(issues, required(phaseCodeSystem, "CodeSystem.status"))
	}
	if !validContent[cs.Content] {
		issues = append(issues, invalidValue(phaseCodeSystem, "CodeSystem.content",
			fmt.Sprintf("unrecognized content mode %q", cs.Content)))
	}
	if !validHierarchyMeanings[cs.HierarchyMeaning] {
		issues = append(issues, invalidValue(phaseCodeSystem, "CodeSystem.hierarchyMeaning",
			fmt.Sprintf("unrecognized hierarchyMeaning %q", cs.HierarchyMeaning)))
	}

	if cs.Content == concept.ContentSupplement && cs.Supplements == "" {
		issues = append(issues, businessRuleError(phaseCodeSystem, "CodeSystem.supplements",
			"a supplement CodeSystem must declare CodeSystem.supplements"))
	}
	if cs.Content != concept.ContentSupplement && cs.Supplements != "" {
		issues = append(issues, businessRuleWarning(phaseCodeSystem, "CodeSystem.supplements",
			"CodeSystem.supplements is only meaningful when content = supplement"))
	}

	for i, pd := range cs.Property {
		if pd.Code == "" {
			issues = append(issues, required(phaseCodeSystem, fmt.Sprintf("CodeSystem.property[%d].code", i)))
		}
		if !validPropertyTypes[pd.Type] {
			issues = append(issues, invalidValue(phaseCodeSystem, fmt.Sprintf("CodeSystem.property[%d].type", i),
				fmt.Sprintf("unrecognized property type %q", pd.Type)))
		}
	}
	for i, fd := range cs.FilterDef {
		if fd.Code == "" {
			issues = append(issues, required(phaseCodeSystem, fmt.Sprintf("CodeSystem.filter[%d].code", i)))
		}
		if len(fd.Operator) == 0 {
			issues = append(issues, termserver.Warning(termserver.IssueTypeIncomplete).
				Diagnostics(fmt.Sprintf("filter %q declares no operators", fd.Code)).
				At(fmt.Sprintf("CodeSystem.filter[%d].operator", i)).Phase(phaseCodeSystem).Build())
		}
	}

	seen := make(map[string]bool)
	issues = append(issues, walkConcepts(cs.Concept, "CodeSystem.concept", seen)...)

	return issues
}

func walkConcepts(concepts []concept.CodeSystemConcept, path string, seen map[string]bool) []termserver.Issue {
	var issues []termserver.Issue
	for i, c := range concepts {
		elPath := fmt.Sprintf("%s[%d]", path, i)
		if c.Code == "" {
			issues = append(issues, required(phaseCodeSystem, elPath+".code"))
			continue
		}
		if seen[c.Code] {
			issues = append(issues, businessRuleError(phaseCodeSystem, elPath+".code",
				fmt.Sprintf("duplicate code %q", c.Code)))
		}
		seen[c.Code] = true
		if len(c.Concept) > 0 {
			issues = append(issues, walkConcepts(c.Concept, elPath+".concept", seen)...)
		}
	}
	return issues
}

// ValidateSupplementAgainstBase checks that a supplement contributes
// only additional designations/properties, never new codes, which
// cannot be checked from the supplement alone.
func ValidateSupplementAgainstBase(supplement, base *concept.CodeSystem) []termserver.Issue {
	var issues []termserver.Issue
	if supplement == nil || base == nil {
		return issues
	}
	baseCodes := make(map[string]bool)
	var index func([]concept.CodeSystemConcept)
	index = func(cs []concept.CodeSystemConcept) {
		for _, c := range cs {
			baseCodes[c.Code] = true
			index(c.Concept)
		}
	}
	index(base.Concept)

	var check func([]concept.CodeSystemConcept, string)
	check = func(cs []concept.CodeSystemConcept, path string) {
		for i, c := range cs {
			elPath := fmt.Sprintf("%s[%d]", path, i)
			if !baseCodes[c.Code] {
				issues = append(issues, businessRuleError(phaseCodeSystem, elPath+".code",
					fmt.Sprintf("supplement introduces code %q not present in base CodeSystem %q", c.Code, base.URL)))
			}
			check(c.Concept, elPath+".concept")
		}
	}
	check(supplement.Concept, "CodeSystem.concept")
	return issues
}

func required(phase, path string) termserver.Issue {
	return termserver.Error(termserver.IssueTypeRequired).
		Diagnostics(fmt.Sprintf("%s is required", path)).
		At(path).Phase(phase).Build()
}

func invalidValue(phase, path, msg string) termserver.Issue {
	return termserver.Error(termserver.IssueTypeValue).
		Diagnostics(msg).At(path).Phase(phase).Build()
}

func businessRuleError(phase, path, msg string) termserver.Issue {
	return termserver.Error(termserver.IssueTypeBusinessRule).
		Diagnostics(msg).At(path).Phase(phase).Build()
}

func businessRuleWarning(phase, path, msg string) termserver.Issue {
	return termserver.Warning(termserver.IssueTypeBusinessRule).
		Diagnostics(msg).At(path).Phase(phase).Build()
}
