package resourceval

import (
	"fmt"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/concept"
)

const phaseConceptMap = "resourceval.conceptmap"

var validEquivalence = map[concept.ConceptMapEquivalence]bool{
	concept.RelatedTo: true, concept.Equivalent: true,
	concept.SourceIsNarrowerThanTarget: true, concept.SourceIsBroaderThanTarget: true,
	concept.NotRelatedTo: true,
}

// ValidateConceptMap checks the structural invariants of an inbound
// ConceptMap: url/status required, each group names a source and
// target system, each element names a code, and every target carries
// one of the five $translate relationship values.
func ValidateConceptMap(cm *concept.ConceptMap) []termserver.Issue {
	var issues []termserver.Issue
	if cm == nil {
		return append(issues, required(phaseConceptMap, "ConceptMap"))
	}

	if cm.URL == "" {
		issues = append(issues, required(phaseConceptMap, "ConceptMap.url"))
	}
	if cm.Status == "" {
		issues = append(issues, required(phaseConceptMap, "ConceptMap.status"))
	}
	if len(cm.Group) == 0 {
		issues = append(issues, businessRuleWarning(phaseConceptMap, "ConceptMap.group",
			"ConceptMap declares no groups; $translate will never find a match"))
	}

	for i, g := range cm.Group {
		gPath := fmt.Sprintf("ConceptMap.group[%d]", i)
		if g.Source == "" {
			issues = append(issues, required(phaseConceptMap, gPath+".source"))
		}
		if g.Target == "" {
			issues = append(issues, required(phaseConceptMap, gPath+".target"))
		}
		for j, el := range g.Element {
			elPath := fmt.Sprintf("%s.element[%d]", gPath, j)
			if el.Code == "" {
				issues = append(issues, required(phaseConceptMap, elPath+".code"))
			}
			if len(el.Target) == 0 {
				issues = append(issues, businessRuleWarning(phaseConceptMap, elPath+".target",
					fmt.Sprintf("source code %q maps to no targets", el.Code)))
			}
			for k, tgt := range el.Target {
				tPath := fmt.Sprintf("%s.target[%d]", elPath, k)
				if tgt.Code == "" {
					issues = append(issues, required(phaseConceptMap, tPath+".code"))
				}
				if !validEquivalence[tgt.Equivalence] {
					issues = append(issues, invalidValue(phaseConceptMap, tPath+".equivalence",
						fmt.Sprintf("unrecognized equivalence %q", tgt.Equivalence)))
				}
				for d, dep := range tgt.DependsOn {
					if dep.Property == "" || dep.System == "" {
						issues = append(issues, required(phaseConceptMap,
							fmt.Sprintf("%s.dependsOn[%d]", tPath, d)))
					}
				}
			}
		}
	}

	return issues
}
