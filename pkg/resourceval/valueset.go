package resourceval

import (
	"fmt"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/concept"
)

const phaseValueSet = "resourceval.valueset"

var validFilterOps = map[concept.FilterOp]bool{
	concept.OpEquals: true, concept.OpIsA: true, concept.OpIsNotA: true,
	concept.OpDescendentOf: true, concept.OpIn: true, concept.OpNotIn: true,
	concept.OpRegex: true, concept.OpExists: true, concept.OpGeneralizes: true,
}

// ValidateValueSet checks the structural invariants of an inbound
// ValueSet: url/status required, compose forms a
// non-empty set expression, every include/exclude clause selects by
// system or by valueSet reference, and filter operators are from the
// declared vocabulary.
func ValidateValueSet(vs *concept.ValueSet) []termserver.Issue {
	var issues []termserver.Issue
	if vs == nil {
		return append(issues, required(phaseValueSet, "ValueSet"))
	}

	if vs.URL == "" {
		issues = append(issues, required(phaseValueSet, "ValueSet.url"))
	}
	if vs.Status == "" {
		issues = append(issues, required(phaseValueSet, "ValueSet.status"))
	}
	if len(vs.Compose.Include) == 0 {
		issues = append(issues, businessRuleError(phaseValueSet, "ValueSet.compose.include",
			"compose must declare at least one include clause"))
	}

	issues = append(issues, validateComposeClauses(vs.Compose.Include, "ValueSet.compose.include")...)
	issues = append(issues, validateComposeClauses(vs.Compose.Exclude, "ValueSet.compose.exclude")...)

	seen := make(map[string]bool)
	for _, inc := range vs.Compose.Include {
		for _, c := range inc.Concept {
			key := inc.System + "#" + c.Code
			if seen[key] {
				issues = append(issues, termserver.Warning(termserver.IssueTypeBusinessRule).
					Diagnostics(fmt.Sprintf("concept %q from system %q is included more than once; duplicates collapse to one entry", c.Code, inc.System)).
					At("ValueSet.compose.include.concept").Phase(phaseValueSet).Build())
			}
			seen[key] = true
		}
	}

	return issues
}

func validateComposeClauses(clauses []concept.ComposeInclude, path string) []termserver.Issue {
	var issues []termserver.Issue
	for i, inc := range clauses {
		elPath := fmt.Sprintf("%s[%d]", path, i)
		if inc.System == "" && len(inc.ValueSet) == 0 {
			issues = append(issues, businessRuleError(phaseValueSet, elPath,
				"a compose clause must select by system or by valueSet reference"))
		}
		for j, c := range inc.Concept {
			if c.Code == "" {
				issues = append(issues, required(phaseValueSet, fmt.Sprintf("%s.concept[%d].code", elPath, j)))
			}
		}
		for j, f := range inc.Filter {
			if f.Property == "" {
				issues = append(issues, required(phaseValueSet, fmt.Sprintf("%s.filter[%d].property", elPath, j)))
			}
			if !validFilterOps[f.Op] {
				issues = append(issues, invalidValue(phaseValueSet, fmt.Sprintf("%s.filter[%d].op", elPath, j),
					fmt.Sprintf("unrecognized filter operator %q", f.Op)))
			}
		}
	}
	return issues
}
