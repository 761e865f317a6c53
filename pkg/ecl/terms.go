package ecl

import "fmt"

// Descriptions supplies active description terms for the term
// validation pass. Implemented by the SNOMED provider; a nil slice
// means the concept is unknown or has no active descriptions.
type Descriptions interface {
	ActiveDescriptions(conceptID string) []string
}

// ValidateTerms checks every "|term|" attached to a concept reference in
// expr against that concept's active descriptions. Parsing never touches
// the terminology, so this runs as its own pass after Parse; errors
// accumulate so one bad term does not mask the others.
func ValidateTerms(expr *Expression, desc Descriptions) []error {
	var errs []error
	walkConstraints(expr, func(c *Constraint) {
		if c.ConceptID == "" || c.Term == "" {
			return
		}
		active := desc.ActiveDescriptions(c.ConceptID)
		for _, d := range active {
			if d == c.Term {
				return
			}
		}
		expected := ""
		if len(active) > 0 {
			expected = active[0]
		}
		errs = append(errs, fmt.Errorf(
			"ecl: Term %q does not match any active description for concept %s. Expected term like %q",
			c.Term, c.ConceptID, expected))
	})
	return errs
}

// walkConstraints visits every Constraint in expr, including nested
// sub-expressions, attribute names and attribute values.
func walkConstraints(expr *Expression, visit func(*Constraint)) {
	for e := expr; e != nil; e = e.Right {
		walkSubConstraints(e.Left, visit)
	}
}

func walkSubConstraints(sub *SubExpression, visit func(*Constraint)) {
	if sub == nil {
		return
	}
	walkConstraint(sub.Constraint, visit)
	if sub.Refinement == nil {
		return
	}
	for _, group := range sub.Refinement.Groups {
		for _, attr := range group.Attributes {
			walkConstraint(attr.Name, visit)
			walkSubConstraints(attr.Value, visit)
		}
	}
}

func walkConstraint(c *Constraint, visit func(*Constraint)) {
	if c == nil {
		return
	}
	visit(c)
	if c.Nested != nil {
		walkConstraints(c.Nested, visit)
	}
}
