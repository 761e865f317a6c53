package ecl

import "fmt"

// AttributeRule declares the allowed value domain for one attribute
// concept, used by Validate's semantic pass. An empty AllowedValueRoots
// means any concept may be a valid value (no range restriction
// declared).
type AttributeRule struct {
	// AllowedValueRoots: a value is valid only if it equals or is a
	// descendant of one of these concept ids. Empty means unrestricted.
	AllowedValueRoots []string
	// RequiresConcrete, when true, means this attribute only accepts a
	// concrete (string/integer/decimal) value, never a concept reference.
	RequiresConcrete bool
}

// Domain supplies the semantic rules Validate checks against: which
// attribute concepts are known, and their value-range restrictions.
// Implemented by the SNOMED provider adapter over its MRCM (Machine
// Readable Concept Model) data, or a permissive stub in tests.
type Domain interface {
	// KnownAttribute reports whether conceptID names a real attribute
	// concept (vs. an arbitrary, possibly mistyped, SCTID).
	KnownAttribute(conceptID string) bool
	// RuleFor returns the AttributeRule for a known attribute, ok=false
	// if no restriction is declared.
	RuleFor(conceptID string) (AttributeRule, bool)
	// IsDescendantOrSelf reports whether candidate is == ancestor or a
	// descendant of it, used to check AllowedValueRoots.
	IsDescendantOrSelf(candidate, ancestor string) bool
}

// Validate performs the semantic validation pass over a parsed
// Expression: every named attribute must be a known attribute concept,
// and every concrete-value attribute must not carry a concept-reference
// value. Validate does not check cardinalities, and neither does
// Evaluate: a group's cardinality is parsed but has no effect on results.
func Validate(expr *Expression, dom Domain) error {
	for e := expr; e != nil; e = e.Right {
		if err := validateSub(e.Left, dom); err != nil {
			return err
		}
	}
	return nil
}

func validateSub(sub *SubExpression, dom Domain) error {
	if sub.Constraint.Nested != nil {
		if err := Validate(sub.Constraint.Nested, dom); err != nil {
			return err
		}
	}
	if sub.Refinement == nil {
		return nil
	}
	for _, group := range sub.Refinement.Groups {
		for _, attr := range group.Attributes {
			if attr.Name.ConceptID == "" {
				continue // wildcard/nested attribute name: no MRCM check possible
			}
			if !dom.KnownAttribute(attr.Name.ConceptID) {
				return fmt.Errorf("ecl: %q is not a known attribute concept", attr.Name.ConceptID)
			}
			rule, hasRule := dom.RuleFor(attr.Name.ConceptID)
			if !hasRule {
				continue
			}
			if attr.Concrete != nil {
				if !rule.RequiresConcrete {
					return fmt.Errorf("ecl: attribute %q does not accept a concrete value", attr.Name.ConceptID)
				}
				continue
			}
			if rule.RequiresConcrete {
				return fmt.Errorf("ecl: attribute %q requires a concrete value", attr.Name.ConceptID)
			}
			if attr.Value != nil && len(rule.AllowedValueRoots) > 0 && attr.Value.Constraint.ConceptID != "" {
				ok := false
				for _, root := range rule.AllowedValueRoots {
					if dom.IsDescendantOrSelf(attr.Value.Constraint.ConceptID, root) {
						ok = true
						break
					}
				}
				if !ok {
					return fmt.Errorf("ecl: value %q for attribute %q is outside its declared range", attr.Value.Constraint.ConceptID, attr.Name.ConceptID)
				}
			}
			if attr.Value != nil && attr.Value.Refinement != nil {
				if err := validateSub(attr.Value, dom); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
