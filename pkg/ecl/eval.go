package ecl

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DefaultWildcardCap bounds how many concepts a bare "*" focus may
// enumerate, guarding against an unbounded full-system scan.
const DefaultWildcardCap = 1000

// Graph is the subset of a hierarchy-capable provider the evaluator
// needs: ancestor/descendant walks, attribute relationship lookup, and
// reference set membership. Implemented by pkg/provider/snomed.
type Graph interface {
	// Descendants returns every strict descendant of code.
	Descendants(code string) []string
	// Ancestors returns every strict ancestor of code.
	Ancestors(code string) []string
	// AllCodes returns every known concept, used for the wildcard focus.
	AllCodes() []string
	// RelationshipTargets returns the values of attribute attrCode on
	// concept code (a concept may carry several values of the same
	// attribute, e.g. multiple "Finding site" relationships).
	RelationshipTargets(code, attrCode string) []string
	// MemberOf returns every concept that is a member of reference set
	// refsetID.
	MemberOf(refsetID string) []string
}

// Evaluate executes expr against g and returns the matching concept set,
// sorted ascending for determinism (matching pkg/filter's ordering rule).
// The wildcard focus is bounded by DefaultWildcardCap; use
// EvaluateWithCap to override.
func Evaluate(ctx context.Context, expr *Expression, g Graph) ([]string, error) {
	return EvaluateWithCap(ctx, expr, g, DefaultWildcardCap)
}

// EvaluateWithCap is Evaluate with an explicit wildcard result cap; a
// wildcard focus matching more than cap concepts fails with "too many
// results" rather than silently truncating.
func EvaluateWithCap(ctx context.Context, expr *Expression, g Graph, cap int) ([]string, error) {
	ev := &evaluator{g: g, wildcardCap: cap}
	set, err := ev.evalExpression(ctx, expr)
	if err != nil {
		return nil, err
	}
	out := setToSlice(set)
	sort.Strings(out)
	return out, nil
}

// evaluator carries per-evaluation settings through the recursive walk.
type evaluator struct {
	g           Graph
	wildcardCap int
}

type codeSet map[string]bool

func setToSlice(s codeSet) []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

func (ev *evaluator) evalExpression(ctx context.Context, expr *Expression) (codeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc, err := ev.evalSub(ctx, expr.Left)
	if err != nil {
		return nil, err
	}
	// Fold the chain left to right: "a MINUS b MINUS c" is (a MINUS b) MINUS c.
	for e := expr; e.Op != OpNone; e = e.Right {
		right, err := ev.evalSub(ctx, e.Right.Left)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case OpAnd:
			acc = intersect(acc, right)
		case OpOr:
			acc = union(acc, right)
		case OpMinus:
			acc = subtract(acc, right)
		default:
			return nil, fmt.Errorf("ecl: unknown boolean operator %q", e.Op)
		}
	}
	return acc, nil
}

func intersect(a, b codeSet) codeSet {
	out := make(codeSet)
	for c := range a {
		if b[c] {
			out[c] = true
		}
	}
	return out
}

func union(a, b codeSet) codeSet {
	out := make(codeSet, len(a)+len(b))
	for c := range a {
		out[c] = true
	}
	for c := range b {
		out[c] = true
	}
	return out
}

func subtract(a, b codeSet) codeSet {
	out := make(codeSet)
	for c := range a {
		if !b[c] {
			out[c] = true
		}
	}
	return out
}

func (ev *evaluator) evalSub(ctx context.Context, sub *SubExpression) (codeSet, error) {
	focus, err := ev.evalConstraint(ctx, sub.Constraint)
	if err != nil {
		return nil, err
	}
	if sub.Refinement != nil {
		filtered := make(codeSet)
		for code := range focus {
			ok, err := ev.matchesRefinement(ctx, code, sub.Refinement)
			if err != nil {
				return nil, err
			}
			if ok {
				filtered[code] = true
			}
		}
		focus = filtered
	}
	for _, attrID := range sub.Dotted {
		focus = ev.projectDotted(focus, attrID)
	}
	return focus, nil
}

// projectDotted replaces set with the union of attribute values named
// attrID across its members.
func (ev *evaluator) projectDotted(set codeSet, attrID string) codeSet {
	out := make(codeSet)
	for code := range set {
		for _, v := range ev.g.RelationshipTargets(code, attrID) {
			out[v] = true
		}
	}
	return out
}

func (ev *evaluator) evalConstraint(ctx context.Context, c *Constraint) (codeSet, error) {
	if c.Nested != nil {
		set, err := ev.evalExpression(ctx, c.Nested)
		if err != nil {
			return nil, err
		}
		return ev.applyOp(c.Op, "", set), nil
	}
	if c.MemberOf != "" {
		out := make(codeSet)
		for _, code := range ev.g.MemberOf(c.MemberOf) {
			out[code] = true
		}
		return out, nil
	}
	if c.Wildcard {
		all := ev.g.AllCodes()
		if ev.wildcardCap > 0 && len(all) > ev.wildcardCap {
			return nil, fmt.Errorf("ecl: too many results: wildcard matches %d concepts, cap is %d", len(all), ev.wildcardCap)
		}
		out := make(codeSet, len(all))
		for _, code := range all {
			out[code] = true
		}
		return out, nil
	}
	return ev.applyOp(c.Op, c.ConceptID, nil), nil
}

// applyOp resolves a single-focus constraint's operator into a concept
// set. When fromSet is non-nil the operator applies to every member of
// fromSet (a nested sub-expression focus) instead of a single concept.
func (ev *evaluator) applyOp(op ConstraintOp, focus string, fromSet codeSet) codeSet {
	g := ev.g
	expand := func(code string) codeSet {
		out := make(codeSet)
		switch op {
		case ConstraintSelf:
			out[code] = true
		case ConstraintDescendantOf, ConstraintDescOfExcl:
			for _, d := range g.Descendants(code) {
				out[d] = true
			}
		case ConstraintDescOrSelf:
			out[code] = true
			for _, d := range g.Descendants(code) {
				out[d] = true
			}
		case ConstraintDescOrSelfNot:
			// "<<!" is the self-including variant, paired with "<!"'s
			// strict descendants.
			out[code] = true
			for _, d := range g.Descendants(code) {
				out[d] = true
			}
		case ConstraintAncestorOf, ConstraintAncOfExcl:
			for _, a := range g.Ancestors(code) {
				out[a] = true
			}
		case ConstraintAncOrSelf:
			out[code] = true
			for _, a := range g.Ancestors(code) {
				out[a] = true
			}
		case ConstraintAncOrSelfNot:
			// ">>!" mirrors "<<!": self plus ancestors.
			out[code] = true
			for _, a := range g.Ancestors(code) {
				out[a] = true
			}
		}
		return out
	}

	if fromSet != nil {
		total := make(codeSet)
		for code := range fromSet {
			for c := range expand(code) {
				total[c] = true
			}
		}
		return total
	}
	return expand(focus)
}

// matchesConcrete tests targets against a concrete literal. String
// values compare byte-wise; numeric values compare as decimals so
// "1.20" and "1.2" are the same quantity, and the ordering operators
// apply. Non-numeric targets never satisfy a numeric comparison.
func matchesConcrete(targets []string, attr AttributeConstraint) (bool, error) {
	if attr.Concrete.Kind == ConcreteString {
		for _, t := range targets {
			if t == attr.Concrete.Raw {
				return true, nil
			}
		}
		return false, nil
	}
	want, err := decimal.NewFromString(attr.Concrete.Raw)
	if err != nil {
		return false, fmt.Errorf("ecl: invalid numeric literal %q: %w", attr.Concrete.Raw, err)
	}
	for _, t := range targets {
		got, err := decimal.NewFromString(t)
		if err != nil {
			continue
		}
		cmp := got.Cmp(want)
		var ok bool
		switch attr.Comparison {
		case CompEquals, CompNotEq:
			ok = cmp == 0
		case CompLess:
			ok = cmp < 0
		case CompLessEq:
			ok = cmp <= 0
		case CompGreater:
			ok = cmp > 0
		case CompGreaterEq:
			ok = cmp >= 0
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (ev *evaluator) matchesRefinement(ctx context.Context, code string, ref *Refinement) (bool, error) {
	for _, group := range ref.Groups {
		ok, err := ev.matchesGroup(ctx, code, group)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (ev *evaluator) matchesGroup(ctx context.Context, code string, group AttributeGroup) (bool, error) {
	for _, attr := range group.Attributes {
		ok, err := ev.matchesAttribute(ctx, code, attr)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (ev *evaluator) matchesAttribute(ctx context.Context, code string, attr AttributeConstraint) (bool, error) {
	if attr.Name.ConceptID == "" {
		return false, fmt.Errorf("ecl: cannot evaluate a non-literal attribute name")
	}
	var targets []string
	if attr.Reversed {
		// Reverse attribute: find concepts X such that code is a value of
		// attrName on X.
		for _, candidate := range ev.g.AllCodes() {
			for _, v := range ev.g.RelationshipTargets(candidate, attr.Name.ConceptID) {
				if v == code {
					targets = append(targets, candidate)
				}
			}
		}
	} else {
		targets = ev.g.RelationshipTargets(code, attr.Name.ConceptID)
	}

	if attr.Concrete != nil {
		matched, err := matchesConcrete(targets, attr)
		if err != nil {
			return false, err
		}
		if attr.Comparison == CompNotEq {
			return !matched, nil
		}
		return matched, nil
	}

	valueSet, err := ev.evalSub(ctx, attr.Value)
	if err != nil {
		return false, err
	}
	matched := false
	for _, t := range targets {
		if valueSet[t] {
			matched = true
			break
		}
	}
	if attr.Comparison == CompNotEq {
		return !matched, nil
	}
	return matched, nil
}
