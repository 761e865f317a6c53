package snomed

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler. Hierarchy filters
// close over the in-memory Is-a graph; `concept in` resolves refset
// membership when the value names a registered reference set (the FHIR
// convention for SNOMED), otherwise a plain code list; `expression =`
// (and its `constraint`/`expressions` aliases) evaluates the value as
// ECL, whose result keeps the evaluator's sorted order.
func (p *Provider) CompileFilter(ctx context.Context, c filter.Clause) (filter.Object, error) {
	switch c.Property {
	case "concept":
		return p.compileConceptFilter(c)
	case "expression", "expressions", "constraint":
		codes, err := p.EvaluateExpressionFilter(ctx, c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewOrderedClosedSet(codes), nil
	}
	return nil, fmt.Errorf("snomed: unsupported filter property %q", c.Property)
}

func (p *Provider) compileConceptFilter(c filter.Clause) (filter.Object, error) {
	switch c.Op {
	case concept.OpIsA:
		return filter.NewClosedSet(p.selfAndDescendants(c.Value)), nil
	case concept.OpDescendentOf:
		return filter.NewClosedSet(p.Descendants(c.Value)), nil
	case concept.OpGeneralizes:
		return filter.NewClosedSet(append([]string{c.Value}, p.Ancestors(c.Value)...)), nil
	case concept.OpIsNotA:
		excl := make(map[string]bool)
		for _, code := range p.selfAndDescendants(c.Value) {
			excl[code] = true
		}
		var out []string
		for _, code := range p.AllCodes() {
			if !excl[code] {
				out = append(out, code)
			}
		}
		return filter.NewClosedSet(out), nil
	case concept.OpEquals:
		if _, ok := p.concepts[c.Value]; !ok {
			return filter.NewClosedSet(nil), nil
		}
		return filter.NewClosedSet([]string{c.Value}), nil
	case concept.OpIn:
		if members, ok := p.refsets[c.Value]; ok {
			return filter.NewClosedSet(members), nil
		}
		var out []string
		for _, code := range strings.Split(c.Value, ",") {
			if _, ok := p.concepts[code]; ok {
				out = append(out, code)
			}
		}
		return filter.NewClosedSet(out), nil
	}
	return nil, fmt.Errorf("snomed: unsupported concept filter op %q", c.Op)
}

func (p *Provider) selfAndDescendants(code string) []string {
	return append([]string{code}, p.Descendants(code)...)
}

var _ filter.DirectCompiler = (*Provider)(nil)
