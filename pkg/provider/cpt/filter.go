package cpt

import (
	"context"
	"fmt"

	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler. `modifier` and `kind`
// already resolve to a closed, in-memory set via FilterModifiers/
// FilterByKind. `modified` stays open regardless of value: whether a
// base code "has been modified" is a fact about how it's used in a
// clinical statement, not something enumerable from the code system
// — membership
// is decided by expression parsing, not enumeration, so no code ever
// satisfies the predicate here.
func (p *Provider) CompileFilter(_ context.Context, c filter.Clause) (filter.Object, error) {
	switch c.Property {
	case "modifier":
		return filter.NewClosedSet(p.FilterModifiers(c.Value)), nil
	case "kind":
		return filter.NewClosedSet(p.FilterByKind(c.Value)), nil
	case "modified":
		return filter.NewOpenPredicate(func(string) bool { return false }), nil
	}
	return nil, fmt.Errorf("cpt: unsupported filter property %q", c.Property)
}

var _ filter.DirectCompiler = (*Provider)(nil)
