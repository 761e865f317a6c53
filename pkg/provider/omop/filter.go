package omop

import (
	"context"
	"fmt"

	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler: domain/vocabulary/
// concept-class already resolve to a closed SQL result via
// FilterByDomain/FilterByVocabulary/FilterByConceptClass. This is the
// only workable path for OMOP — TotalCount deliberately reports ok=false
// and Iteration is unimplemented because the vocabulary is too large to
// enumerate, so the generic hierarchyProvider scan (which would need a
// full AllCodes()) cannot apply here.
func (p *Provider) CompileFilter(ctx context.Context, c filter.Clause) (filter.Object, error) {
	switch c.Property {
	case "domain":
		codes, err := p.FilterByDomain(ctx, c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	case "vocabulary":
		codes, err := p.FilterByVocabulary(ctx, c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	case "concept-class":
		codes, err := p.FilterByConceptClass(ctx, c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	}
	return nil, fmt.Errorf("omop: unsupported filter property %q", c.Property)
}

var _ filter.DirectCompiler = (*Provider)(nil)
