package loinc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler: every LOINC filter
// resolves to a closed SQL result, via FilterByList/FilterByClassType/
// FilterByPartLink or a single-column scan for STATUS/COPYRIGHT.
func (p *Provider) CompileFilter(ctx context.Context, c filter.Clause) (filter.Object, error) {
	switch c.Property {
	case "COMPONENT", "PROPERTY", "TIME", "SYSTEM", "SCALE", "METHOD":
		codes, err := p.FilterByPartLink(ctx, c.Property, c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	case "LIST":
		codes, err := p.FilterByList(ctx, c.Value)
		if err != nil {
			return nil, err
		}
		// An answer list's sequence is part of its meaning; keep it.
		return filter.NewOrderedClosedSet(codes), nil
	case "CLASSTYPE":
		classType, err := strconv.Atoi(c.Value)
		if err != nil {
			return nil, fmt.Errorf("loinc: CLASSTYPE filter value %q is not numeric", c.Value)
		}
		codes, err := p.FilterByClassType(ctx, classType)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	case "STATUS":
		codes, err := p.queryColumn(ctx, `SELECT code FROM loinc_concept WHERE status = $1 ORDER BY code`, c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	case "COPYRIGHT":
		codes, err := p.queryColumn(ctx, `SELECT code FROM loinc_concept WHERE copyright = $1 ORDER BY code`, c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	}
	return nil, fmt.Errorf("loinc: filter property %q is not yet executable through $expand", c.Property)
}

var _ filter.DirectCompiler = (*Provider)(nil)
