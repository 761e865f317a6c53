package rxnorm

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler: every RxNorm filter
// (TTY/SAB/STY equality or membership, REL/RELA relationship type)
// already resolves to a closed SQL result via FilterByProperty/
// FilterByRelationship — "no open/deferred filters", per the package doc.
func (p *Provider) CompileFilter(ctx context.Context, c filter.Clause) (filter.Object, error) {
	switch c.Property {
	case "TTY", "SAB", "STY":
		values := []string{c.Value}
		if c.Op == concept.OpIn {
			values = strings.Split(c.Value, ",")
		}
		codes, err := p.FilterByProperty(ctx, c.Property, values)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	case "REL":
		codes, err := p.FilterByRelationship(ctx, "rel", c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	case "RELA":
		codes, err := p.FilterByRelationship(ctx, "rela", c.Value)
		if err != nil {
			return nil, err
		}
		return filter.NewClosedSet(codes), nil
	}
	return nil, fmt.Errorf("rxnorm: unsupported filter property %q", c.Property)
}

var _ filter.DirectCompiler = (*Provider)(nil)
