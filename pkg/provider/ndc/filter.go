package ndc

import (
	"context"
	"fmt"

	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler: code-type already
// resolves to a closed SQL result via FilterByCodeType.
func (p *Provider) CompileFilter(ctx context.Context, c filter.Clause) (filter.Object, error) {
	if c.Property != "code-type" {
		return nil, fmt.Errorf("ndc: unsupported filter property %q", c.Property)
	}
	codes, err := p.FilterByCodeType(ctx, c.Value)
	if err != nil {
		return nil, err
	}
	return filter.NewClosedSet(codes), nil
}

var _ filter.DirectCompiler = (*Provider)(nil)
