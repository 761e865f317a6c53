package ucum

import (
	"context"
	"fmt"

	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler: `canonical = g` already
// resolves to a closed in-memory set via FilterByCanonical.
func (p *Provider) CompileFilter(_ context.Context, c filter.Clause) (filter.Object, error) {
	if c.Property != "canonical" {
		return nil, fmt.Errorf("ucum: unsupported filter property %q", c.Property)
	}
	return filter.NewClosedSet(p.FilterByCanonical(c.Value)), nil
}

var _ filter.DirectCompiler = (*Provider)(nil)
