package bcp47

import (
	"context"

	"github.com/gofhir/termserver/pkg/filter"
)

// CompileFilter implements filter.DirectCompiler. language/script/region
// "exists" filters stay open per this package's own Filterable doc: the
// full set of tags having (or lacking) a subtag is unbounded, so only a
// per-code Check() is possible, never enumeration.
func (p *Provider) CompileFilter(_ context.Context, c filter.Clause) (filter.Object, error) {
	want := c.Value == "true"
	property := c.Property
	return filter.NewOpenPredicate(func(code string) bool {
		loc, err := p.Locate(context.Background(), code)
		if err != nil || !loc.Found() {
			return false
		}
		ok, err := p.Check(loc.Context, property, want)
		return err == nil && ok
	}), nil
}

var _ filter.DirectCompiler = (*Provider)(nil)
