package expansion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/opctx"
	"github.com/gofhir/termserver/pkg/provider"
)

type memProvider struct {
	system string
	codes  map[string]string // code -> display
}

type memCtx struct{ system, code string }

func (m memCtx) Tag() string { return m.system }

func (p *memProvider) System() string                         { return p.system }
func (p *memProvider) Version() string                        { return "" }
func (p *memProvider) Description() string                    { return p.system }
func (p *memProvider) TotalCount() (int, bool)                { return len(p.codes), true }
func (p *memProvider) HasParents() bool                       { return false }
func (p *memProvider) ContentMode() concept.CodeSystemContent { return concept.ContentComplete }
func (p *memProvider) HasAnyDisplays(_ lang.Languages) bool   { return true }
func (p *memProvider) ListSupplements() []string              { return nil }

func (p *memProvider) Locate(_ context.Context, code string) (provider.LocateResult, error) {
	if _, ok := p.codes[code]; !ok {
		return provider.LocateResult{Message: "not found"}, nil
	}
	return provider.LocateResult{Context: memCtx{system: p.system, code: code}}, nil
}
func (p *memProvider) Code(_ context.Context, c provider.Context) (string, error) {
	return c.(memCtx).code, nil
}
func (p *memProvider) Display(_ context.Context, c provider.Context) (string, error) {
	return p.codes[c.(memCtx).code], nil
}
func (p *memProvider) Designations(_ context.Context, c provider.Context, out *[]concept.Designation) error {
	return nil
}
func (p *memProvider) IsAbstract(provider.Context) bool               { return false }
func (p *memProvider) IsInactive(provider.Context) bool               { return false }
func (p *memProvider) IsDeprecated(provider.Context) bool             { return false }
func (p *memProvider) GetStatus(provider.Context) string              { return "" }
func (p *memProvider) ItemWeight(provider.Context) (float64, bool)    { return 0, false }
func (p *memProvider) Extensions(provider.Context) []concept.Property { return nil }
func (p *memProvider) Properties(context.Context, provider.Context) ([]concept.Property, error) {
	return nil, nil
}

type stubResolver struct {
	providers map[string]provider.Provider
	valueSets map[string]*concept.ValueSet
}

func (r *stubResolver) ProviderFor(system string) (provider.Provider, bool) {
	p, ok := r.providers[system]
	return p, ok
}
func (r *stubResolver) ValueSetByURL(url string) (*concept.ValueSet, bool) {
	vs, ok := r.valueSets[url]
	return vs, ok
}

func TestExpand_EnumeratedConcepts(t *testing.T) {
	prov := &memProvider{system: "http://example.org/cs", codes: map[string]string{"a": "Alpha", "b": "Beta"}}
	resolver := &stubResolver{providers: map[string]provider.Provider{"http://example.org/cs": prov}}
	exp := New(resolver, nil)

	vs := &concept.ValueSet{
		URL: "http://example.org/vs",
		Compose: concept.Compose{
			Include: []concept.ComposeInclude{{
				System:  "http://example.org/cs",
				Concept: []concept.ComposeConcept{{Code: "a"}, {Code: "b"}},
			}},
		},
	}

	oc := opctx.Acquire(opctx.Options{})
	defer oc.Release()

	result, err := exp.Expand(context.Background(), oc, vs, Params{})
	require.NoError(t, err)
	assert.Len(t, result.Codes, 2)
	assert.Equal(t, "a", result.Codes[0].Code)
	assert.Equal(t, "b", result.Codes[1].Code)
}

func TestExpand_DeclaredOrderPreserved(t *testing.T) {
	// An explicit concept[] list keeps its declared order even when that
	// order is not sorted by code.
	prov := &memProvider{system: "http://example.org/cs", codes: map[string]string{"a": "Alpha", "b": "Beta", "z": "Zed"}}
	resolver := &stubResolver{providers: map[string]provider.Provider{"http://example.org/cs": prov}}
	exp := New(resolver, nil)

	vs := &concept.ValueSet{
		URL: "http://example.org/vs",
		Compose: concept.Compose{
			Include: []concept.ComposeInclude{{
				System:  "http://example.org/cs",
				Concept: []concept.ComposeConcept{{Code: "z"}, {Code: "a"}},
			}},
		},
	}

	oc := opctx.Acquire(opctx.Options{})
	defer oc.Release()

	result, err := exp.Expand(context.Background(), oc, vs, Params{})
	require.NoError(t, err)
	require.Len(t, result.Codes, 2)
	assert.Equal(t, "z", result.Codes[0].Code)
	assert.Equal(t, "a", result.Codes[1].Code)
	assert.Equal(t, 2, result.Total)
}

func TestExpand_CircularImportDetected(t *testing.T) {
	resolver := &stubResolver{valueSets: map[string]*concept.ValueSet{}}
	vsA := &concept.ValueSet{URL: "http://example.org/a", Compose: concept.Compose{
		Include: []concept.ComposeInclude{{ValueSet: []string{"http://example.org/b"}}},
	}}
	vsB := &concept.ValueSet{URL: "http://example.org/b", Compose: concept.Compose{
		Include: []concept.ComposeInclude{{ValueSet: []string{"http://example.org/a"}}},
	}}
	resolver.valueSets["http://example.org/a"] = vsA
	resolver.valueSets["http://example.org/b"] = vsB

	exp := New(resolver, nil)
	oc := opctx.Acquire(opctx.Options{})
	defer oc.Release()

	_, err := exp.Expand(context.Background(), oc, vsA, Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Circular reference detected")
}

func TestResolveVersion_Modes(t *testing.T) {
	rules := []VersionRule{
		{Scope: ScopeCodeSystem, System: "http://a", Version: "2", Mode: VersionOverride},
		{Scope: ScopeCodeSystem, System: "http://b", Version: "3", Mode: VersionCheck},
		{Scope: ScopeCodeSystem, System: "http://c", Version: "4", Mode: VersionDefault},
	}

	v, err := resolveVersion(rules, ScopeCodeSystem, "http://a", "1")
	require.NoError(t, err)
	assert.Equal(t, "2", v, "override replaces the stated version")

	_, err = resolveVersion(rules, ScopeCodeSystem, "http://b", "1")
	require.Error(t, err, "check with a disagreeing stated version conflicts")

	v, err = resolveVersion(rules, ScopeCodeSystem, "http://b", "3")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	v, err = resolveVersion(rules, ScopeCodeSystem, "http://c", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", v, "default never replaces a stated version")

	v, err = resolveVersion(rules, ScopeCodeSystem, "http://c", "")
	require.NoError(t, err)
	assert.Equal(t, "4", v, "default fills in an absent version")
}

func TestResolveVersion_ScopesAreDistinct(t *testing.T) {
	rules := []VersionRule{
		{Scope: ScopeValueSet, System: "http://a", Version: "2", Mode: VersionOverride},
	}
	v, err := resolveVersion(rules, ScopeCodeSystem, "http://a", "1")
	require.NoError(t, err)
	assert.Equal(t, "1", v, "a ValueSet-scoped rule never applies to a CodeSystem lookup")
}

func TestExpand_VersionCheckConflict(t *testing.T) {
	prov := &memProvider{system: "http://example.org/cs", codes: map[string]string{"a": "Alpha"}}
	resolver := &stubResolver{providers: map[string]provider.Provider{"http://example.org/cs": prov}}
	exp := New(resolver, nil)

	vs := &concept.ValueSet{
		URL: "http://example.org/vs",
		Compose: concept.Compose{
			Include: []concept.ComposeInclude{{
				System:  "http://example.org/cs",
				Version: "1.0",
				Concept: []concept.ComposeConcept{{Code: "a"}},
			}},
		},
	}

	oc := opctx.Acquire(opctx.Options{})
	defer oc.Release()

	_, err := exp.Expand(context.Background(), oc, vs, Params{Versions: []VersionRule{
		{Scope: ScopeCodeSystem, System: "http://example.org/cs", Version: "2.0", Mode: VersionCheck},
	}})
	require.Error(t, err)
	var vc *VersionConflictError
	require.ErrorAs(t, err, &vc)
}

func TestApplyTextFilter(t *testing.T) {
	c := Code{Display: "Heart Attack"}
	assert.True(t, ApplyTextFilter(c, "heart"))
	assert.False(t, ApplyTextFilter(c, "lung"))
}
