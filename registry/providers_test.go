package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/termserver/pkg/concept"
)

func baseCS() *concept.CodeSystem {
	return &concept.CodeSystem{
		URL:     "http://example.org/CodeSystem/animals",
		Content: concept.ContentComplete,
		Concept: []concept.CodeSystemConcept{
			{Code: "dog", Display: "Dog"},
			{Code: "cat", Display: "Cat"},
		},
	}
}

func dutchSupplement() *concept.CodeSystem {
	return &concept.CodeSystem{
		URL:         "http://example.org/CodeSystem/animals-nl",
		Version:     "0.1.1",
		Content:     concept.ContentSupplement,
		Supplements: "http://example.org/CodeSystem/animals",
		Concept: []concept.CodeSystemConcept{
			{Code: "dog", Designation: []concept.Designation{{Language: "nl", Value: "hond"}}},
		},
	}
}

func TestRegisterCodeSystem_SupplementAfterBase(t *testing.T) {
	reg := NewProviders()
	require.NoError(t, reg.RegisterCodeSystem(baseCS()))
	require.NoError(t, reg.RegisterCodeSystem(dutchSupplement()))

	prov, ok := reg.ProviderFor("http://example.org/CodeSystem/animals")
	require.True(t, ok)
	assert.Equal(t, []string{"http://example.org/CodeSystem/animals-nl|0.1.1"}, prov.ListSupplements())

	loc, err := prov.Locate(context.Background(), "dog")
	require.NoError(t, err)
	require.True(t, loc.Found())
	var ds []concept.Designation
	require.NoError(t, prov.Designations(context.Background(), loc.Context, &ds))
	found := false
	for _, d := range ds {
		if d.Language == "nl" && d.Value == "hond" {
			found = true
		}
	}
	assert.True(t, found, "supplement designation should be merged")
}

func TestRegisterCodeSystem_SupplementBeforeBase(t *testing.T) {
	reg := NewProviders()
	require.NoError(t, reg.RegisterCodeSystem(dutchSupplement()))
	require.NoError(t, reg.RegisterCodeSystem(baseCS()))

	prov, ok := reg.ProviderFor("http://example.org/CodeSystem/animals")
	require.True(t, ok)
	assert.Equal(t, []string{"http://example.org/CodeSystem/animals-nl|0.1.1"}, prov.ListSupplements())
}

func TestResourceByID(t *testing.T) {
	reg := NewProviders()
	require.NoError(t, reg.RegisterCodeSystem(baseCS()))

	_, ok := reg.ResourceByID("CodeSystem", "animals")
	assert.True(t, ok)
	_, ok = reg.ResourceByID("CodeSystem", "plants")
	assert.False(t, ok)
}
