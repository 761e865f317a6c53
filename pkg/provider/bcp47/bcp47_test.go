package bcp47

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/termserver/pkg/concept"
)

func TestLocate_WellFormedTag(t *testing.T) {
	p := New("2026")
	res, err := p.Locate(context.Background(), "en-US")
	require.NoError(t, err)
	assert.True(t, res.Found())
}

func TestLocate_Malformed(t *testing.T) {
	p := New("2026")
	res, err := p.Locate(context.Background(), "!!!not-a-tag!!!")
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestDesignations_RegionQualified(t *testing.T) {
	p := New("2026")
	res, err := p.Locate(context.Background(), "en-US")
	require.NoError(t, err)

	var out []concept.Designation
	require.NoError(t, p.Designations(context.Background(), res.Context, &out))
	assert.NotEmpty(t, out)

	found := false
	for _, d := range out {
		if d.Value == "English" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDoesFilter_ExistsOnly(t *testing.T) {
	p := &Provider{}
	assert.True(t, p.DoesFilter("region", concept.OpExists, "true"))
	assert.False(t, p.DoesFilter("region", concept.OpEquals, "US"))
}

func TestCheck_RegionExists(t *testing.T) {
	p := New("2026")
	res, err := p.Locate(context.Background(), "en-US")
	require.NoError(t, err)

	ok, err := p.Check(res.Context, "region", true)
	require.NoError(t, err)
	assert.True(t, ok)

	res2, err := p.Locate(context.Background(), "en")
	require.NoError(t, err)
	ok2, err := p.Check(res2.Context, "region", true)
	require.NoError(t, err)
	assert.False(t, ok2)
}
