package ucum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_SimpleUnit(t *testing.T) {
	p := New("2026")
	res, err := p.Locate(context.Background(), "mg")
	require.NoError(t, err)
	assert.True(t, res.Found())
}

func TestLocate_CompoundUnit(t *testing.T) {
	p := New("2026")
	res, err := p.Locate(context.Background(), "mg/dL")
	require.NoError(t, err)
	require.True(t, res.Found())

	props, err := p.Properties(context.Background(), res.Context)
	require.NoError(t, err)
	var canonical string
	for _, prop := range props {
		if prop.Code == "canonical" {
			canonical = prop.Value.(string)
		}
	}
	assert.Equal(t, "g.L-1", canonical)
}

func TestLocate_UnknownUnit(t *testing.T) {
	p := New("2026")
	res, err := p.Locate(context.Background(), "bogus-unit")
	require.NoError(t, err)
	assert.False(t, res.Found())
}

func TestFilterByCanonical_MassUnits(t *testing.T) {
	p := New("2026")
	units := p.FilterByCanonical("g")
	assert.Contains(t, units, "mg")
	assert.Contains(t, units, "kg")
	assert.NotContains(t, units, "m")
}

func TestComparable(t *testing.T) {
	p := New("2026")
	ok, err := p.Comparable("mg", "kg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Comparable("mg", "m")
	require.NoError(t, err)
	assert.False(t, ok)
}
