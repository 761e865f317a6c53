package cpt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_ExpressionHasEmptyDisplay(t *testing.T) {
	p := NewStandard("2026")
	p.RegisterCode(Code{Code: "99202", Display: "Office visit, new patient, level 2", Kind: KindGeneral})

	res, err := p.Locate(context.Background(), "99202:25")
	require.NoError(t, err)
	require.True(t, res.Found())

	display, err := p.Display(context.Background(), res.Context)
	require.NoError(t, err)
	assert.Equal(t, "", display)
}

func TestLocate_BaseCodeDisplay(t *testing.T) {
	p := NewStandard("2026")
	p.RegisterCode(Code{Code: "99202", Display: "Office visit, new patient, level 2", Kind: KindGeneral})

	res, err := p.Locate(context.Background(), "99202")
	require.NoError(t, err)
	display, err := p.Display(context.Background(), res.Context)
	require.NoError(t, err)
	assert.Equal(t, "Office visit, new patient, level 2", display)
}

func TestFilterModifiers_YieldsExactFive(t *testing.T) {
	p := NewStandard("2026")
	codes := p.FilterModifiers("true")
	assert.ElementsMatch(t, []string{"1P", "25", "95", "F1", "P1"}, codes)
}

func TestModifiedFilterIsOpen(t *testing.T) {
	p := NewStandard("2026")
	assert.True(t, p.ModifiedIsOpen())
}

func TestLocate_Category2ModifierRejectedOnGeneralCode(t *testing.T) {
	p := NewStandard("2026")
	p.RegisterCode(Code{Code: "99202", Display: "Office visit", Kind: KindGeneral})

	res, err := p.Locate(context.Background(), "99202:1P")
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Contains(t, res.Message, "category-2")
}

func TestLocate_TelemedicineGating(t *testing.T) {
	p := NewStandard("2026")
	p.RegisterCode(Code{Code: "99213", Display: "Office visit, established patient", Kind: KindGeneral, TelemedicineEnabled: true})
	p.RegisterCode(Code{Code: "99238", Display: "Hospital discharge day management", Kind: KindGeneral, TelemedicineEnabled: false})

	ok, err := p.Locate(context.Background(), "99213:95")
	require.NoError(t, err)
	assert.True(t, ok.Found())

	blocked, err := p.Locate(context.Background(), "99238:95")
	require.NoError(t, err)
	assert.False(t, blocked.Found())
}
