package ndc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gofhir/termserver/pkg/concept"
)

func TestNormalize_AllSegmentedLayouts(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1234-4321-12", "01234432112"},
		{"12345-321-12", "12345032112"},
		{"12345-4321-1", "12345432101"},
		{"123456-321-12", "12345632112"},
		{"123456-4321-1", "12345643211"},
		{"12345678901", "12345678901"},
	}
	for _, c := range cases {
		got, ok := Normalize(c.in)
		assert.True(t, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	_, ok := Normalize("not-an-ndc")
	assert.False(t, ok)
}

func TestDoesFilter(t *testing.T) {
	p := &Provider{}
	assert.True(t, p.DoesFilter("code-type", concept.OpEquals, "product"))
	assert.False(t, p.DoesFilter("bogus", concept.OpEquals, ""))
}
