package loinc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gofhir/termserver/pkg/concept"
)

func TestDoesFilter(t *testing.T) {
	p := &Provider{}
	assert.True(t, p.DoesFilter("LIST", concept.OpEquals, ""))
	assert.True(t, p.DoesFilter("CLASSTYPE", concept.OpEquals, ""))
	assert.True(t, p.DoesFilter("COMPONENT", concept.OpEquals, ""))
	assert.False(t, p.DoesFilter("COMPONENT", concept.OpRegex, ""))
	assert.False(t, p.DoesFilter("bogus", concept.OpEquals, ""))
}

func TestHandleTag(t *testing.T) {
	h := handle{code: "1234-5"}
	assert.Equal(t, System, h.Tag())
}

func TestSameConcept(t *testing.T) {
	p := &Provider{}
	a := handle{code: "1234-5"}
	b := handle{code: "1234-5"}
	c := handle{code: "9999-9"}
	assert.True(t, p.SameConcept(a, b))
	assert.False(t, p.SameConcept(a, c))
}
