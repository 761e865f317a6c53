package resourceval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/concept"
)

func validCodeSystem() *concept.CodeSystem {
	return &concept.CodeSystem{
		URL:     "http://example.org/fruit",
		Status:  "active",
		Content: concept.ContentComplete,
		Concept: []concept.CodeSystemConcept{
			{Code: "citrus", Concept: []concept.CodeSystemConcept{{Code: "orange"}}},
			{Code: "berry"},
		},
	}
}

func TestValidateCodeSystem_Valid(t *testing.T) {
	assert.Empty(t, ValidateCodeSystem(validCodeSystem()))
}

func TestValidateCodeSystem_Nil(t *testing.T) {
	issues := ValidateCodeSystem(nil)
	assert.Len(t, issues, 1)
	assert.Equal(t, termserver.IssueTypeRequired, issues[0].Code)
}

func TestValidateCodeSystem_MissingURLAndBadContent(t *testing.T) {
	cs := validCodeSystem()
	cs.URL = ""
	cs.Content = "bogus"
	issues := ValidateCodeSystem(cs)

	var sawMissingURL, sawBadContent bool
	for _, iss := range issues {
		if iss.Code == termserver.IssueTypeRequired && iss.Expression[0] == "CodeSystem.url" {
			sawMissingURL = true
		}
		if iss.Code == termserver.IssueTypeValue && iss.Expression[0] == "CodeSystem.content" {
			sawBadContent = true
		}
	}
	assert.True(t, sawMissingURL)
	assert.True(t, sawBadContent)
}

func TestValidateCodeSystem_DuplicateCode(t *testing.T) {
	cs := validCodeSystem()
	cs.Concept = append(cs.Concept, concept.CodeSystemConcept{Code: "berry"})
	issues := ValidateCodeSystem(cs)

	found := false
	for _, iss := range issues {
		if iss.Code == termserver.IssueTypeBusinessRule {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateCodeSystem_SupplementRequiresBackReference(t *testing.T) {
	cs := validCodeSystem()
	cs.Content = concept.ContentSupplement
	cs.Supplements = ""
	issues := ValidateCodeSystem(cs)

	found := false
	for _, iss := range issues {
		if iss.Severity == termserver.SeverityError && iss.Expression[0] == "CodeSystem.supplements" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateSupplementAgainstBase_RejectsNewCode(t *testing.T) {
	base := validCodeSystem()
	supplement := &concept.CodeSystem{
		URL:         "http://example.org/fruit-supplement",
		Status:      "active",
		Content:     concept.ContentSupplement,
		Supplements: base.URL,
		Concept:     []concept.CodeSystemConcept{{Code: "grape"}},
	}

	issues := ValidateSupplementAgainstBase(supplement, base)
	assert.Len(t, issues, 1)
	assert.Equal(t, termserver.IssueTypeBusinessRule, issues[0].Code)
}
