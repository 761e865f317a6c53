package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	termserver "github.com/gofhir/termserver"
)

func TestInParams_Query(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?system=http://example.org&code=dog&count=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	in, err := inParams(c)
	require.NoError(t, err)
	assert.Equal(t, "http://example.org", in.str("system"))
	assert.Equal(t, "dog", in.str("code"))
	assert.Equal(t, 10, in.intDefault("count", 0))
	assert.Equal(t, 99, in.intDefault("missing", 99))
}

func TestInParams_PostBody(t *testing.T) {
	body := `{
		"resourceType": "Parameters",
		"parameter": [
			{"name": "system", "valueUri": "http://example.org"},
			{"name": "code", "valueCode": "dog"},
			{"name": "property", "valueCode": "parent"},
			{"name": "property", "valueCode": "child"}
		]
	}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	in, err := inParams(c)
	require.NoError(t, err)
	assert.Equal(t, "http://example.org", in.str("system"))
	assert.Equal(t, "dog", in.str("code"))

	var props []string
	for _, p := range in.all("property") {
		props = append(props, p.str())
	}
	assert.Equal(t, []string{"parent", "child"}, props)
}

func TestWireParameter_StrPrefersValueString(t *testing.T) {
	p := wireParameter{ValueString: "a", ValueURI: "b", ValueCode: "c"}
	assert.Equal(t, "a", p.str())

	p2 := wireParameter{ValueURI: "b"}
	assert.Equal(t, "b", p2.str())

	p3 := wireParameter{ValueCode: "c"}
	assert.Equal(t, "c", p3.str())
}

func TestIssuesStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, issuesStatus(nil))

	warn := []termserver.Issue{termserver.Warning(termserver.IssueTypeBusinessRule).Build()}
	assert.Equal(t, http.StatusOK, issuesStatus(warn))

	notFound := []termserver.Issue{termserver.Error(termserver.IssueTypeNotFound).Build()}
	assert.Equal(t, http.StatusNotFound, issuesStatus(notFound))

	tooCostly := []termserver.Issue{termserver.Error(termserver.IssueTypeTooCostly).Build()}
	assert.Equal(t, http.StatusUnprocessableEntity, issuesStatus(tooCostly))
}
