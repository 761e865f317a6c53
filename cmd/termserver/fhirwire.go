package main

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/concept"
)

// wireParameters is a thin, lenient Parameters-resource shape: enough to
// carry the five operations' in/out parameters without pulling in a full
// FHIR resource model.
type wireParameters struct {
	ResourceType string          `json:"resourceType"`
	Parameter    []wireParameter `json:"parameter,omitempty"`
}

type wireParameter struct {
	Name                 string               `json:"name"`
	ValueString          string               `json:"valueString,omitempty"`
	ValueURI             string               `json:"valueUri,omitempty"`
	ValueCode            string               `json:"valueCode,omitempty"`
	ValueBoolean         *bool                `json:"valueBoolean,omitempty"`
	ValueInteger         *int                 `json:"valueInteger,omitempty"`
	ValueCoding          *wireCoding          `json:"valueCoding,omitempty"`
	ValueCodeableConcept *wireCodeableConcept `json:"valueCodeableConcept,omitempty"`
	Part                 []wireParameter      `json:"part,omitempty"`
}

type wireCoding struct {
	System  string `json:"system,omitempty"`
	Version string `json:"version,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type wireCodeableConcept struct {
	Coding []wireCoding `json:"coding,omitempty"`
	Text   string       `json:"text,omitempty"`
}

// str returns p's value under whichever value[x] it was sent as,
// since clients send valueUri, valueString and valueCode
// interchangeably where the meaning is unambiguous.
func (p wireParameter) str() string {
	switch {
	case p.ValueString != "":
		return p.ValueString
	case p.ValueURI != "":
		return p.ValueURI
	case p.ValueCode != "":
		return p.ValueCode
	default:
		return ""
	}
}

func (p wireParameter) coding() *concept.Coding {
	if p.ValueCoding == nil {
		return nil
	}
	return &concept.Coding{
		System:  p.ValueCoding.System,
		Version: p.ValueCoding.Version,
		Code:    p.ValueCoding.Code,
		Display: p.ValueCoding.Display,
	}
}

func (p wireParameter) codeableConcept() *concept.CodeableConcept {
	if p.ValueCodeableConcept == nil {
		return nil
	}
	cc := &concept.CodeableConcept{Text: p.ValueCodeableConcept.Text}
	for _, c := range p.ValueCodeableConcept.Coding {
		cc.Coding = append(cc.Coding, concept.Coding{
			System: c.System, Version: c.Version, Code: c.Code, Display: c.Display,
		})
	}
	return cc
}

// wireParams collects a request's parameters by name, regardless of
// whether they arrived as URL query values or a POST Parameters body;
// inParams merges both into this shape before any handler looks at it.
// byName holds the last value seen per name, for the common
// single-valued case; multi holds every value seen per name, for
// repeatable parameters like $lookup's property[] or $translate's match
// dependency parts.
type wireParams struct {
	byName map[string]wireParameter
	multi  map[string][]wireParameter
}

func (w wireParams) get(name string) wireParameter {
	return w.byName[name]
}

func (w wireParams) str(name string) string {
	return w.byName[name].str()
}

func (w wireParams) boolDefault(name string, def bool) bool {
	p, ok := w.byName[name]
	if !ok || p.ValueBoolean == nil {
		return def
	}
	return *p.ValueBoolean
}

func (w wireParams) intDefault(name string, def int) int {
	p, ok := w.byName[name]
	if ok && p.ValueInteger != nil {
		return *p.ValueInteger
	}
	// query parameters carry ints as strings, not valueInteger
	if raw := w.str(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}

// all returns every value received for name, for repeatable parameters
//.
func (w wireParams) all(name string) []wireParameter {
	return w.multi[name]
}

// inParams builds a wireParams from either a POST Parameters body or
// GET query parameters, whichever the request carries.
func inParams(c echo.Context) (wireParams, error) {
	w := wireParams{byName: make(map[string]wireParameter), multi: make(map[string][]wireParameter)}

	if c.Request().Method == http.MethodPost && c.Request().ContentLength != 0 {
		var body wireParameters
		if err := c.Bind(&body); err != nil {
			return w, err
		}
		for _, p := range body.Parameter {
			w.byName[p.Name] = p
			w.multi[p.Name] = append(w.multi[p.Name], p)
		}
		return w, nil
	}

	for name, values := range c.QueryParams() {
		for _, v := range values {
			p := wireParameter{Name: name, ValueString: v}
			w.byName[name] = p
			w.multi[name] = append(w.multi[name], p)
		}
	}
	return w, nil
}

// outParam is a convenience builder for one name/valueString pair.
func outParam(name, value string) wireParameter {
	return wireParameter{Name: name, ValueString: value}
}

func outParamBool(name string, value bool) wireParameter {
	v := value
	return wireParameter{Name: name, ValueBoolean: &v}
}

// outParamIssue wraps a non-fatal Issue as an "issues" output part, for
// operations (like $validate-code against a multi-coding CodeableConcept)
// that succeed overall but want to report per-candidate diagnostics
// alongside the result, rather than failing the whole request.
func outParamIssue(iss termserver.Issue) wireParameter {
	p := wireParameter{Name: "issues", Part: []wireParameter{
		{Name: "severity", ValueCode: string(iss.Severity)},
		{Name: "code", ValueCode: string(iss.Code)},
	}}
	if iss.Diagnostics != "" {
		p.Part = append(p.Part, wireParameter{Name: "diagnostics", ValueString: iss.Diagnostics})
	}
	for _, expr := range iss.Expression {
		p.Part = append(p.Part, wireParameter{Name: "expression", ValueString: expr})
	}
	return p
}

// writeOutcome responds with the given HTTP status and an
// OperationOutcome built from issues (a single informational issue when
// issues is empty), and echoes the request id.
func (s *server) writeOutcome(c echo.Context, requestID string, status int, issues []termserver.Issue) error {
	c.Response().Header().Set(requestIDHeader, requestID)

	outcome := struct {
		ResourceType string         `json:"resourceType"`
		Issue        []outcomeIssue `json:"issue"`
	}{ResourceType: "OperationOutcome"}

	for _, iss := range issues {
		s.metrics.RecordIssue(iss.Severity)
		outcome.Issue = append(outcome.Issue, outcomeIssue{
			Severity:    string(iss.Severity),
			Code:        string(iss.Code),
			Diagnostics: iss.Diagnostics,
			Expression:  iss.Expression,
		})
	}
	if len(outcome.Issue) == 0 {
		outcome.Issue = []outcomeIssue{{Severity: "information", Code: "informational"}}
	}

	return c.JSON(status, outcome)
}

type outcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

// writeError turns a transport/infrastructure error into a one-issue
// OperationOutcome response. This is only reached for Dispatcher.Execute's
// error return, which per worker/job.go's contract is reserved for
// failures outside the operation's own issue taxonomy (a dead provider
// backend, a cancelled context), so 500/processing is always correct
// here; operation-level failures arrive as OperationResult.Issues
// instead and go through issuesStatus/writeOutcome.
func (s *server) writeError(c echo.Context, requestID string, err error) error {
	return s.writeOutcome(c, requestID, http.StatusInternalServerError, []termserver.Issue{
		termserver.Error(termserver.IssueTypeProcessing).Diagnostics(err.Error()).Build(),
	})
}

// issuesStatus derives the response status for a set of issues: the
// status of the first error-or-fatal severity issue, or 200 if every
// issue is informational or a warning (the operation still succeeded).
func issuesStatus(issues []termserver.Issue) int {
	for _, iss := range issues {
		if iss.IsError() {
			return iss.Code.HTTPStatus()
		}
	}
	return http.StatusOK
}
