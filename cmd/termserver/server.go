package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/expansion"
	"github.com/gofhir/termserver/registry"
	"github.com/gofhir/termserver/service"
	"github.com/gofhir/termserver/worker"
)

// server wires the five terminology operations and the two read
// endpoints onto an echo.Echo with thin handlers: each decodes its wire
// parameters, dispatches through the router, and renders either a
// success Parameters body or an OperationOutcome.
type server struct {
	echo     *echo.Echo
	router   *router
	registry *registry.Providers
	metrics  *termserver.Metrics
	log      zerolog.Logger
}

func newServer(reg *registry.Providers, rt *router, metrics *termserver.Metrics, log zerolog.Logger) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &server{echo: e, router: rt, registry: reg, metrics: metrics, log: log}

	e.Use(middleware.Recover())
	e.Use(s.requestIDMiddleware)
	e.Use(s.loggingMiddleware)

	e.GET("/ValueSet/$expand", s.handleExpand)
	e.POST("/ValueSet/$expand", s.handleExpand)
	e.GET("/CodeSystem/$lookup", s.handleLookup)
	e.POST("/CodeSystem/$lookup", s.handleLookup)
	e.GET("/CodeSystem/$validate-code", s.handleValidateCode)
	e.POST("/CodeSystem/$validate-code", s.handleValidateCode)
	e.GET("/ValueSet/$validate-code", s.handleValidateCode)
	e.POST("/ValueSet/$validate-code", s.handleValidateCode)
	e.GET("/CodeSystem/$subsumes", s.handleSubsumes)
	e.POST("/CodeSystem/$subsumes", s.handleSubsumes)
	e.GET("/ConceptMap/$translate", s.handleTranslate)
	e.POST("/ConceptMap/$translate", s.handleTranslate)

	e.GET("/:resourceType/:id", s.handleRead)
	e.PUT("/:resourceType/:id", s.handleNotSupported)
	e.DELETE("/:resourceType/:id", s.handleNotSupported)

	e.GET("/metrics", s.handleMetrics)

	return s
}

const requestIDHeader = "X-Request-Id"

func (s *server) requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		return next(c)
	}
}

func (s *server) loggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		elapsed := time.Since(start)

		s.metrics.RecordValidation(elapsed, c.Response().Status < 400)

		s.log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("requestID", requestID(c)).
			Int("status", c.Response().Status).
			Dur("elapsed", elapsed).
			Msg("request")
		return err
	}
}

func requestID(c echo.Context) string {
	id, _ := c.Get("requestID").(string)
	return id
}

func (s *server) handleMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, s.metrics.Export())
}

func (s *server) handleNotSupported(c echo.Context) error {
	reqID := requestID(c)
	return s.writeOutcome(c, reqID, http.StatusMethodNotAllowed, []termserver.Issue{
		termserver.Error(termserver.IssueTypeNotSupported).
			Diagnostics(c.Request().Method + " is not supported on this resource").Build(),
	})
}

func (s *server) handleRead(c echo.Context) error {
	reqID := requestID(c)
	resourceType := c.Param("resourceType")
	id := c.Param("id")

	res, ok := s.registry.ResourceByID(resourceType, id)
	if !ok {
		return s.writeOutcome(c, reqID, http.StatusNotFound, []termserver.Issue{
			termserver.Error(termserver.IssueTypeNotFound).
				Diagnostics("no " + resourceType + " with id " + id).Build(),
		})
	}
	c.Response().Header().Set(requestIDHeader, reqID)
	return c.JSON(http.StatusOK, res)
}

func (s *server) handleLookup(c echo.Context) error {
	reqID := requestID(c)
	in, err := inParams(c)
	if err != nil {
		return s.writeError(c, reqID, err)
	}

	params := service.LookupParams{
		System:          in.str("system"),
		Version:         in.str("version"),
		Code:            in.str("code"),
		Coding:          in.get("coding").coding(),
		DisplayLanguage: in.str("displayLanguage"),
	}
	for _, p := range in.all("property") {
		v := p.str()
		if v == "" {
			continue
		}
		// a query-string ?property=a,b lets one value carry several
		// codes; a POST body's repeated property parameters are
		// already one code each, and Split on a comma-free string is
		// a no-op.
		params.Properties = append(params.Properties, strings.Split(v, ",")...)
	}

	res, err := s.router.execute(c.Request().Context(), worker.OpLookup, params)
	if err != nil {
		return s.writeError(c, reqID, err)
	}
	if status := issuesStatus(res.Issues); status != http.StatusOK {
		return s.writeOutcome(c, reqID, status, res.Issues)
	}

	lr, _ := res.Value.(*service.LookupResult)
	out := wireParameters{ResourceType: "Parameters", Parameter: []wireParameter{
		outParam("name", lr.Name),
		outParam("version", lr.Version),
		outParam("display", lr.Display),
	}}
	for _, d := range lr.Designation {
		out.Parameter = append(out.Parameter, wireParameter{
			Name: "designation",
			Part: []wireParameter{
				outParam("language", d.Language),
				outParam("value", d.Value),
			},
		})
	}
	for _, p := range lr.Property {
		out.Parameter = append(out.Parameter, wireParameter{
			Name: "property",
			Part: []wireParameter{outParam("code", p.Code)},
		})
	}

	c.Response().Header().Set(requestIDHeader, reqID)
	return c.JSON(http.StatusOK, out)
}

func (s *server) handleValidateCode(c echo.Context) error {
	reqID := requestID(c)
	in, err := inParams(c)
	if err != nil {
		return s.writeError(c, reqID, err)
	}

	params := service.ValidateCodeParams{
		ValueSetURL:       in.str("url"),
		ValueSetVersion:   in.str("valueSetVersion"),
		CodeSystemURL:     in.str("codeSystem"),
		CodeSystemVersion: in.str("codeSystemVersion"),
		System:            in.str("system"),
		Code:              in.str("code"),
		Coding:            in.get("coding").coding(),
		CodeableConcept:   in.get("codeableConcept").codeableConcept(),
		DisplayLanguage:   in.str("displayLanguage"),
	}
	if strings.HasPrefix(c.Path(), "/ValueSet") && params.ValueSetURL == "" {
		params.ValueSetURL = in.str("valueSet")
	}

	res, err := s.router.execute(c.Request().Context(), worker.OpValidateCode, params)
	if err != nil {
		return s.writeError(c, reqID, err)
	}
	if status := issuesStatus(res.Issues); status != http.StatusOK {
		return s.writeOutcome(c, reqID, status, res.Issues)
	}

	vr, _ := res.Value.(*service.ValidateCodeResult)
	out := wireParameters{ResourceType: "Parameters", Parameter: []wireParameter{
		outParamBool("result", vr.Result),
	}}
	if vr.Display != "" {
		out.Parameter = append(out.Parameter, outParam("display", vr.Display))
	}
	if vr.Message != "" {
		out.Parameter = append(out.Parameter, outParam("message", vr.Message))
	}
	// A matched CodeableConcept can still carry warnings about its other,
	// non-matching codings; surface them as repeated "issues" parts rather
	// than dropping them, since the response is otherwise a bare success.
	for _, iss := range res.Issues {
		out.Parameter = append(out.Parameter, outParamIssue(iss))
	}

	c.Response().Header().Set(requestIDHeader, reqID)
	return c.JSON(http.StatusOK, out)
}

func (s *server) handleExpand(c echo.Context) error {
	reqID := requestID(c)
	in, err := inParams(c)
	if err != nil {
		return s.writeError(c, reqID, err)
	}

	params := service.ExpandParams{
		ValueSetURL:         in.str("url"),
		ValueSetVersion:     in.str("valueSetVersion"),
		TextFilter:          in.str("filter"),
		Count:               in.intDefault("count", 0),
		Offset:              in.intDefault("offset", 0),
		DisplayLanguage:     in.str("displayLanguage"),
		ActiveOnly:          in.boolDefault("activeOnly", false),
		IncludeDesignations: in.boolDefault("includeDesignations", false),
		ExcludeNested:       in.boolDefault("excludeNested", false),
		LimitedExpansion:    in.boolDefault("limitedExpansion", false),
	}
	params.Versions = versionRules(in)

	res, err := s.router.execute(c.Request().Context(), worker.OpExpand, params)
	if err != nil {
		return s.writeError(c, reqID, err)
	}
	if status := issuesStatus(res.Issues); status != http.StatusOK {
		return s.writeOutcome(c, reqID, status, res.Issues)
	}

	er, _ := res.Value.(*service.ExpandResult)
	type expandContains struct {
		System  string `json:"system,omitempty"`
		Version string `json:"version,omitempty"`
		Code    string `json:"code,omitempty"`
		Display string `json:"display,omitempty"`
	}
	type expansion struct {
		Identifier string           `json:"identifier,omitempty"`
		Offset     int              `json:"offset"`
		Total      *int             `json:"total,omitempty"`
		Contains   []expandContains `json:"contains"`
	}
	out := struct {
		ResourceType string    `json:"resourceType"`
		Expansion    expansion `json:"expansion"`
	}{ResourceType: "ValueSet"}
	out.Expansion.Identifier = er.Identifier
	out.Expansion.Offset = er.Offset
	if er.Total >= 0 {
		total := er.Total
		out.Expansion.Total = &total
	}
	for _, code := range er.Contains {
		out.Expansion.Contains = append(out.Expansion.Contains, expandContains{
			System: code.System, Version: code.Version, Code: code.Code, Display: code.Display,
		})
	}

	c.Response().Header().Set(requestIDHeader, reqID)
	return c.JSON(http.StatusOK, out)
}

// versionRules collects the repeated system-version (default),
// check-system-version, and force-system-version parameters, each a
// "system|version" canonical.
func versionRules(in wireParams) []expansion.VersionRule {
	var out []expansion.VersionRule
	collect := func(name string, mode expansion.VersionRuleMode) {
		for _, p := range in.all(name) {
			system, version, ok := strings.Cut(p.str(), "|")
			if !ok || system == "" {
				continue
			}
			out = append(out, expansion.VersionRule{
				Scope: expansion.ScopeCodeSystem, System: system, Version: version, Mode: mode,
			})
		}
	}
	collect("system-version", expansion.VersionDefault)
	collect("check-system-version", expansion.VersionCheck)
	collect("force-system-version", expansion.VersionOverride)
	return out
}

func (s *server) handleSubsumes(c echo.Context) error {
	reqID := requestID(c)
	in, err := inParams(c)
	if err != nil {
		return s.writeError(c, reqID, err)
	}

	params := service.SubsumesParams{
		System:  in.str("system"),
		Version: in.str("version"),
		CodeA:   in.str("codeA"),
		CodeB:   in.str("codeB"),
	}
	if codingA := in.get("codingA").coding(); codingA != nil {
		params.System = codingA.System
		params.Version = codingA.Version
		params.CodeA = codingA.Code
	}
	if codingB := in.get("codingB").coding(); codingB != nil {
		params.CodeB = codingB.Code
	}

	res, err := s.router.execute(c.Request().Context(), worker.OpSubsumes, params)
	if err != nil {
		return s.writeError(c, reqID, err)
	}
	if status := issuesStatus(res.Issues); status != http.StatusOK {
		return s.writeOutcome(c, reqID, status, res.Issues)
	}

	sr, _ := res.Value.(*service.SubsumesResult)
	out := wireParameters{ResourceType: "Parameters", Parameter: []wireParameter{
		outParam("outcome", sr.Outcome),
	}}

	c.Response().Header().Set(requestIDHeader, reqID)
	return c.JSON(http.StatusOK, out)
}

func (s *server) handleTranslate(c echo.Context) error {
	reqID := requestID(c)
	in, err := inParams(c)
	if err != nil {
		return s.writeError(c, reqID, err)
	}

	params := service.TranslateParams{
		ConceptMapURL:         in.str("url"),
		ConceptMapVersion:     in.str("conceptMapVersion"),
		SourceSystem:          in.str("system"),
		SourceCode:            in.str("code"),
		SourceCoding:          in.get("sourceCoding").coding(),
		SourceCodeableConcept: in.get("sourceCodeableConcept").codeableConcept(),
		TargetSystem:          in.str("targetSystem"),
		SourceScope:           in.str("sourceScope"),
		TargetScope:           in.str("targetScope"),
	}
	if params.SourceSystem == "" {
		params.SourceSystem = in.str("sourceSystem")
	}
	if params.SourceCode == "" {
		params.SourceCode = in.str("sourceCode")
	}
	for _, dep := range in.all("dependency") {
		var d service.TranslateDependency
		for _, part := range dep.Part {
			switch part.Name {
			case "property":
				d.Property = part.str()
			case "system":
				d.System = part.str()
			case "value":
				d.Value = part.str()
			}
		}
		if d.Property != "" {
			params.Dependency = append(params.Dependency, d)
		}
	}

	res, err := s.router.execute(c.Request().Context(), worker.OpTranslate, params)
	if err != nil {
		return s.writeError(c, reqID, err)
	}
	if status := issuesStatus(res.Issues); status != http.StatusOK {
		return s.writeOutcome(c, reqID, status, res.Issues)
	}

	tr, _ := res.Value.(*service.TranslateResult)
	out := wireParameters{ResourceType: "Parameters", Parameter: []wireParameter{
		outParamBool("result", tr.Result),
	}}
	if tr.Message != "" {
		out.Parameter = append(out.Parameter, outParam("message", tr.Message))
	}
	for _, m := range tr.Match {
		part := []wireParameter{
			outParam("relationship", string(m.Relationship)),
			{Name: "concept", ValueCoding: &wireCoding{
				System: m.Concept.System, Version: m.Concept.Version,
				Code: m.Concept.Code, Display: m.Concept.Display,
			}},
		}
		if m.Source != "" {
			part = append(part, outParam("source", m.Source))
		}
		out.Parameter = append(out.Parameter, wireParameter{Name: "match", Part: part})
	}

	c.Response().Header().Set(requestIDHeader, reqID)
	return c.JSON(http.StatusOK, out)
}
