// Package service's Dispatcher wires registry.Providers and
// pkg/expansion.Expander behind the five operation interfaces declared in
// types.go, and implements worker.Executor so worker.Pool can dispatch an
// OperationRequest without a type switch at the pool boundary.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/designation"
	"github.com/gofhir/termserver/pkg/expansion"
	"github.com/gofhir/termserver/pkg/lang"
	"github.com/gofhir/termserver/pkg/opctx"
	"github.com/gofhir/termserver/pkg/provider"
	"github.com/gofhir/termserver/pkg/rescache"
	"github.com/gofhir/termserver/pool"
	"github.com/gofhir/termserver/worker"
)

// registryCacheID buckets registry-resolved ValueSets in the shared
// resource cache, separate from any client-supplied tx-resource cache-id
// a future $expand/$validate-code call might carry.
const registryCacheID = "registry"

// Registry is the subset of registry.Providers the Dispatcher needs.
type Registry interface {
	ProviderFor(system string) (provider.Provider, bool)
	CodeSystemByURL(url string) (*concept.CodeSystem, bool)
	ValueSetByURL(url string) (*concept.ValueSet, bool)
	ConceptMapByURL(url string) (*concept.ConceptMap, bool)
	ConceptMapsFor(sourceSystem, targetSystem string) []*concept.ConceptMap
}

// Dispatcher implements worker.Executor and TerminologyService.
type Dispatcher struct {
	registry      Registry
	expander      *expansion.Expander
	resourceCache *rescache.Cache
	metrics       *termserver.Metrics
	budget        time.Duration
	maxExpansion  int
	debugger      bool
}

// NewDispatcher builds a Dispatcher over registry and expander, applying
// the per-operation time budget from opts.OperationTimeout. A resource
// cache is built alongside it so
// $validate-code/$expand don't re-resolve the same ValueSet from the
// registry on every call.
func NewDispatcher(registry Registry, expander *expansion.Expander, opts *termserver.Options) *Dispatcher {
	cacheSize := 0
	if opts != nil {
		cacheSize = opts.ResourceCacheSize
	}
	d := &Dispatcher{registry: registry, expander: expander, resourceCache: rescache.New(cacheSize)}
	if opts != nil {
		d.budget = opts.OperationTimeout
		d.maxExpansion = opts.MaxExpansionSize
	}
	return d
}

// WithMetrics attaches m so the resource cache and OperationContext pool
// record hit/miss and acquire/release counters. Returns d for chaining
// at construction time.
func (d *Dispatcher) WithMetrics(m *termserver.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// PruneResources drops resource-cache entries unused for longer than
// maxAge, returning the number removed. Called by the operator-facing
// maintenance loop.
func (d *Dispatcher) PruneResources(maxAge time.Duration) int {
	return d.resourceCache.Prune(maxAge)
}

// resolveValueSet resolves a ValueSet by URL/version, consulting the
// shared resource cache before falling back to the registry.
func (d *Dispatcher) resolveValueSet(url, version string) (*concept.ValueSet, bool) {
	key := rescache.Key{ResourceType: "ValueSet", URL: url, Version: version}
	if vs, ok := d.resourceCache.GetValueSet(registryCacheID, url, version); ok {
		if d.metrics != nil {
			d.metrics.RecordCacheHit()
		}
		return vs, true
	}
	if d.metrics != nil {
		d.metrics.RecordCacheMiss()
	}
	vs, ok := d.registry.ValueSetByURL(url)
	if ok {
		d.resourceCache.Add(registryCacheID, key, vs)
	}
	return vs, ok
}

// Execute implements worker.Executor, dispatching req by Kind to the
// matching operation method. Transport-level failures (a bad Params type)
// are returned as the error; operation-level failures become Issues on
// the result, per the error-kind taxonomy's diagnostic/error split.
func (d *Dispatcher) Execute(ctx context.Context, req worker.OperationRequest) (worker.OperationResult, error) {
	switch req.Kind {
	case worker.OpLookup:
		p, ok := req.Params.(LookupParams)
		if !ok {
			return worker.OperationResult{}, fmt.Errorf("service: lookup request carries %T, want LookupParams", req.Params)
		}
		res, issues, err := d.lookup(ctx, p)
		return resultOf(req.ID, res, issues, err)

	case worker.OpValidateCode:
		p, ok := req.Params.(ValidateCodeParams)
		if !ok {
			return worker.OperationResult{}, fmt.Errorf("service: validate-code request carries %T, want ValidateCodeParams", req.Params)
		}
		res, issues, err := d.validateCode(ctx, p)
		return resultOf(req.ID, res, issues, err)

	case worker.OpExpand:
		p, ok := req.Params.(ExpandParams)
		if !ok {
			return worker.OperationResult{}, fmt.Errorf("service: expand request carries %T, want ExpandParams", req.Params)
		}
		res, issues, err := d.expand(ctx, p)
		return resultOf(req.ID, res, issues, err)

	case worker.OpSubsumes:
		p, ok := req.Params.(SubsumesParams)
		if !ok {
			return worker.OperationResult{}, fmt.Errorf("service: subsumes request carries %T, want SubsumesParams", req.Params)
		}
		res, issues, err := d.subsumes(ctx, p)
		return resultOf(req.ID, res, issues, err)

	case worker.OpTranslate:
		p, ok := req.Params.(TranslateParams)
		if !ok {
			return worker.OperationResult{}, fmt.Errorf("service: translate request carries %T, want TranslateParams", req.Params)
		}
		res, issues, err := d.translate(ctx, p)
		return resultOf(req.ID, res, issues, err)
	}

	return worker.OperationResult{}, fmt.Errorf("service: unknown operation kind %q", req.Kind)
}

// resultOf packages an operation's (value, issues, transport-error) into
// worker.OperationResult/error, per the diagnostic/error split: a non-nil
// err here is a transport/infrastructure failure (it surfaces as
// JobResult.Error); everything else a failed operation wants to report
// travels as an Issue instead.
func resultOf(id string, value any, issues []termserver.Issue, err error) (worker.OperationResult, error) {
	if err != nil {
		return worker.OperationResult{}, err
	}
	return worker.OperationResult{ID: id, Value: value, Issues: issues}, nil
}

func (d *Dispatcher) newContext(displayLanguage string) *opctx.Context {
	languages := lang.Languages{}
	if displayLanguage != "" {
		languages = lang.Single(displayLanguage)
	}
	if d.metrics != nil {
		d.metrics.RecordPoolAcquire()
	}
	return opctx.Acquire(opctx.Options{Budget: d.budget, Debugger: d.debugger, Languages: languages})
}

// releaseContext returns oc to the pool, recording the matching release
// counter for every newContext acquire.
func (d *Dispatcher) releaseContext(oc *opctx.Context) {
	oc.Release()
	if d.metrics != nil {
		d.metrics.RecordPoolRelease()
	}
}

// Lookup implements $lookup against a single CodeSystem concept.
func (d *Dispatcher) Lookup(ctx context.Context, params LookupParams) (*LookupResult, error) {
	res, issues, err := d.lookup(ctx, params)
	if err != nil {
		return nil, err
	}
	if hasError(issues) {
		return nil, issuesErr(issues)
	}
	return res, nil
}

func (d *Dispatcher) lookup(ctx context.Context, params LookupParams) (*LookupResult, []termserver.Issue, error) {
	system, code := params.System, params.Code
	if params.Coding != nil {
		system, code = params.Coding.System, params.Coding.Code
	}
	if system == "" || code == "" {
		return nil, errIssues(termserver.IssueTypeRequired, "system and code are required"), nil
	}

	oc := d.newContext(params.DisplayLanguage)
	defer d.releaseContext(oc)

	prov, ok := d.registry.ProviderFor(system)
	if !ok {
		return nil, errIssues(termserver.IssueTypeNotFound, fmt.Sprintf("unknown code system %q", system)), nil
	}

	loc, err := prov.Locate(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !loc.Found() {
		return nil, errIssues(termserver.IssueTypeNotFound, loc.Message), nil
	}

	display, err := prov.Display(ctx, loc.Context)
	if err != nil {
		return nil, nil, err
	}

	var raw []concept.Designation
	if err := prov.Designations(ctx, loc.Context, &raw); err != nil {
		return nil, nil, err
	}
	set := designation.NewSet()
	set.AddBase(raw...)
	if best, ok := set.Best(oc.Languages); ok {
		display = best
	}

	props, err := prov.Properties(ctx, loc.Context)
	if err != nil {
		return nil, nil, err
	}
	props = filterProperties(props, params.Properties)
	props = append(props, d.pseudoProperties(ctx, prov, loc.Context, code, params.Properties)...)

	return &LookupResult{
		Name:        prov.System(),
		Version:     prov.Version(),
		Display:     display,
		Designation: set.All(),
		Property:    props,
	}, nil, nil
}

// pseudoProperties synthesizes the "parent"/"child" pseudo-properties
// from the provider's Hierarchy and Iteration
// capabilities, when requested explicitly, via "*", or when no
// properties are requested at all.
func (d *Dispatcher) pseudoProperties(ctx context.Context, prov provider.Provider, c provider.Context, code string, requested []string) []concept.Property {
	wantAll := len(requested) == 0
	want := make(map[string]bool, len(requested))
	for _, r := range requested {
		if r == "*" {
			wantAll = true
		}
		want[r] = true
	}

	var out []concept.Property
	if wantAll || want["parent"] {
		if h, ok := provider.AsHierarchy(prov); ok {
			if parent, ok := h.Parent(ctx, code); ok && parent != "" {
				out = append(out, concept.Property{Code: "parent", Value: parent})
			}
		}
	}
	if wantAll || want["child"] {
		if it, ok := provider.AsIteration(prov); ok {
			cur, err := it.Iterator(ctx, c)
			if err == nil {
				for {
					child, more, err := cur.Next(ctx)
					if err != nil || !more {
						break
					}
					if childCode, err := prov.Code(ctx, child); err == nil {
						out = append(out, concept.Property{Code: "child", Value: childCode})
					}
				}
			}
		}
	}
	return out
}

func filterProperties(props []concept.Property, requested []string) []concept.Property {
	if len(requested) == 0 || (len(requested) == 1 && requested[0] == "*") {
		return props
	}
	want := make(map[string]bool, len(requested))
	for _, r := range requested {
		want[r] = true
	}
	out := make([]concept.Property, 0, len(props))
	for _, p := range props {
		if want[p.Code] {
			out = append(out, p)
		}
	}
	return out
}

// ValidateCode implements $validate-code against either a CodeSystem or a
// ValueSet context.
func (d *Dispatcher) ValidateCode(ctx context.Context, params ValidateCodeParams) (*ValidateCodeResult, error) {
	res, issues, err := d.validateCode(ctx, params)
	if err != nil {
		return nil, err
	}
	if hasError(issues) {
		return nil, issuesErr(issues)
	}
	return res, nil
}

func (d *Dispatcher) validateCode(ctx context.Context, params ValidateCodeParams) (*ValidateCodeResult, []termserver.Issue, error) {
	candidates := codingCandidates(params)
	if len(candidates) == 0 {
		return nil, errIssues(termserver.IssueTypeRequired, "code is required"), nil
	}

	if params.CodeSystemURL == "" && params.ValueSetURL == "" {
		return nil, errIssues(termserver.IssueTypeRequired, "one of url or context is required"), nil
	}

	// A CodeableConcept may carry several codings (e.g. a local code plus
	// a SNOMED translation); the concept is valid if any one of them
	// validates against the context. Failed candidates are reported as
	// warnings against their codeableConcept.coding[n] path rather than
	// dropped, so a caller can see which codings were tried.
	var warnings []termserver.Issue
	for _, cand := range candidates {
		var (
			res    *ValidateCodeResult
			issues []termserver.Issue
			err    error
		)
		if params.CodeSystemURL != "" {
			res, issues, err = d.validateAgainstCodeSystem(ctx, params, cand.system, cand.code)
		} else {
			res, issues, err = d.validateAgainstValueSet(ctx, params, cand.system, cand.code)
		}
		if err != nil {
			return nil, nil, err
		}
		if hasError(issues) {
			return nil, issues, nil
		}
		if res.Result {
			return res, warnings, nil
		}
		if cand.path != "" {
			warnings = append(warnings, termserver.Warning(termserver.IssueTypeCodeInvalid).
				Diagnostics(res.Message).At(cand.path).Build())
		}
	}

	last := candidates[len(candidates)-1]
	return &ValidateCodeResult{Result: false, Message: fmt.Sprintf("code %q not found", last.code), Code: last.code, System: last.system}, warnings, nil
}

// codingCandidate is one system+code pair worth validating, with the
// FHIRPath expression identifying where it came from (empty for a bare
// code+system or single Coding, since there's nothing to disambiguate).
type codingCandidate struct {
	system string
	code   string
	path   string
}

// codingCandidates extracts the codings worth trying from one input
// shape of params, checked in the order Coding, CodeableConcept (each
// entry of its coding array that has a code), then Code+System; the
// first shape present is used and the others are ignored.
func codingCandidates(params ValidateCodeParams) []codingCandidate {
	switch {
	case params.Coding != nil:
		return []codingCandidate{{system: params.Coding.System, code: params.Coding.Code}}
	case params.CodeableConcept != nil && len(params.CodeableConcept.Coding) > 0:
		out := make([]codingCandidate, 0, len(params.CodeableConcept.Coding))
		for i, c := range params.CodeableConcept.Coding {
			if c.Code == "" {
				continue
			}
			path := pool.BuildPath(func(b *pool.PathBuilder) {
				b.WriteString("codeableConcept.coding")
				b.AppendIndex(i)
			})
			out = append(out, codingCandidate{system: c.System, code: c.Code, path: path})
		}
		return out
	case params.Code != "":
		return []codingCandidate{{system: params.System, code: params.Code}}
	default:
		return nil
	}
}

func (d *Dispatcher) validateAgainstCodeSystem(ctx context.Context, params ValidateCodeParams, system, code string) (*ValidateCodeResult, []termserver.Issue, error) {
	lookupSystem := system
	if lookupSystem == "" {
		lookupSystem = params.CodeSystemURL
	}
	prov, ok := d.registry.ProviderFor(params.CodeSystemURL)
	if !ok {
		return nil, errIssues(termserver.IssueTypeNotFound, fmt.Sprintf("unknown code system %q", params.CodeSystemURL)), nil
	}
	if system != "" && system != params.CodeSystemURL {
		return &ValidateCodeResult{Result: false, Message: fmt.Sprintf("code system %q does not match %q", system, params.CodeSystemURL)}, nil, nil
	}

	loc, err := prov.Locate(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if !loc.Found() {
		return &ValidateCodeResult{Result: false, Message: loc.Message, Code: code, System: lookupSystem}, nil, nil
	}
	display, _ := prov.Display(ctx, loc.Context)
	return &ValidateCodeResult{Result: true, Display: display, Code: code, System: lookupSystem}, nil, nil
}

func (d *Dispatcher) validateAgainstValueSet(ctx context.Context, params ValidateCodeParams, system, code string) (*ValidateCodeResult, []termserver.Issue, error) {
	vs, ok := d.resolveValueSet(params.ValueSetURL, params.ValueSetVersion)
	if !ok {
		return nil, errIssues(termserver.IssueTypeNotFound, fmt.Sprintf("unknown value set %q", params.ValueSetURL)), nil
	}

	oc := d.newContext(params.DisplayLanguage)
	defer d.releaseContext(oc)

	result, err := d.expander.Expand(ctx, oc, vs, expansion.Params{})
	if err != nil {
		return nil, nil, err
	}

	for _, c := range result.Codes {
		if c.Code != code {
			continue
		}
		if system != "" && c.System != system {
			continue
		}
		return &ValidateCodeResult{Result: true, Display: c.Display, Code: c.Code, System: c.System}, nil, nil
	}
	return &ValidateCodeResult{Result: false, Message: fmt.Sprintf("code %q not found in value set %q", code, params.ValueSetURL), Code: code, System: system}, nil, nil
}

// Expand implements $expand.
func (d *Dispatcher) Expand(ctx context.Context, params ExpandParams) (*ExpandResult, error) {
	res, issues, err := d.expand(ctx, params)
	if err != nil {
		return nil, err
	}
	if hasError(issues) {
		return nil, issuesErr(issues)
	}
	return res, nil
}

func (d *Dispatcher) expand(ctx context.Context, params ExpandParams) (*ExpandResult, []termserver.Issue, error) {
	if params.ValueSetURL == "" {
		return nil, errIssues(termserver.IssueTypeRequired, "valueSet url is required"), nil
	}
	vs, ok := d.resolveValueSet(params.ValueSetURL, params.ValueSetVersion)
	if !ok {
		return nil, errIssues(termserver.IssueTypeNotFound, fmt.Sprintf("unknown value set %q", params.ValueSetURL)), nil
	}

	oc := d.newContext(params.DisplayLanguage)
	defer d.releaseContext(oc)

	result, err := d.expander.Expand(ctx, oc, vs, expansion.Params{
		TextFilter:          params.TextFilter,
		Count:               params.Count,
		Offset:              params.Offset,
		DisplayLang:         params.DisplayLanguage,
		ActiveOnly:          params.ActiveOnly,
		IncludeDesignations: params.IncludeDesignations,
		ExcludeNested:       params.ExcludeNested,
		LimitedExpansion:    params.LimitedExpansion,
		MaxSize:             d.maxExpansion,
		Versions:            params.Versions,
	})
	if err != nil {
		if tc, ok := asTooCostly(err); ok {
			return nil, errIssues(termserver.IssueTypeTooCostly, tc.Error()), nil
		}
		if cr, ok := asCircular(err); ok {
			return nil, errIssues(termserver.IssueTypeProcessing, cr.Error()), nil
		}
		if fc, ok := asFilterNotClosed(err); ok {
			return nil, errIssues(termserver.IssueTypeTooCostly, fc.Error()), nil
		}
		var tl *expansion.TooLargeError
		if errors.As(err, &tl) {
			return nil, errIssues(termserver.IssueTypeTooCostly, tl.Error()), nil
		}
		var vc *expansion.VersionConflictError
		if errors.As(err, &vc) {
			return nil, errIssues(termserver.IssueTypeConflict, vc.Error()), nil
		}
		return nil, nil, err
	}

	contains := make([]ExpandedCode, len(result.Codes))
	for i, c := range result.Codes {
		contains[i] = ExpandedCode{
			System:       c.System,
			Version:      c.Version,
			Code:         c.Code,
			Display:      c.Display,
			Designations: c.Designations,
			Abstract:     c.Abstract,
			Inactive:     c.Inactive,
		}
	}

	return &ExpandResult{
		Identifier: result.Identifier,
		Total:      result.Total,
		Offset:     params.Offset,
		Contains:   contains,
	}, nil, nil
}

func asTooCostly(err error) (*opctx.TooCostlyError, bool) {
	tc, ok := err.(*opctx.TooCostlyError)
	return tc, ok
}

func asFilterNotClosed(err error) (*expansion.FilterNotClosedError, bool) {
	fc, ok := err.(*expansion.FilterNotClosedError)
	return fc, ok
}

func asCircular(err error) (*opctx.CircularReferenceError, bool) {
	cr, ok := err.(*opctx.CircularReferenceError)
	return cr, ok
}

// Subsumes implements $subsumes over a single CodeSystem's Hierarchy.
func (d *Dispatcher) Subsumes(ctx context.Context, params SubsumesParams) (*SubsumesResult, error) {
	res, issues, err := d.subsumes(ctx, params)
	if err != nil {
		return nil, err
	}
	if hasError(issues) {
		return nil, issuesErr(issues)
	}
	return res, nil
}

func (d *Dispatcher) subsumes(ctx context.Context, params SubsumesParams) (*SubsumesResult, []termserver.Issue, error) {
	if params.System == "" || params.CodeA == "" || params.CodeB == "" {
		return nil, errIssues(termserver.IssueTypeRequired, "system, codeA and codeB are required"), nil
	}
	prov, ok := d.registry.ProviderFor(params.System)
	if !ok {
		return nil, errIssues(termserver.IssueTypeNotFound, fmt.Sprintf("unknown code system %q", params.System)), nil
	}
	// Providers that implement SubsumesTest answer for themselves, even
	// outside the full Hierarchy capability — HGVS uses this to refuse
	// with "not supported". A provider with neither can never subsume;
	// that's an answer, not a failure.
	h, ok := prov.(interface {
		SubsumesTest(ctx context.Context, a, b string) (provider.Subsumption, error)
	})
	if !ok {
		return &SubsumesResult{Outcome: string(provider.NotSubsumed)}, nil, nil
	}

	sub, err := h.SubsumesTest(ctx, params.CodeA, params.CodeB)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return nil, errIssues(termserver.IssueTypeNotFound, "one or both codes not found"), nil
		}
		if errors.Is(err, provider.ErrNotSupported) {
			return nil, errIssues(termserver.IssueTypeNotSupported, err.Error()), nil
		}
		return nil, nil, err
	}
	return &SubsumesResult{Outcome: string(sub)}, nil, nil
}

// Translate implements $translate over a registered ConceptMap, either
// the one named explicitly or, absent that, every ConceptMap whose group
// source/target matches the requested systems.
func (d *Dispatcher) Translate(ctx context.Context, params TranslateParams) (*TranslateResult, error) {
	res, issues, err := d.translate(ctx, params)
	if err != nil {
		return nil, err
	}
	if hasError(issues) {
		return nil, issuesErr(issues)
	}
	return res, nil
}

func (d *Dispatcher) translate(ctx context.Context, params TranslateParams) (*TranslateResult, []termserver.Issue, error) {
	sources := translateSources(params)
	if len(sources) == 0 {
		return nil, errIssues(termserver.IssueTypeRequired, "source code is required"), nil
	}
	sourceSystem := sources[0].System

	var maps []*concept.ConceptMap
	if params.ConceptMapURL != "" {
		cm, ok := d.registry.ConceptMapByURL(params.ConceptMapURL)
		if !ok {
			return nil, errIssues(termserver.IssueTypeNotFound, fmt.Sprintf("unknown concept map %q", params.ConceptMapURL)), nil
		}
		maps = []*concept.ConceptMap{cm}
	} else {
		if sourceSystem == "" {
			return nil, errIssues(termserver.IssueTypeRequired, "sourceSystem is required when no conceptMap url is given"), nil
		}
		maps = d.registry.ConceptMapsFor(sourceSystem, params.TargetSystem)
		if len(maps) == 0 {
			// No implicit ConceptMap to try against is a not-found for the
			// ConceptMap resource itself, not the instance lookup below, so
			// this still returns 404, per the error-kind taxonomy.
			return nil, errIssues(termserver.IssueTypeNotFound, fmt.Sprintf("no concept map translates from %q", sourceSystem)), nil
		}
	}

	var matches []TranslateMatch
	for _, cm := range maps {
		if params.SourceScope != "" && cm.Source != "" && cm.Source != params.SourceScope {
			continue
		}
		if params.TargetScope != "" && cm.Target != "" && cm.Target != params.TargetScope {
			continue
		}
		for _, g := range cm.Group {
			if params.TargetSystem != "" && g.Target != params.TargetSystem {
				continue
			}
			for _, src := range sources {
				if src.System != "" && g.Source != src.System {
					continue
				}
				for _, elem := range g.Element {
					if elem.Code != src.Code {
						continue
					}
					for _, t := range elem.Target {
						if !dependenciesSatisfied(params.Dependency, t.DependsOn) {
							continue
						}
						matches = append(matches, TranslateMatch{
							Relationship: t.Equivalence,
							Concept:      concept.Coding{System: g.Target, Code: t.Code, Display: t.Display},
							Source:       cm.URL,
						})
					}
				}
			}
		}
	}

	if len(matches) == 0 {
		// An instance-translate-missing-source is a 400, not a 404, per
		// the error-kind taxonomy's explicit carve-out.
		return nil, errIssues(termserver.IssueTypeInvalid, fmt.Sprintf("no mapping found for %q", sources[0].Code)), nil
	}

	return &TranslateResult{Result: true, Match: matches}, nil, nil
}

// translateSources flattens the three source input shapes into the
// (system, code) pairs to try, in input order: a CodeableConcept
// contributes every coding it carries.
func translateSources(params TranslateParams) []concept.Coding {
	switch {
	case params.SourceCoding != nil:
		return []concept.Coding{*params.SourceCoding}
	case params.SourceCodeableConcept != nil:
		var out []concept.Coding
		for _, c := range params.SourceCodeableConcept.Coding {
			if c.Code != "" {
				out = append(out, c)
			}
		}
		return out
	case params.SourceCode != "":
		return []concept.Coding{{System: params.SourceSystem, Code: params.SourceCode}}
	default:
		return nil
	}
}

// dependenciesSatisfied reports whether a ConceptMap target carries a
// dependsOn entry for every requested dependency. No requested
// dependencies always passes.
func dependenciesSatisfied(want []TranslateDependency, have []concept.ConceptMapDependency) bool {
	for _, w := range want {
		ok := false
		for _, h := range have {
			if h.Property == w.Property && (w.System == "" || h.System == w.System) && h.Value == w.Value {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func errIssues(code termserver.IssueType, diagnostics string) []termserver.Issue {
	return []termserver.Issue{termserver.Error(code).Diagnostics(diagnostics).Build()}
}

func hasError(issues []termserver.Issue) bool {
	for _, i := range issues {
		if i.IsError() {
			return true
		}
	}
	return false
}

func issuesErr(issues []termserver.Issue) error {
	for _, i := range issues {
		if i.IsError() {
			return fmt.Errorf("%s: %s", i.Code, i.Diagnostics)
		}
	}
	return fmt.Errorf("service: operation failed")
}
