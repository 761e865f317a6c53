// Package expansion implements the ValueSet expansion pipeline: the
// eight-step algorithm turning a ValueSet.compose into an ordered,
// paginated, designation-annotated code list, with
// recursion into imported ValueSets, cache probing/storing, and
// closure/limit enforcement.
package expansion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/expcache"
	"github.com/gofhir/termserver/pkg/filter"
	"github.com/gofhir/termserver/pkg/opctx"
	"github.com/gofhir/termserver/pkg/provider"
)

// Resolver looks up providers and ValueSets/CodeSystems by canonical
// URL, bridging the expansion pipeline to the registry (component D).
type Resolver interface {
	ProviderFor(system string) (provider.Provider, bool)
	ValueSetByURL(url string) (*concept.ValueSet, bool)
}

// Params are the normalized $expand parameters.
type Params struct {
	TextFilter          string
	Count               int // 0 means unbounded
	Offset              int
	DisplayLang         string
	ActiveOnly          bool
	IncludeDesignations bool
	ExcludeNested       bool
	// LimitedExpansion allows an include/exclude clause whose filter
	// cannot be fully enumerated to proceed with Result.Total left
	// absent (-1), instead of failing too-costly.
	LimitedExpansion bool
	// MaxSize caps the pre-paging concept count; 0 means uncapped.
	// Exceeding it fails too-costly unless LimitedExpansion truncates.
	MaxSize int
	// Versions carries the per-system version rules: override replaces
	// a clause's stated version, check enforces agreement (a mismatch is
	// a conflict error), default fills in only when the clause states
	// none.
	Versions []VersionRule
}

// yieldEvery is the iteration granularity at which long enumeration
// loops re-check the operation's time budget.
const yieldEvery = 256

// Code is one expanded concept, annotated with its designations.
type Code struct {
	System       string
	Version      string
	Code         string
	Display      string
	Designations []concept.Designation
	Abstract     bool
	Inactive     bool
}

// Result is a completed expansion.
type Result struct {
	// Identifier is the content hash of the expansion's inputs
	// and parameters.
	Identifier string
	Codes      []Code
	// Total is the full (unpaged) match count, or -1 when some filter
	// clause could not be closed (enumerated) and LimitedExpansion let
	// the expansion through anyway.
	Total int
}

// FilterNotClosedError is returned by Expand when a compose.include or
// compose.exclude filter clause cannot be enumerated (pkg/filter.Object
// with Closed() false) and the caller did not set LimitedExpansion.
type FilterNotClosedError struct {
	ValueSetURL string
	System      string
}

func (e *FilterNotClosedError) Error() string {
	return fmt.Sprintf("too-costly: filter over %q in %q is not closed; set limitedExpansion to allow an open expansion", e.System, e.ValueSetURL)
}

// TooLargeError is returned when an expansion exceeds Params.MaxSize and
// the caller did not set LimitedExpansion.
type TooLargeError struct {
	ValueSetURL string
	Size        int
	Max         int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("too-costly: expansion of %q has %d concepts, limit is %d; set limitedExpansion for a truncated result", e.ValueSetURL, e.Size, e.Max)
}

// Expander drives the 8-step algorithm over one Resolver.
type Expander struct {
	resolver Resolver
	cache    *expcache.Cache
	metrics  *termserver.Metrics
}

// New creates an Expander.
func New(resolver Resolver, cache *expcache.Cache) *Expander {
	return &Expander{resolver: resolver, cache: cache}
}

// WithMetrics attaches m so cache probes record hit/miss counters.
// Returns e for chaining at construction time.
func (e *Expander) WithMetrics(m *termserver.Metrics) *Expander {
	e.metrics = m
	return e
}

// Expand runs the full pipeline for vs with the given params, in eight
// steps:
//  1. context guard (circular reference / budget)
//  2. parameter normalization
//  3. cache probe
//  4. compose include evaluation (with recursion into imported ValueSets)
//  5. designation collection
//  6. exclude evaluation
//  7. post-processing: dedup, sort, page
//  8. closure/limit enforcement and cache store
func (e *Expander) Expand(ctx context.Context, oc *opctx.Context, vs *concept.ValueSet, params Params) (*Result, error) {
	// Step 1: context guard.
	if err := oc.DeadCheck("expansion.enter " + vs.URL); err != nil {
		return nil, err
	}
	if err := oc.PushValueSet(vs.URL); err != nil {
		return nil, err
	}
	defer oc.PopValueSet()

	// Step 2: parameter normalization.
	params = normalize(params)

	// Step 3: cache probe.
	vsJSON, _ := json.Marshal(vs)
	key := expcache.Key{ValueSetJSON: vsJSON, Params: toCacheParams(params)}
	hash := key.Hash()
	if e.cache != nil {
		if entry, ok := e.cache.Get(hash); ok {
			if e.metrics != nil {
				e.metrics.RecordCacheHit()
			}
			return fromCacheEntry(hash, entry), nil
		}
		if e.metrics != nil {
			e.metrics.RecordCacheMiss()
		}
	}

	started := time.Now()

	// Step 4: compose include evaluation.
	included := make(map[concept.Identity]Code)
	var order []concept.Identity
	declared := make(map[concept.Identity]bool)
	notClosed := false
	for _, inc := range vs.Compose.Include {
		if err := oc.DeadCheck("expansion.include " + inc.System); err != nil {
			return nil, err
		}
		codes, declaredOrder, open, err := e.evaluateInclude(ctx, oc, inc, params)
		if err != nil {
			return nil, err
		}
		if open {
			notClosed = true
			if !params.LimitedExpansion {
				return nil, &FilterNotClosedError{ValueSetURL: vs.URL, System: inc.System}
			}
		}
		for _, c := range codes {
			id := concept.Identity{System: c.System, Version: c.Version, Code: c.Code}
			if _, exists := included[id]; !exists {
				order = append(order, id)
				if declaredOrder {
					declared[id] = true
				}
			}
			included[id] = c
		}
	}

	// Step 6: exclude evaluation.
	for _, exc := range vs.Compose.Exclude {
		if err := oc.DeadCheck("expansion.exclude " + exc.System); err != nil {
			return nil, err
		}
		codes, _, open, err := e.evaluateInclude(ctx, oc, exc, params)
		if err != nil {
			return nil, err
		}
		if open {
			notClosed = true
			if !params.LimitedExpansion {
				return nil, &FilterNotClosedError{ValueSetURL: vs.URL, System: exc.System}
			}
		}
		for _, c := range codes {
			id := concept.Identity{System: c.System, Version: c.Version, Code: c.Code}
			delete(included, id)
		}
	}

	// Step 7: post-processing (dedup is implicit via the map; sort; page).
	// Codes from an explicit concept[] list or a filter clause keep the
	// order they were produced in; everything else sorts by (system, code).
	var ordered, rest []Code
	for _, id := range order {
		c, ok := included[id]
		if !ok {
			continue
		}
		if params.ActiveOnly && c.Inactive {
			continue
		}
		if params.TextFilter != "" && !ApplyTextFilter(c, params.TextFilter) {
			continue
		}
		if !params.IncludeDesignations {
			// Designations were still needed above for the text filter
			// and display selection; they just don't travel on the wire
			// unless asked for.
			c.Designations = nil
		}
		if declared[id] {
			ordered = append(ordered, c)
		} else {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].System != rest[j].System {
			return rest[i].System < rest[j].System
		}
		return rest[i].Code < rest[j].Code
	})
	final := append(ordered, rest...)

	if params.MaxSize > 0 && len(final) > params.MaxSize {
		if !params.LimitedExpansion {
			return nil, &TooLargeError{ValueSetURL: vs.URL, Size: len(final), Max: params.MaxSize}
		}
		final = final[:params.MaxSize]
		notClosed = true
	}

	total := len(final)
	if notClosed {
		// LimitedExpansion let an open filter through; total can't be
		// trusted as the full match count.
		total = -1
	}
	paged := page(final, params.Offset, params.Count)

	result := &Result{Identifier: hash, Codes: paged, Total: total}

	// Step 8: closure/limit enforcement and cache store.
	duration := time.Since(started)
	if e.cache != nil {
		e.cache.StoreIfWorthwhile(hash, toCacheEntry(result), duration)
	}
	if e.metrics != nil {
		e.metrics.RecordPhase("expansion", duration, 0)
	}
	return result, nil
}

// evaluateInclude returns this clause's codes, whether they carry a
// declared order (an explicit concept[] list or a filter clause), and whether any filter it
// applied (directly, or inside an imported ValueSet) could not be
// closed (fully enumerated).
func (e *Expander) evaluateInclude(ctx context.Context, oc *opctx.Context, inc concept.ComposeInclude, params Params) ([]Code, bool, bool, error) {
	// Imported ValueSets recurse through the full pipeline, intersected with this
	// include's own system/filter/concept selection when present.
	if len(inc.ValueSet) > 0 && !params.ExcludeNested {
		var merged []Code
		open := false
		for _, vsURL := range inc.ValueSet {
			imported, ok := e.resolver.ValueSetByURL(vsURL)
			if !ok {
				return nil, false, false, fmt.Errorf("expansion: imported ValueSet %q not found", vsURL)
			}
			if _, err := resolveVersion(params.Versions, ScopeValueSet, vsURL, imported.Version); err != nil {
				return nil, false, false, err
			}
			sub, err := e.Expand(ctx, oc, imported, Params{ActiveOnly: params.ActiveOnly, LimitedExpansion: params.LimitedExpansion, Versions: params.Versions})
			if err != nil {
				return nil, false, false, err
			}
			if sub.Total < 0 {
				open = true
			}
			merged = append(merged, sub.Codes...)
		}
		if inc.System == "" && len(inc.Filter) == 0 && len(inc.Concept) == 0 {
			return merged, false, open, nil
		}
		direct, _, directOpen, err := e.evaluateDirectInclude(ctx, oc, inc, params)
		if err != nil {
			return nil, false, false, err
		}
		return intersectCodes(merged, direct), false, open || directOpen, nil
	}

	return e.evaluateDirectInclude(ctx, oc, inc, params)
}

// evaluateDirectInclude returns inc's own codes, whether they carry a
// declared order, and whether its filter clause (if any) could not be
// closed.
func (e *Expander) evaluateDirectInclude(ctx context.Context, oc *opctx.Context, inc concept.ComposeInclude, params Params) ([]Code, bool, bool, error) {
	if inc.System == "" {
		return nil, false, false, nil
	}
	version, err := resolveVersion(params.Versions, ScopeCodeSystem, inc.System, inc.Version)
	if err != nil {
		return nil, false, false, err
	}
	inc.Version = version
	prov, ok := e.resolver.ProviderFor(inc.System)
	if !ok {
		return nil, false, false, fmt.Errorf("expansion: no provider for system %q", inc.System)
	}

	if len(inc.Concept) > 0 {
		out := make([]Code, 0, len(inc.Concept))
		for _, c := range inc.Concept {
			loc, err := prov.Locate(ctx, c.Code)
			if err != nil {
				return nil, false, false, err
			}
			if !loc.Found() {
				continue
			}
			out = append(out, codeFromProvider(ctx, prov, loc, inc.System, inc.Version, c.Display))
		}
		return out, true, false, nil
	}

	if len(inc.Filter) > 0 {
		fl, ok := provider.AsFilterable(prov)
		if !ok {
			return nil, false, false, fmt.Errorf("%w: provider for %q does not support filters", provider.ErrNotSupported, inc.System)
		}
		// hp is nil when prov doesn't implement hierarchyFilterSource;
		// filter.Compile still succeeds for providers that implement
		// filter.DirectCompiler instead (every SQL-backed family plus
		// CPT), and only errors if neither applies.
		hp, _ := prov.(hierarchyFilterSource)
		group, err := filter.CompileGroup(ctx, fl, hp, inc.Filter)
		if err != nil {
			return nil, false, false, err
		}
		fallback := func(ctx context.Context) ([]string, error) {
			it, ok := provider.AsIteration(prov)
			if !ok {
				return nil, fmt.Errorf("%w: provider cannot enumerate for an open filter", provider.ErrNotSupported)
			}
			cur, err := it.IteratorAll(ctx)
			if err != nil {
				return nil, err
			}
			var codes []string
			for {
				c, more, err := cur.Next(ctx)
				if err != nil {
					return nil, err
				}
				if !more {
					break
				}
				code, err := prov.Code(ctx, c)
				if err != nil {
					return nil, err
				}
				codes = append(codes, code)
			}
			return codes, nil
		}
		codes, err := filter.Execute(ctx, group, fallback)
		if err != nil {
			return nil, false, false, err
		}
		out := make([]Code, 0, len(codes))
		for i, codeStr := range codes {
			if i%yieldEvery == 0 {
				if err := oc.DeadCheck("expansion.filter " + inc.System); err != nil {
					return nil, false, false, err
				}
			}
			loc, err := prov.Locate(ctx, codeStr)
			if err != nil {
				return nil, false, false, err
			}
			if !loc.Found() {
				continue
			}
			out = append(out, codeFromProvider(ctx, prov, loc, inc.System, inc.Version, ""))
		}
		// Filter execution order is deterministic and may carry a
		// declared sequence (e.g. a LOINC answer list); keep it.
		return out, true, group.NotClosed(), nil
	}

	// Bare "system" with no concept/filter: every concept in the system.
	it, ok := provider.AsIteration(prov)
	if !ok {
		return nil, false, false, fmt.Errorf("%w: provider for %q cannot enumerate its full content", provider.ErrNotSupported, inc.System)
	}
	cur, err := it.IteratorAll(ctx)
	if err != nil {
		return nil, false, false, err
	}
	var out []Code
	for {
		if len(out)%yieldEvery == 0 {
			if err := oc.DeadCheck("expansion.enumerate " + inc.System); err != nil {
				return nil, false, false, err
			}
		}
		c, more, err := cur.Next(ctx)
		if err != nil {
			return nil, false, false, err
		}
		if !more {
			break
		}
		loc := provider.LocateResult{Context: c}
		out = append(out, codeFromProvider(ctx, prov, loc, inc.System, inc.Version, ""))
	}
	return out, false, false, nil
}

// hierarchyFilterSource matches pkg/filter's hierarchyProvider
// expectation; each provider family's own filter adapter implements it.
type hierarchyFilterSource interface {
	Descendants(code string) []string
	Ancestors(code string) []string
	MatchProperty(code, prop, value string) bool
	PropertyValues(code, prop string) []string
	AllCodes() []string
}

func codeFromProvider(ctx context.Context, prov provider.Provider, loc provider.LocateResult, system, version, displayOverride string) Code {
	display, _ := prov.Display(ctx, loc.Context)
	if displayOverride != "" {
		display = displayOverride
	}
	codeStr, _ := prov.Code(ctx, loc.Context)
	var designations []concept.Designation
	_ = prov.Designations(ctx, loc.Context, &designations)
	return Code{
		System:       system,
		Version:      version,
		Code:         codeStr,
		Display:      display,
		Designations: designations,
		Abstract:     prov.IsAbstract(loc.Context),
		Inactive:     prov.IsInactive(loc.Context),
	}
}

func intersectCodes(a, b []Code) []Code {
	bSet := make(map[concept.Identity]bool, len(b))
	for _, c := range b {
		bSet[concept.Identity{System: c.System, Version: c.Version, Code: c.Code}] = true
	}
	var out []Code
	for _, c := range a {
		if bSet[concept.Identity{System: c.System, Version: c.Version, Code: c.Code}] {
			out = append(out, c)
		}
	}
	return out
}

// ApplyTextFilter applies the $expand free-text filter against a code's
// display and designations, case-insensitive substring match (a
// post-filter distinct from provider filters).
func ApplyTextFilter(c Code, text string) bool {
	needle := strings.ToLower(text)
	if strings.Contains(strings.ToLower(c.Display), needle) {
		return true
	}
	for _, d := range c.Designations {
		if strings.Contains(strings.ToLower(d.Value), needle) {
			return true
		}
	}
	return false
}

func normalize(p Params) Params {
	if p.Count < 0 {
		p.Count = 0
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func page(codes []Code, offset, count int) []Code {
	if offset >= len(codes) {
		return nil
	}
	end := len(codes)
	if count > 0 && offset+count < end {
		end = offset + count
	}
	return codes[offset:end]
}

func toCacheParams(p Params) expcache.Params {
	out := expcache.Params{
		Filter:        p.TextFilter,
		Count:         p.Count,
		Offset:        p.Offset,
		DisplayLang:   p.DisplayLang,
		IncludeDesign: p.IncludeDesignations,
		ActiveOnly:    p.ActiveOnly,
		ExcludeNested: p.ExcludeNested,
	}
	if p.MaxSize > 0 || len(p.Versions) > 0 {
		out.Extra = make(map[string]string)
	}
	if p.MaxSize > 0 {
		out.Extra["maxSize"] = fmt.Sprint(p.MaxSize)
	}
	for _, r := range p.Versions {
		out.Extra["version:"+string(r.Scope)+":"+r.System] = string(r.Mode) + "|" + r.Version
	}
	return out
}

func toCacheEntry(r *Result) expcache.Entry {
	out := make([]expcache.ExpandedCode, len(r.Codes))
	for i, c := range r.Codes {
		out[i] = expcache.ExpandedCode{System: c.System, Version: c.Version, Code: c.Code, Display: c.Display}
	}
	return expcache.Entry{Codes: out, Total: r.Total}
}

func fromCacheEntry(hash string, e expcache.Entry) *Result {
	out := make([]Code, len(e.Codes))
	for i, c := range e.Codes {
		out[i] = Code{System: c.System, Version: c.Version, Code: c.Code, Display: c.Display}
	}
	return &Result{Identifier: hash, Codes: out, Total: e.Total}
}
