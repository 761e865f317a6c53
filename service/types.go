// Package service implements the operation execution layer:
// $lookup, $validate-code, $expand, $subsumes, $translate. The two read
// endpoints are served by cmd/termserver, not here. Each operation is a small, independently testable
// interface with one method and a typed Params/Result pair; Dispatcher
// wires them together behind the worker.Executor interface so worker/
// can dispatch any of the five by OperationKind without a type switch
// at the pool boundary.
package service

import (
	"context"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/expansion"
)

// LookupParams are the normalized $lookup parameters.
type LookupParams struct {
	System          string
	Version         string
	Code            string
	Coding          *concept.Coding
	DisplayLanguage string
	// Properties lists requested property codes; "*" or an empty list
	// requests all, and the pseudo-properties "parent"/"child" are
	// recognized in addition to provider-declared properties.
	// Designations are returned whatever is requested.
	Properties []string
}

// LookupResult is the $lookup response shape: Parameters name/version/
// display plus repeated property and designation entries.
type LookupResult struct {
	Name        string
	Version     string
	Display     string
	Designation []concept.Designation
	Property    []concept.Property
}

// Lookuper implements $lookup.
type Lookuper interface {
	Lookup(ctx context.Context, params LookupParams) (*LookupResult, error)
}

// ValidateCodeParams are the normalized $validate-code parameters.
// Exactly one of Code+System, Coding, or CodeableConcept identifies the
// concept under test; exactly one of ValueSetURL or CodeSystemURL gives
// the context to validate against.
type ValidateCodeParams struct {
	ValueSetURL       string
	ValueSetVersion   string
	CodeSystemURL     string
	CodeSystemVersion string

	System          string
	Code            string
	Coding          *concept.Coding
	CodeableConcept *concept.CodeableConcept
	DisplayLanguage string
}

// ValidateCodeResult is the $validate-code response shape.
type ValidateCodeResult struct {
	Result  bool
	Display string
	Message string
	Code    string
	System  string
}

// Validator implements $validate-code.
type Validator interface {
	ValidateCode(ctx context.Context, params ValidateCodeParams) (*ValidateCodeResult, error)
}

// ExpandParams are the normalized $expand parameters.
type ExpandParams struct {
	ValueSetURL         string
	ValueSetVersion     string
	TextFilter          string
	Count               int
	Offset              int
	DisplayLanguage     string
	ActiveOnly          bool
	IncludeDesignations bool
	ExcludeNested       bool
	// LimitedExpansion, when true, allows an expansion containing an
	// open (non-enumerable) filter to proceed with total absent instead
	// of failing too-costly.
	LimitedExpansion bool
	// Versions carries system-version/check-system-version/
	// force-system-version rules from the wire request.
	Versions []expansion.VersionRule
}

// ExpandedCode is one entry of an $expand response's expansion.contains.
type ExpandedCode struct {
	System       string
	Version      string
	Code         string
	Display      string
	Designations []concept.Designation
	Abstract     bool
	Inactive     bool
}

// ExpandResult is the $expand response shape.
type ExpandResult struct {
	Identifier string
	Total      int // -1 when the expansion is not closed
	Offset     int
	Contains   []ExpandedCode
}

// Expander implements $expand.
type Expander interface {
	Expand(ctx context.Context, params ExpandParams) (*ExpandResult, error)
}

// SubsumesParams are the normalized $subsumes parameters.
type SubsumesParams struct {
	System  string
	Version string
	CodeA   string
	CodeB   string
}

// SubsumesResult is the $subsumes response shape.
type SubsumesResult struct {
	Outcome string // equivalent | subsumes | subsumed-by | not-subsumed
}

// Subsumer implements $subsumes.
type Subsumer interface {
	Subsumes(ctx context.Context, params SubsumesParams) (*SubsumesResult, error)
}

// TranslateParams are the normalized $translate parameters.
type TranslateParams struct {
	ConceptMapURL         string
	ConceptMapVersion     string
	SourceSystem          string
	SourceCode            string
	SourceCoding          *concept.Coding
	SourceCodeableConcept *concept.CodeableConcept
	TargetSystem          string

	// SourceScope/TargetScope narrow an implicit ConceptMap lookup (no
	// ConceptMapURL given) to maps whose overall source/target ValueSet
	// canonical matches.
	SourceScope string
	TargetScope string

	// Dependency holds repeated "dependency" parts:
	// matching targets must carry a dependsOn entry for every one given.
	Dependency []TranslateDependency
}

// TranslateDependency is one $translate "dependency" input part, matched
// against a ConceptMap target's dependsOn conditions.
type TranslateDependency struct {
	Property string
	System   string
	Value    string
}

// TranslateMatch is one $translate response match.
type TranslateMatch struct {
	Relationship concept.ConceptMapEquivalence
	Concept      concept.Coding
	Source       string
}

// TranslateResult is the $translate response shape.
type TranslateResult struct {
	Result  bool
	Message string
	Match   []TranslateMatch
}

// Translator implements $translate.
type Translator interface {
	Translate(ctx context.Context, params TranslateParams) (*TranslateResult, error)
}

// TerminologyService combines all five operations for callers that
// want the whole surface behind one value.
type TerminologyService interface {
	Lookuper
	Validator
	Expander
	Subsumer
	Translator
}
