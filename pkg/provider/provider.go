// Package provider defines the polymorphic capability surface every
// code system backend implements: several small composable interfaces
// rather than one fat one, so a provider family only needs to implement
// the capabilities it actually has (e.g. HGVS never implements
// Hierarchy).
package provider

import (
	"context"
	"errors"

	"github.com/gofhir/termserver/pkg/concept"
	"github.com/gofhir/termserver/pkg/lang"
)

// Context is an opaque, provider-owned handle memoizing lookup state for
// a concept, returned by Locate and consumed by every other accessor.
// Each provider defines its own concrete type and tags it with its own
// system URI; Context.Tag lets callers detect a handle from a foreign
// provider without resorting to structural reflection.
type Context interface {
	// Tag identifies which provider minted this handle (its system URI).
	// Accessors MUST reject a Context whose Tag() does not match their
	// own provider with a type error.
	Tag() string
}

// Diagnostic is a human-readable, non-fatal reason a concept lookup
// failed (e.g. "Empty code", "not found"). Diagnostics are returned, not
// thrown: concept-not-found is an answer, not a failure.
type Diagnostic struct {
	Text string
}

func (d *Diagnostic) Error() string { return d.Text }

// NewDiagnostic builds a Diagnostic with the given message.
func NewDiagnostic(text string) *Diagnostic { return &Diagnostic{Text: text} }

// LocateResult is the return shape of Locate/LocateIsA: either Context is
// set (success) or Message carries the reason (failure), never both.
type LocateResult struct {
	Context Context
	Message string
}

// Found reports whether the locate succeeded.
func (r LocateResult) Found() bool { return r.Context != nil }

// Subsumption enumerates the subsumesTest outcomes.
type Subsumption string

const (
	Equivalent  Subsumption = "equivalent"
	Subsumes    Subsumption = "subsumes"
	SubsumedBy  Subsumption = "subsumed-by"
	NotSubsumed Subsumption = "not-subsumed"
)

// Sentinel errors for the unexpected-failure taxonomy:
// these are raised by accessors other than Locate/LocateIsA on an unknown
// code, by a type mismatch on a foreign Context, or when an operation has
// no meaning for a provider's content mode.
var (
	ErrNotFound     = errors.New("code not found")
	ErrTypeMismatch = errors.New("context belongs to a different provider")
	ErrNotSupported = errors.New("operation not supported")
)

// Metadata is the capability surface every provider must implement.
type Metadata interface {
	System() string
	Version() string
	Description() string
	TotalCount() (int, bool) // ok=false when not enumerable (e.g. OMOP)
	HasParents() bool
	ContentMode() concept.CodeSystemContent
	HasAnyDisplays(langs lang.Languages) bool
	ListSupplements() []string
}

// ConceptAccess is the core lookup/accessor capability.
type ConceptAccess interface {
	Locate(ctx context.Context, code string) (LocateResult, error)
	Code(ctx context.Context, c Context) (string, error)
	Display(ctx context.Context, c Context) (string, error)
	Designations(ctx context.Context, c Context, out *[]concept.Designation) error

	IsAbstract(c Context) bool
	IsInactive(c Context) bool
	IsDeprecated(c Context) bool
	GetStatus(c Context) string
	ItemWeight(c Context) (float64, bool)
	Extensions(c Context) []concept.Property
	Properties(ctx context.Context, c Context) ([]concept.Property, error)
}

// Hierarchy is implemented by providers with a parent/child relation.
// Providers without hierarchy simply don't implement this interface;
// callers type-assert for it instead of handling a null parent.
type Hierarchy interface {
	Parent(ctx context.Context, code string) (string, bool)
	SameConcept(a, b Context) bool
	LocateIsA(ctx context.Context, child, parentCode string, disallowSelf bool) (LocateResult, error)
	SubsumesTest(ctx context.Context, a, b string) (Subsumption, error)
}

// Cursor is a single-pass, stateful iteration handle. It is not
// restartable; Size is absent (ok=false) when the provider cannot
// report a count upfront (e.g. a streaming DB cursor).
type Cursor interface {
	Next(ctx context.Context) (Context, bool, error)
	Size() (int, bool)
}

// Iteration is implemented by providers that can enumerate concepts.
// Iterator(nil) yields root concepts; Iterator(parent) yields its direct
// children. IteratorAll yields every concept. Providers for which
// iteration is too large (e.g. OMOP) simply don't implement this.
type Iteration interface {
	Iterator(ctx context.Context, parent Context) (Cursor, error)
	IteratorAll(ctx context.Context) (Cursor, error)
}

// Filterable is implemented by providers that can build and execute
// provider-native filters; see package filter for the shared
// compilation/execution machinery providers plug into.
type Filterable interface {
	DoesFilter(property string, op concept.FilterOp, value string) bool
}

// Provider composes the capabilities every implementer must have at
// minimum. Optional capabilities (Hierarchy, Iteration, Filterable) are
// detected with a type assertion by callers, not required here.
type Provider interface {
	Metadata
	ConceptAccess
}

// AsHierarchy type-asserts p for the optional Hierarchy capability.
func AsHierarchy(p Provider) (Hierarchy, bool) {
	h, ok := p.(Hierarchy)
	return h, ok
}

// AsIteration type-asserts p for the optional Iteration capability.
func AsIteration(p Provider) (Iteration, bool) {
	it, ok := p.(Iteration)
	return it, ok
}

// AsFilterable type-asserts p for the optional Filterable capability.
func AsFilterable(p Provider) (Filterable, bool) {
	f, ok := p.(Filterable)
	return f, ok
}
