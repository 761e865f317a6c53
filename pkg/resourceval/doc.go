// Package resourceval performs structural validation of inbound
// CodeSystem, ValueSet, and ConceptMap resources against the invariants
// they declare, before they are registered with a provider
// or used by an operation.
//
// Each validator is a small function of the form
//
//	func ValidateX(x *concept.X) []termserver.Issue
//
// one per resource family, returning a flat issue list. There is no
// generic StructureDefinition/ElementDefinition walker here: pkg/concept
// already gives every resource family a concrete Go type, so there is
// nothing generic left to walk.
package resourceval
