// Package loader converts wire-format R4 CodeSystem/ValueSet/ConceptMap
// resources into the internal pkg/concept domain model consumed by
// registry/providers.go and pkg/resourceval.
//
// Example usage:
//
//	converter := loader.NewR4Converter()
//	cs := converter.ConvertCodeSystem(r4CodeSystem)
//	vs := converter.ConvertValueSet(r4ValueSet)
//	cm := converter.ConvertConceptMap(r4ConceptMap)
package loader
