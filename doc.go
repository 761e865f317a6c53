// Package termserver provides the ambient stack shared across the FHIR
// terminology server: server Options, the OperationOutcome issue
// taxonomy, a Result/Issue container, the Metrics registry, and FHIR
// version configuration. pkg/resourceval, service, and worker all build
// on these types rather than defining their own.
//
// # Architecture
//
//   - pkg/provider: polymorphic code system provider contract
//   - pkg/filter, pkg/ecl, pkg/expansion: ValueSet expansion pipeline
//   - pkg/resourceval: structural validation of inbound resources,
//     producing the Issue values defined here
//   - service: the five terminology operations ($lookup, $validate-code,
//     $expand, $subsumes, $translate)
//   - worker: per-operation goroutine dispatch with a time budget
//   - registry: provider registry and FHIR package loading
//
// # Functional Options
//
//	opts := termserver.DefaultOptions()
//	for _, o := range []termserver.Option{
//	    termserver.WithWorkerCount(runtime.NumCPU()),
//	    termserver.WithOperationTimeout(30 * time.Second),
//	    termserver.WithWildcardCap(1000),
//	} {
//	    o(opts)
//	}
package termserver
