package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	termserver "github.com/gofhir/termserver"
)

// PackageRef references a FHIR package by name and version.
type PackageRef struct {
	Name    string
	Version string
}

// String returns the package reference as "name@version", or just the
// name when the version is empty or latest.
func (p PackageRef) String() string {
	if p.Version == "" || p.Version == VersionLatest {
		return p.Name
	}
	return fmt.Sprintf("%s@%s", p.Name, p.Version)
}

// CorePackages maps FHIR versions to their core package names.
var CorePackages = map[termserver.FHIRVersion]PackageRef{
	termserver.R4:  {Name: "hl7.fhir.r4.core", Version: "4.0.1"},
	termserver.R4B: {Name: "hl7.fhir.r4b.core", Version: "4.3.0"},
	termserver.R5:  {Name: "hl7.fhir.r5.core", Version: "5.0.0"},
}

// TerminologyPackages maps FHIR versions to the THO package carrying
// the bulk of the published CodeSystems/ValueSets the server loads.
var TerminologyPackages = map[termserver.FHIRVersion]PackageRef{
	termserver.R4:  {Name: "hl7.terminology.r4", Version: VersionLatest},
	termserver.R4B: {Name: "hl7.terminology.r4", Version: VersionLatest}, // R4B uses R4 terminology
	termserver.R5:  {Name: "hl7.terminology.r5", Version: VersionLatest},
}

// ExtensionsPackages maps FHIR versions to their extensions package.
var ExtensionsPackages = map[termserver.FHIRVersion]PackageRef{
	termserver.R4:  {Name: "hl7.fhir.uv.extensions.r4", Version: VersionLatest},
	termserver.R4B: {Name: "hl7.fhir.uv.extensions.r4", Version: VersionLatest},
	termserver.R5:  {Name: "hl7.fhir.uv.extensions.r5", Version: VersionLatest},
}

// Resolver determines which packages a FHIR release needs and fetches
// them through a Client, ahead of any serving process.
type Resolver struct {
	client *Client
}

// NewResolver creates a new package resolver.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// ResolveOptions configures package resolution.
type ResolveOptions struct {
	// IncludeTerminology includes the terminology package (THO).
	IncludeTerminology bool

	// IncludeExtensions includes the extensions package.
	IncludeExtensions bool

	// AdditionalPackages are extra packages to include.
	AdditionalPackages []PackageRef
}

// DefaultResolveOptions includes core and terminology: the minimum a
// terminology server wants loaded for the published code systems.
func DefaultResolveOptions() ResolveOptions {
	return ResolveOptions{
		IncludeTerminology: true,
		IncludeExtensions:  false,
	}
}

// ResolvedPackages contains the resolved package paths.
type ResolvedPackages struct {
	Core        string   // Path to core package
	Terminology string   // Path to terminology package (if requested)
	Extensions  string   // Path to extensions package (if requested)
	Additional  []string // Paths to additional packages
	Version     termserver.FHIRVersion
}

// paths lists every resolved package path, core first.
func (r *ResolvedPackages) paths() []string {
	out := make([]string, 0, 3+len(r.Additional))
	if r.Core != "" {
		out = append(out, r.Core)
	}
	if r.Terminology != "" {
		out = append(out, r.Terminology)
	}
	if r.Extensions != "" {
		out = append(out, r.Extensions)
	}
	return append(out, r.Additional...)
}

// Resolve resolves and downloads all required packages for a FHIR
// version. The core package is mandatory; terminology and extensions
// are best-effort, since a server can still answer for its builtin
// provider families without them.
func (r *Resolver) Resolve(ctx context.Context, version termserver.FHIRVersion, opts ResolveOptions) (*ResolvedPackages, error) {
	result := &ResolvedPackages{
		Version: version,
	}

	coreRef, ok := CorePackages[version]
	if !ok {
		return nil, fmt.Errorf("unsupported FHIR version: %s", version)
	}

	corePath, err := r.client.GetPackage(ctx, coreRef.Name, coreRef.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to get core package %s: %w", coreRef, err)
	}
	result.Core = corePath

	if opts.IncludeTerminology {
		if termRef, ok := TerminologyPackages[version]; ok {
			termPath, err := r.client.GetPackage(ctx, termRef.Name, termRef.Version)
			if err != nil {
				fmt.Printf("Warning: failed to get terminology package %s: %v\n", termRef, err)
			} else {
				result.Terminology = termPath
			}
		}
	}

	if opts.IncludeExtensions {
		if extRef, ok := ExtensionsPackages[version]; ok {
			extPath, err := r.client.GetPackage(ctx, extRef.Name, extRef.Version)
			if err != nil {
				fmt.Printf("Warning: failed to get extensions package %s: %v\n", extRef, err)
			} else {
				result.Extensions = extPath
			}
		}
	}

	for _, ref := range opts.AdditionalPackages {
		path, err := r.client.GetPackage(ctx, ref.Name, ref.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to get package %s: %w", ref, err)
		}
		result.Additional = append(result.Additional, path)
	}

	return result, nil
}

// ResolveWithDependencies resolves packages and then walks every
// resolved package's manifest, fetching declared dependencies that
// aren't core/terminology (those are covered by the explicit maps
// above). Dependencies land in Additional; dependencies of
// dependencies are walked too, since newly fetched paths extend the
// list being iterated.
func (r *Resolver) ResolveWithDependencies(ctx context.Context, version termserver.FHIRVersion, opts ResolveOptions) (*ResolvedPackages, error) {
	result, err := r.Resolve(ctx, version, opts)
	if err != nil {
		return nil, err
	}

	queue := result.paths()
	for i := 0; i < len(queue); i++ {
		manifest, err := r.client.ReadManifest(queue[i])
		if err != nil {
			continue // Skip if can't read manifest
		}

		for depName, depVersion := range manifest.Dependencies {
			if isCoreDependency(depName) {
				continue
			}

			depPath, err := r.client.GetPackage(ctx, depName, depVersion)
			if err != nil {
				fmt.Printf("Warning: failed to get dependency %s@%s: %v\n", depName, depVersion, err)
				continue
			}

			if !slices.Contains(queue, depPath) {
				queue = append(queue, depPath)
				result.Additional = append(result.Additional, depPath)
			}
		}
	}

	return result, nil
}

// isCoreDependency checks if a package name is a core FHIR dependency,
// already covered by the explicit Core/Terminology package maps.
func isCoreDependency(name string) bool {
	corePrefixes := []string{
		"hl7.fhir.r4.core",
		"hl7.fhir.r4b.core",
		"hl7.fhir.r5.core",
		"hl7.terminology",
	}
	for _, prefix := range corePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
