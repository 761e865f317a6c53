package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/registry"
)

// importCmd downloads FHIR packages into the local package cache so a
// later `termserver serve --package-dir` can load them, grounded on the
// pack's own pre-populate-then-serve split (registry.Client/Resolver were
// built for exactly this: fetching packages.fhir.org content once, ahead
// of any serving process, rather than on every request).
func importCmd() *cobra.Command {
	var (
		registryURL string
		cacheDir    string
		fhirVersion string
		withTerm    bool
		withExt     bool
	)

	cmd := &cobra.Command{
		Use:   "import [package[@version] ...]",
		Short: "Download FHIR packages into the local package cache",
		Long: "Downloads one or more named packages (e.g. hl7.fhir.us.core@6.1.0) from\n" +
			"the FHIR package registry, or, with --fhir-version, resolves and downloads\n" +
			"the core and terminology packages for that release. Extracted packages land\n" +
			"under the cache directory and can be passed to `serve --package-dir`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []registry.ClientOption
			if registryURL != "" {
				opts = append(opts, registry.WithRegistryURL(registryURL))
			}
			if cacheDir != "" {
				opts = append(opts, registry.WithCacheDir(cacheDir))
			}
			client := registry.NewClient(opts...)
			ctx := context.Background()

			var paths []string

			if fhirVersion != "" {
				resolver := registry.NewResolver(client)
				resolved, err := resolver.ResolveWithDependencies(ctx, termserver.FHIRVersion(fhirVersion), registry.ResolveOptions{
					IncludeTerminology: withTerm,
					IncludeExtensions:  withExt,
				})
				if err != nil {
					return fmt.Errorf("resolve %s: %w", fhirVersion, err)
				}
				paths = append(paths, resolved.Core)
				if resolved.Terminology != "" {
					paths = append(paths, resolved.Terminology)
				}
				if resolved.Extensions != "" {
					paths = append(paths, resolved.Extensions)
				}
				paths = append(paths, resolved.Additional...)
			}

			for _, ref := range args {
				name, version := splitPackageRef(ref)
				path, err := client.GetPackage(ctx, name, version)
				if err != nil {
					return fmt.Errorf("get package %s: %w", ref, err)
				}
				paths = append(paths, path)
			}

			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry-url", "", "override the default FHIR package registry URL")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "override the default package cache directory")
	cmd.Flags().StringVar(&fhirVersion, "fhir-version", "", "resolve the core package for this FHIR release (R4, R4B, R5)")
	cmd.Flags().BoolVar(&withTerm, "terminology", true, "include the terminology package when --fhir-version is set")
	cmd.Flags().BoolVar(&withExt, "extensions", false, "include the extensions package when --fhir-version is set")

	return cmd
}

// splitPackageRef splits a "name@version" reference; a bare name resolves
// to the registry's "latest" tag.
func splitPackageRef(ref string) (name, version string) {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '@' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, registry.VersionLatest
}
