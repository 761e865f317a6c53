package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/buger/jsonparser"
	"github.com/gofhir/fhir/r4"

	termserver "github.com/gofhir/termserver"
	"github.com/gofhir/termserver/loader"
	"github.com/gofhir/termserver/pkg/resourceval"
)

// LoadStats contains statistics about package loading.
type LoadStats struct {
	CodeSystems    int64
	ValueSets      int64
	ConceptMaps    int64
	Errors         int64
	PackagesLoaded int
}

// PackageLoader loads FHIR packages' CodeSystem/ValueSet/ConceptMap
// resources into a Providers registry, converting R4 wire resources via
// loader.R4Converter before registration.
type PackageLoader struct {
	registry  *Providers
	converter *loader.R4Converter
	mu        sync.Mutex
}

// NewPackageLoader creates a new package loader targeting registry.
func NewPackageLoader(registry *Providers) *PackageLoader {
	return &PackageLoader{
		registry:  registry,
		converter: loader.NewR4Converter(),
	}
}

// LoadPackage loads a single package from a directory.
// CodeSystems are loaded before ValueSets so fhircs providers exist
// before any $expand pulls filters against them.
func (l *PackageLoader) LoadPackage(packageDir string) (*LoadStats, error) {
	stats := &LoadStats{}

	contentDir := packageDir
	packageSubDir := filepath.Join(packageDir, "package")
	if _, err := os.Stat(packageSubDir); err == nil {
		contentDir = packageSubDir
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var codeSystems, valueSets, conceptMaps, others []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if entry.Name() == "package.json" || entry.Name() == ".index.json" {
			continue
		}

		filePath := filepath.Join(contentDir, entry.Name())
		name := entry.Name()

		switch {
		case strings.HasPrefix(name, "CodeSystem-"):
			codeSystems = append(codeSystems, filePath)
		case strings.HasPrefix(name, "ValueSet-"):
			valueSets = append(valueSets, filePath)
		case strings.HasPrefix(name, "ConceptMap-"):
			conceptMaps = append(conceptMaps, filePath)
		default:
			others = append(others, filePath)
		}
	}

	// Load order: CodeSystems before ValueSets before ConceptMaps, so
	// ValueSet compose filters resolve against an already-registered
	// provider and ConceptMap group source/target systems are available.
	for _, group := range [][]string{codeSystems, valueSets, conceptMaps, others} {
		for _, filePath := range group {
			if err := l.loadFile(filePath, stats); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
		}
	}

	stats.PackagesLoaded = 1
	return stats, nil
}

// LoadPackages loads multiple packages, merging their stats.
func (l *PackageLoader) LoadPackages(resolved *ResolvedPackages) (*LoadStats, error) {
	totalStats := &LoadStats{}

	if resolved.Core != "" {
		stats, err := l.LoadPackage(resolved.Core)
		if err != nil {
			return nil, fmt.Errorf("failed to load core package: %w", err)
		}
		l.mergeStats(totalStats, stats)
	}

	if resolved.Terminology != "" {
		stats, err := l.LoadPackage(resolved.Terminology)
		if err != nil {
			fmt.Printf("Warning: failed to load terminology package: %v\n", err)
		} else {
			l.mergeStats(totalStats, stats)
		}
	}

	for _, pkgPath := range resolved.Additional {
		stats, err := l.LoadPackage(pkgPath)
		if err != nil {
			fmt.Printf("Warning: failed to load package %s: %v\n", pkgPath, err)
			continue
		}
		l.mergeStats(totalStats, stats)
	}

	return totalStats, nil
}

// LoadPackageParallel loads a package using parallel file processing.
// Registration itself is serialized by the loader's own mutex; file I/O,
// JSON decode, conversion and validation run concurrently.
func (l *PackageLoader) LoadPackageParallel(packageDir string, workers int) (*LoadStats, error) {
	stats := &LoadStats{}

	contentDir := packageDir
	packageSubDir := filepath.Join(packageDir, "package")
	if _, err := os.Stat(packageSubDir); err == nil {
		contentDir = packageSubDir
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	var jsonFiles []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if entry.Name() == "package.json" || entry.Name() == ".index.json" {
			continue
		}
		jsonFiles = append(jsonFiles, filepath.Join(contentDir, entry.Name()))
	}

	if workers <= 0 {
		workers = 4
	}

	fileChan := make(chan string, len(jsonFiles))
	for _, f := range jsonFiles {
		fileChan <- f
	}
	close(fileChan)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filePath := range fileChan {
				if err := l.loadFile(filePath, stats); err != nil {
					atomic.AddInt64(&stats.Errors, 1)
				}
			}
		}()
	}

	wg.Wait()
	stats.PackagesLoaded = 1
	return stats, nil
}

// loadFile loads a single JSON file into the registry.
func (l *PackageLoader) loadFile(filePath string, stats *LoadStats) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return l.loadResource(data, stats)
}

func (l *PackageLoader) loadResource(data []byte, stats *LoadStats) error {
	// Peek resourceType without a full unmarshal; package directories
	// carry thousands of files and most are routed by this one field.
	resourceType, err := jsonparser.GetString(data, "resourceType")
	if err != nil {
		return fmt.Errorf("resource has no resourceType: %w", err)
	}

	switch resourceType {
	case "CodeSystem":
		var cs r4.CodeSystem
		if err := json.Unmarshal(data, &cs); err != nil {
			return err
		}
		converted := l.converter.ConvertCodeSystem(&cs)
		if err := firstErrorIssue(resourceval.ValidateCodeSystem(converted)); err != nil {
			return err
		}
		l.mu.Lock()
		err := l.registry.RegisterCodeSystem(converted)
		l.mu.Unlock()
		if err != nil {
			return err
		}
		atomic.AddInt64(&stats.CodeSystems, 1)

	case "ValueSet":
		var vs r4.ValueSet
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		converted := l.converter.ConvertValueSet(&vs)
		if err := firstErrorIssue(resourceval.ValidateValueSet(converted)); err != nil {
			return err
		}
		l.mu.Lock()
		err := l.registry.RegisterValueSet(converted)
		l.mu.Unlock()
		if err != nil {
			return err
		}
		atomic.AddInt64(&stats.ValueSets, 1)

	case "ConceptMap":
		var cm r4.ConceptMap
		if err := json.Unmarshal(data, &cm); err != nil {
			return err
		}
		converted := l.converter.ConvertConceptMap(&cm)
		if err := firstErrorIssue(resourceval.ValidateConceptMap(converted)); err != nil {
			return err
		}
		l.mu.Lock()
		err := l.registry.RegisterConceptMap(converted)
		l.mu.Unlock()
		if err != nil {
			return err
		}
		atomic.AddInt64(&stats.ConceptMaps, 1)

	case "Bundle":
		return l.loadBundle(data, stats)
	}

	return nil
}

// loadBundle loads CodeSystem/ValueSet/ConceptMap resources from a Bundle.
func (l *PackageLoader) loadBundle(data []byte, stats *LoadStats) error {
	var bundle struct {
		ResourceType string `json:"resourceType"`
		Entry        []struct {
			Resource json.RawMessage `json:"resource"`
		} `json:"entry"`
	}

	if err := json.Unmarshal(data, &bundle); err != nil {
		return err
	}

	for _, entry := range bundle.Entry {
		if entry.Resource == nil {
			continue
		}
		if err := l.loadResource(entry.Resource, stats); err != nil {
			atomic.AddInt64(&stats.Errors, 1)
		}
	}

	return nil
}

// mergeStats merges source stats into target.
func (l *PackageLoader) mergeStats(target, source *LoadStats) {
	atomic.AddInt64(&target.CodeSystems, source.CodeSystems)
	atomic.AddInt64(&target.ValueSets, source.ValueSets)
	atomic.AddInt64(&target.ConceptMaps, source.ConceptMaps)
	atomic.AddInt64(&target.Errors, source.Errors)
	target.PackagesLoaded += source.PackagesLoaded
}

// firstErrorIssue reduces a structural validation result to the first
// error-severity issue, or nil when the resource is loadable (warnings
// are tolerated at package load time).
func firstErrorIssue(issues []termserver.Issue) error {
	for _, iss := range issues {
		if iss.IsError() {
			return fmt.Errorf("invalid resource: %s", iss.Diagnostics)
		}
	}
	return nil
}
