package registry

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	termserver "github.com/gofhir/termserver"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient()
	assert.Equal(t, []string{DefaultRegistryURL, DefaultMirrorURL}, c.registryURLs)
	assert.True(t, strings.HasSuffix(c.cacheDir, filepath.Join(".termserver", "packages")),
		"cache dir should default under the user's .termserver tree, got %s", c.cacheDir)
}

func TestWithRegistryURL_ReplacesMirrorPair(t *testing.T) {
	c := NewClient(WithRegistryURL("https://registry.example.org"))
	assert.Equal(t, []string{"https://registry.example.org"}, c.registryURLs)
}

func TestPackagePath_SafeName(t *testing.T) {
	c := NewClient(WithCacheDir("/tmp/pkgs"))
	assert.Equal(t, filepath.Join("/tmp/pkgs", "hl7.fhir.r4.core#4.0.1"), c.packagePath("hl7.fhir.r4.core", "4.0.1"))
	assert.Equal(t, filepath.Join("/tmp/pkgs", "scoped-name#1.0"), c.packagePath("scoped/name", "1.0"))
}

func TestPackageDocument_ResolveVersion(t *testing.T) {
	doc := &packageDocument{DistTags: map[string]string{VersionLatest: "2.1.0"}}

	v, err := doc.resolveVersion("pkg", "")
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", v)

	v, err = doc.resolveVersion("pkg", VersionLatest)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", v)

	v, err = doc.resolveVersion("pkg", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v, "a pinned version passes through untouched")

	_, err = (&packageDocument{}).resolveVersion("pkg", VersionLatest)
	require.Error(t, err, "latest without a dist-tag cannot resolve")
}

func TestPackageRef_String(t *testing.T) {
	assert.Equal(t, "hl7.fhir.r4.core@4.0.1", PackageRef{Name: "hl7.fhir.r4.core", Version: "4.0.1"}.String())
	assert.Equal(t, "hl7.terminology.r4", PackageRef{Name: "hl7.terminology.r4", Version: VersionLatest}.String())
	assert.Equal(t, "hl7.terminology.r4", PackageRef{Name: "hl7.terminology.r4"}.String())
}

func TestIsCoreDependency(t *testing.T) {
	assert.True(t, isCoreDependency("hl7.fhir.r4.core"))
	assert.True(t, isCoreDependency("hl7.terminology.r4"))
	assert.False(t, isCoreDependency("hl7.fhir.us.core"))
}

func TestResolvedPackages_Paths(t *testing.T) {
	r := &ResolvedPackages{
		Core:        "/cache/core",
		Terminology: "/cache/tho",
		Additional:  []string{"/cache/ig"},
		Version:     termserver.R4,
	}
	assert.Equal(t, []string{"/cache/core", "/cache/tho", "/cache/ig"}, r.paths())
}
