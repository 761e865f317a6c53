package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gofhir/termserver/registry"
)

func TestSplitPackageRef(t *testing.T) {
	name, version := splitPackageRef("hl7.fhir.us.core@6.1.0")
	assert.Equal(t, "hl7.fhir.us.core", name)
	assert.Equal(t, "6.1.0", version)

	name, version = splitPackageRef("hl7.fhir.us.core")
	assert.Equal(t, "hl7.fhir.us.core", name)
	assert.Equal(t, registry.VersionLatest, version)
}
