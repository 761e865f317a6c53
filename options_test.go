package termserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.True(t, o.ValidateInvariants)
	assert.False(t, o.StrictMode)
	assert.Equal(t, 1000, o.MaxExpansionSize)
	assert.Equal(t, 1000, o.WildcardCap)
	assert.Equal(t, 0, o.MaxErrors)
	assert.Equal(t, 30*time.Second, o.OperationTimeout)
	assert.True(t, o.EnablePooling)
}

func applyAll(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func TestWithStrictMode(t *testing.T) {
	o := applyAll(WithStrictMode(true))
	assert.True(t, o.StrictMode)
}

func TestWithMaxExpansionSize(t *testing.T) {
	o := applyAll(WithMaxExpansionSize(50))
	assert.Equal(t, 50, o.MaxExpansionSize)

	o = applyAll(WithMaxExpansionSize(0))
	assert.Equal(t, 1000, o.MaxExpansionSize, "zero value is ignored")
}

func TestWithWildcardCap(t *testing.T) {
	o := applyAll(WithWildcardCap(200))
	assert.Equal(t, 200, o.WildcardCap)
}

func TestWithMaxErrors(t *testing.T) {
	o := applyAll(WithMaxErrors(10))
	assert.Equal(t, 10, o.MaxErrors)
}

func TestWithWorkerCount(t *testing.T) {
	o := applyAll(WithWorkerCount(4))
	assert.Equal(t, 4, o.WorkerCount)

	o = applyAll(WithWorkerCount(-1))
	assert.NotEqual(t, -1, o.WorkerCount, "non-positive count is ignored")
}

func TestWithOperationTimeout(t *testing.T) {
	o := applyAll(WithOperationTimeout(5 * time.Second))
	assert.Equal(t, 5*time.Second, o.OperationTimeout)
}

func TestWithCacheSize(t *testing.T) {
	o := applyAll(WithCacheSize(100, 200))
	assert.Equal(t, 100, o.ResourceCacheSize)
	assert.Equal(t, 200, o.ExpansionCacheSize)
}

func TestWithExpansionCacheTTL(t *testing.T) {
	o := applyAll(WithExpansionCacheTTL(time.Minute))
	assert.Equal(t, time.Minute, o.ExpansionCacheTTL)
}

func TestWithPositionTracking(t *testing.T) {
	o := applyAll(WithPositionTracking(true))
	assert.True(t, o.TrackPositions)
}

func TestFastOptions(t *testing.T) {
	o := applyAll(FastOptions()...)
	assert.False(t, o.StrictMode)
	assert.Equal(t, 5000, o.WildcardCap)
}

func TestStrictOptions(t *testing.T) {
	o := applyAll(StrictOptions()...)
	assert.True(t, o.ValidateInvariants)
	assert.True(t, o.StrictMode)
}

func TestDebugOptions(t *testing.T) {
	o := applyAll(DebugOptions()...)
	assert.True(t, o.TrackPositions)
	assert.False(t, o.EnablePooling)
	assert.Equal(t, 100, o.MaxErrors)
}
