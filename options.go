package termserver

import (
	"runtime"
	"time"
)

// Option configures server-wide Options.
type Option func(*Options)

// Options holds cross-cutting configuration for the terminology server:
// resourceval strictness, worker/cache sizing, and the expansion limits
// drive the expansion pipeline, ECL evaluator, and caches.
type Options struct {
	// Resource validation flags (pkg/resourceval)
	ValidateInvariants bool
	StrictMode         bool // treat warnings as errors

	// Expansion limits (pkg/expansion, pkg/ecl)
	MaxExpansionSize int
	WildcardCap      int

	// Performance
	MaxErrors        int
	WorkerCount      int
	OperationTimeout time.Duration
	EnablePooling    bool

	// Cache sizes (pkg/rescache, pkg/expcache)
	ResourceCacheSize  int
	ExpansionCacheSize int
	ExpansionCacheTTL  time.Duration

	// Position tracking
	TrackPositions bool
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		ValidateInvariants: true,
		StrictMode:         false,

		MaxExpansionSize: 1000,
		WildcardCap:      1000,

		MaxErrors:        0, // unlimited
		WorkerCount:      runtime.NumCPU(),
		OperationTimeout: 30 * time.Second,
		EnablePooling:    true,

		ResourceCacheSize:  1000,
		ExpansionCacheSize: 500,
		ExpansionCacheTTL:  10 * time.Minute,

		TrackPositions: false,
	}
}

// --- Validation Options ---

// WithInvariants enables resourceval invariant checking.
func WithInvariants(enable bool) Option {
	return func(o *Options) {
		o.ValidateInvariants = enable
	}
}

// WithStrictMode treats warnings as errors.
func WithStrictMode(enable bool) Option {
	return func(o *Options) {
		o.StrictMode = enable
	}
}

// --- Expansion Options ---

// WithMaxExpansionSize caps the number of concepts a single $expand may
// produce before the expansion pipeline enforces its limit.
func WithMaxExpansionSize(max int) Option {
	return func(o *Options) {
		if max > 0 {
			o.MaxExpansionSize = max
		}
	}
}

// WithWildcardCap bounds ECL wildcard/descendant-of-root evaluation.
func WithWildcardCap(cap int) Option {
	return func(o *Options) {
		if cap > 0 {
			o.WildcardCap = cap
		}
	}
}

// --- Performance Options ---

// WithMaxErrors sets the maximum number of issues before resourceval
// stops collecting. Use 0 for unlimited.
func WithMaxErrors(max int) Option {
	return func(o *Options) {
		o.MaxErrors = max
	}
}

// WithWorkerCount sets the number of workers dispatching concurrent
// operations. Defaults to runtime.NumCPU().
func WithWorkerCount(count int) Option {
	return func(o *Options) {
		if count > 0 {
			o.WorkerCount = count
		}
	}
}

// WithOperationTimeout sets the per-operation time budget. Use 0 for no timeout.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.OperationTimeout = timeout
	}
}

// WithPooling enables or disables opctx.Context pooling.
func WithPooling(enable bool) Option {
	return func(o *Options) {
		o.EnablePooling = enable
	}
}

// --- Cache Options ---

// WithCacheSize configures the resource and expansion cache sizes.
func WithCacheSize(resources, expansions int) Option {
	return func(o *Options) {
		if resources > 0 {
			o.ResourceCacheSize = resources
		}
		if expansions > 0 {
			o.ExpansionCacheSize = expansions
		}
	}
}

// WithExpansionCacheTTL sets the expiration window for cached expansions.
func WithExpansionCacheTTL(ttl time.Duration) Option {
	return func(o *Options) {
		if ttl > 0 {
			o.ExpansionCacheTTL = ttl
		}
	}
}

// --- Debug Options ---

// WithPositionTracking enables source position tracking for resourceval
// issues. Adds overhead but provides line/column information.
func WithPositionTracking(enable bool) Option {
	return func(o *Options) {
		o.TrackPositions = enable
	}
}

// --- Presets ---

// FastOptions returns options optimized for throughput: larger caches,
// a higher wildcard cap, relaxed strictness.
func FastOptions() []Option {
	return []Option{
		WithStrictMode(false),
		WithCacheSize(2000, 1000),
		WithWildcardCap(5000),
		WithPooling(true),
	}
}

// StrictOptions returns options for conservative validation: warnings
// become errors and invariants are always checked.
func StrictOptions() []Option {
	return []Option{
		WithInvariants(true),
		WithStrictMode(true),
		WithMaxErrors(0),
	}
}

// DebugOptions returns options useful for debugging: position tracking
// on, pooling off for easier inspection.
func DebugOptions() []Option {
	return []Option{
		WithPositionTracking(true),
		WithPooling(false),
		WithMaxErrors(100),
	}
}
