// Package opctx implements the per-request OperationContext: a pooled
// struct carrying the request id, language preferences, a time budget
// with deadCheck, circular-ValueSet
// detection, and a zerolog-based elapsed-ms trail. The resource and
// expansion caches live one level up, in
// service.Dispatcher and pkg/expansion.Expander respectively — both are
// long-lived across operations, unlike Context itself, so they are
// passed into the calls that need them rather than pooled with it.
//
// Contexts are sync.Pool-backed (Acquire/Release/Reset) since one is
// created per request and their metadata maps are worth recycling.
package opctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gofhir/termserver/pkg/lang"
)

// TooCostlyError is returned by DeadCheck when the operation's time
// budget has been exceeded.
type TooCostlyError struct {
	Location string
	Elapsed  time.Duration
	Budget   time.Duration
}

func (e *TooCostlyError) Error() string {
	return fmt.Sprintf("too-costly: %s exceeded budget (%s > %s)", e.Location, e.Elapsed, e.Budget)
}

// CircularReferenceError is raised when a ValueSet import graph revisits
// a URL already on the active stack.
type CircularReferenceError struct {
	URL   string
	Stack []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("Circular reference detected: %s (stack: %v)", e.URL, e.Stack)
}

// LogEntry is one elapsed-ms trail record.
type LogEntry struct {
	At      time.Duration
	Message string
}

// Context is the per-operation state shared by every provider call and
// expansion step within a single request. Instances are pooled; callers
// MUST call Release when the operation completes.
type Context struct {
	RequestID string
	Languages lang.Languages

	started  time.Time
	budget   time.Duration
	debugger bool

	vsStack []string

	mu       sync.Mutex
	log      *zerolog.Logger
	trail    []LogEntry
	metadata map[string]any
}

var pool = sync.Pool{
	New: func() any {
		return &Context{
			vsStack:  make([]string, 0, 8),
			trail:    make([]LogEntry, 0, 16),
			metadata: make(map[string]any, 8),
		}
	},
}

// Options configures a freshly acquired Context.
type Options struct {
	Budget    time.Duration
	Debugger  bool
	Languages lang.Languages
	Logger    *zerolog.Logger
}

// Acquire gets a Context from the pool, resets it, and configures it per
// opts. The returned Context's RequestID is freshly generated.
func Acquire(opts Options) *Context {
	c := pool.Get().(*Context)
	c.Reset()
	c.RequestID = uuid.NewString()
	c.started = time.Now()
	c.budget = opts.Budget
	c.debugger = opts.Debugger
	c.Languages = opts.Languages
	c.log = opts.Logger
	return c
}

// Release returns c to the pool. After Release, c must not be used.
func (c *Context) Release() {
	if c == nil {
		return
	}
	if len(c.metadata) <= 64 && cap(c.vsStack) <= 256 {
		pool.Put(c)
	}
}

// Reset clears c for reuse.
func (c *Context) Reset() {
	c.RequestID = ""
	c.Languages = lang.Languages{}
	c.started = time.Time{}
	c.budget = 0
	c.debugger = false
	c.vsStack = c.vsStack[:0]
	c.trail = c.trail[:0]
	c.log = nil
	for k := range c.metadata {
		delete(c.metadata, k)
	}
}

// DeadCheck enforces the time budget at a named suspension point.
// Debugger presence disables the budget check entirely but never disables circular
// reference detection, which is a correctness guard, not a performance
// guard.
func (c *Context) DeadCheck(location string) error {
	if c.debugger || c.budget <= 0 {
		return nil
	}
	elapsed := time.Since(c.started)
	if elapsed > c.budget {
		return &TooCostlyError{Location: location, Elapsed: elapsed, Budget: c.budget}
	}
	return nil
}

// PushValueSet enters a ValueSet url onto the circular-reference stack,
// erroring if it is already present.
func (c *Context) PushValueSet(url string) error {
	for _, u := range c.vsStack {
		if u == url {
			stack := append(append([]string(nil), c.vsStack...), url)
			return &CircularReferenceError{URL: url, Stack: stack}
		}
	}
	c.vsStack = append(c.vsStack, url)
	return nil
}

// PopValueSet removes the most recently pushed ValueSet url. Callers
// must pair every successful PushValueSet with a PopValueSet, typically
// via defer.
func (c *Context) PopValueSet() {
	if len(c.vsStack) > 0 {
		c.vsStack = c.vsStack[:len(c.vsStack)-1]
	}
}

// Stack returns a snapshot of the current ValueSet import stack, most
// recently entered last.
func (c *Context) Stack() []string {
	return append([]string(nil), c.vsStack...)
}

// Log records an elapsed-ms trail entry and, if a zerolog logger is
// configured, emits it immediately with the elapsed duration and request
// id fields.
func (c *Context) Log(message string) {
	elapsed := time.Since(c.started)
	c.mu.Lock()
	c.trail = append(c.trail, LogEntry{At: elapsed, Message: message})
	c.mu.Unlock()
	if c.log != nil {
		c.log.Debug().
			Str("request_id", c.RequestID).
			Dur("elapsed", elapsed).
			Msg(message)
	}
}

// Trail returns a snapshot of the elapsed-ms log trail. A TooCostlyError
// does not carry it.
func (c *Context) Trail() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry(nil), c.trail...)
}

// SetMetadata stores an arbitrary per-operation value (e.g. a resolved
// cache-id), thread-safe for concurrent suspension-point callbacks.
func (c *Context) SetMetadata(key string, value any) {
	c.mu.Lock()
	c.metadata[key] = value
	c.mu.Unlock()
}

// GetMetadata retrieves a previously stored value.
func (c *Context) GetMetadata(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// WithDeadline wraps a standard context.Context with c's remaining
// budget, for provider calls (SQL queries, HGVS HTTP) that accept a
// context.Context cancellation channel directly.
func (c *Context) WithDeadline(parent context.Context) (context.Context, context.CancelFunc) {
	if c.debugger || c.budget <= 0 {
		return context.WithCancel(parent)
	}
	deadline := c.started.Add(c.budget)
	return context.WithDeadline(parent, deadline)
}
