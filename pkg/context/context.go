// Package context implements the per-realm execution context: the global
// object, the intrinsic registry, the pending-exception slot, and the
// microtask queue that drives promise reactions and other deferred work.
package context

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// Microtask is a unit of deferred work: promise reactions, queued
// finalization-registry callbacks, and similar jobs.
type Microtask func()

// RejectHook is invoked the first time a rejected promise goes unhandled
// through a full microtask drain. Returning from the hook never clears
// the condition; a later .catch() attached after the hook has fired is
// still honored by the promise machinery itself.
type RejectHook func(reason value.Value)

// defaultAsyncDisposeBudget bounds how many polling iterations
// AsyncDisposableStack.disposeAsync will spend waiting on async disposers
// before giving up. Treated as normative and configurable via
// AsyncDisposeBudget.
const defaultAsyncDisposeBudget = 10000

// Context is one JavaScript realm: globals, intrinsics, the exception
// slot, and the microtask queue.
type Context struct {
	Globals *shape.Object

	intrinsics map[string]value.Value

	pending    value.Value
	hasPending bool

	queue      []Microtask
	draining   bool

	Logger *zap.Logger

	RejectHook RejectHook

	AsyncDisposeBudget int

	realmID uuid.UUID
}

// New creates a context with an empty global object and no intrinsics
// registered; callers populate intrinsics (Object.prototype,
// Function.prototype, Array.prototype, ...) before running any code.
func New(logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		Globals:            shape.NewObject(),
		intrinsics:         make(map[string]value.Value),
		Logger:             logger,
		AsyncDisposeBudget: defaultAsyncDisposeBudget,
		realmID:            uuid.New(),
	}
}

func (c *Context) RealmID() uuid.UUID { return c.realmID }

// DefineIntrinsic registers a well-known realm object (e.g.
// "Object.prototype", "Promise", "Symbol.iterator") under a stable name.
func (c *Context) DefineIntrinsic(name string, v value.Value) {
	c.intrinsics[name] = v
}

// Intrinsic looks up a previously registered realm object.
func (c *Context) Intrinsic(name string) (value.Value, bool) {
	v, ok := c.intrinsics[name]
	return v, ok
}

// Throw installs v as the pending exception, overwriting any previous one
// (ECMAScript abrupt completions do not stack).
func (c *Context) Throw(v value.Value) {
	c.pending = v
	c.hasPending = true
}

// PendingException returns the current pending exception, if any.
func (c *Context) PendingException() (value.Value, bool) {
	return c.pending, c.hasPending
}

// ClearException clears the pending-exception slot, as a catch block does
// on entry.
func (c *Context) ClearException() {
	c.pending = value.Value{}
	c.hasPending = false
}

// EnqueueMicrotask appends a job to the FIFO microtask queue.
func (c *Context) EnqueueMicrotask(job Microtask) {
	c.queue = append(c.queue, job)
}

// DrainMicrotasks runs queued jobs to completion, including jobs newly
// enqueued by jobs that are still running: the drain loop keeps going
// until the queue is empty, and a reentrant call to DrainMicrotasks while
// one is already running is a no-op (the outer call owns draining; this
// mirrors the rule that a promise reaction job must not run reentrantly).
func (c *Context) DrainMicrotasks() {
	if c.draining {
		return
	}
	c.draining = true
	defer func() { c.draining = false }()

	for len(c.queue) > 0 {
		job := c.queue[0]
		c.queue = c.queue[1:]
		job()
	}
}

// HasPendingMicrotasks reports whether any job is still queued (used by
// the embedder's run loop to decide whether to keep draining).
func (c *Context) HasPendingMicrotasks() bool { return len(c.queue) > 0 }
