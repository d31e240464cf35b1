// Package dispose implements the weak-reference family (WeakRef, WeakMap,
// WeakSet, FinalizationRegistry) and the explicit-resource-management
// stacks (DisposableStack, AsyncDisposableStack), including the
// SuppressedError composition that disposal errors accumulate into.
package dispose

import (
	"runtime"
	"weak"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/jserr"
	"github.com/kristofer/jsrt/pkg/promise"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// WeakRef holds a non-owning reference to a target object, using the
// standard library's weak package (added for exactly this case) rather
// than any GC-side-channel of our own: the runtime already tracks
// liveness correctly, so duplicating that bookkeeping by hand would just
// be a worse version of what weak.Pointer gives for free.
type WeakRef struct {
	*shape.Object
	target weak.Pointer[shape.Object]
}

// NewWeakRef wraps target.
func NewWeakRef(target *shape.Object, proto shape.Interface) *WeakRef {
	return &WeakRef{Object: shape.NewObjectWithProto(proto), target: weak.Make(target)}
}

// Deref returns the referenced object, or Undefined once it has been
// collected.
func (w *WeakRef) Deref() value.Value {
	if o := w.target.Value(); o != nil {
		return value.Object(o)
	}
	return value.Undefined
}

// WeakMap associates values with object keys without keeping those keys
// alive; an entry disappears on its own once the key is collected.
type WeakMap struct {
	*shape.Object
	entries map[weak.Pointer[shape.Object]]value.Value
}

// NewWeakMap creates an empty weak map.
func NewWeakMap(proto shape.Interface) *WeakMap {
	return &WeakMap{Object: shape.NewObjectWithProto(proto), entries: make(map[weak.Pointer[shape.Object]]value.Value)}
}

func (m *WeakMap) Set(key *shape.Object, v value.Value) {
	wp := weak.Make(key)
	if _, exists := m.entries[wp]; !exists {
		runtime.AddCleanup(key, m.cleanup, wp)
	}
	m.entries[wp] = v
}

func (m *WeakMap) cleanup(wp weak.Pointer[shape.Object]) { delete(m.entries, wp) }

func (m *WeakMap) Get(key *shape.Object) (value.Value, bool) {
	v, ok := m.entries[weak.Make(key)]
	return v, ok
}

func (m *WeakMap) Has(key *shape.Object) bool {
	_, ok := m.entries[weak.Make(key)]
	return ok
}

func (m *WeakMap) Delete(key *shape.Object) bool {
	wp := weak.Make(key)
	if _, ok := m.entries[wp]; !ok {
		return false
	}
	delete(m.entries, wp)
	return true
}

// WeakSet is WeakMap restricted to membership only.
type WeakSet struct {
	*shape.Object
	members map[weak.Pointer[shape.Object]]struct{}
}

func NewWeakSet(proto shape.Interface) *WeakSet {
	return &WeakSet{Object: shape.NewObjectWithProto(proto), members: make(map[weak.Pointer[shape.Object]]struct{})}
}

func (s *WeakSet) Add(member *shape.Object) {
	wp := weak.Make(member)
	if _, exists := s.members[wp]; !exists {
		runtime.AddCleanup(member, s.cleanup, wp)
	}
	s.members[wp] = struct{}{}
}

func (s *WeakSet) cleanup(wp weak.Pointer[shape.Object]) { delete(s.members, wp) }

func (s *WeakSet) Has(member *shape.Object) bool {
	_, ok := s.members[weak.Make(member)]
	return ok
}

func (s *WeakSet) Delete(member *shape.Object) bool {
	wp := weak.Make(member)
	if _, ok := s.members[wp]; !ok {
		return false
	}
	delete(s.members, wp)
	return true
}

// FinalizationRegistry schedules a callback onto the microtask queue once
// a registered target becomes unreachable. The id returned by Register
// doubles as its own unregister token; a real embedder-facing API would
// accept a caller-chosen token object instead, but nothing in this engine
// needs that extra indirection yet.
type FinalizationRegistry struct {
	*shape.Object
	ctx      *context.Context
	callback shape.Callable
	live     map[uuid.UUID]runtime.Cleanup
}

func NewFinalizationRegistry(ctx *context.Context, proto shape.Interface, callback shape.Callable) *FinalizationRegistry {
	return &FinalizationRegistry{
		Object:   shape.NewObjectWithProto(proto),
		ctx:      ctx,
		callback: callback,
		live:     make(map[uuid.UUID]runtime.Cleanup),
	}
}

type cleanupArgs struct {
	id        uuid.UUID
	heldValue value.Value
}

// Register arranges for callback(heldValue) to be enqueued as a microtask
// once target is collected, returning the token usable with Unregister.
func (f *FinalizationRegistry) Register(target *shape.Object, heldValue value.Value) uuid.UUID {
	id := uuid.New()
	cl := runtime.AddCleanup(target, f.onCleanup, cleanupArgs{id: id, heldValue: heldValue})
	f.live[id] = cl
	return id
}

func (f *FinalizationRegistry) onCleanup(args cleanupArgs) {
	delete(f.live, args.id)
	f.ctx.EnqueueMicrotask(func() {
		if f.callback != nil {
			_, _ = f.callback.Call(value.Undefined, []value.Value{args.heldValue})
		}
	})
}

// Unregister cancels a pending registration, reporting whether it was
// still pending.
func (f *FinalizationRegistry) Unregister(token uuid.UUID) bool {
	cl, ok := f.live[token]
	if !ok {
		return false
	}
	cl.Stop()
	delete(f.live, token)
	return true
}

// ErrAlreadyDisposed is returned by Use/UseAsync once a stack has been
// disposed; the single-use TypeError the engine surfaces to JS wraps this.
var ErrAlreadyDisposed = errors.New("dispose: stack has already been disposed")

// composeThrown folds a newly thrown value into an accumulating disposal
// result: the first thrown value becomes the result outright; every
// subsequent one wraps the running result as a SuppressedError, so the
// final value nests {error: latest, suppressed: everything before it}.
func composeThrown(ctx *context.Context, result value.Value, hasResult bool, thrown value.Value) (value.Value, bool) {
	if !hasResult {
		return thrown, true
	}
	combined := jserr.NewSuppressed(ctx, thrown, result, "an error was suppressed during disposal")
	return value.Object(combined), true
}

// Disposer is a single registered synchronous cleanup action. It reports
// whether it threw and, if so, the thrown value.
type Disposer func() (thrown value.Value, threw bool)

// DisposableStack is `using` resource management's synchronous stack:
// LIFO disposal, dispose() is idempotent, and any further Use after
// disposal fails.
type DisposableStack struct {
	*shape.Object
	ctx       *context.Context
	disposers []Disposer
	disposed  bool
}

func NewDisposableStack(ctx *context.Context, proto shape.Interface) *DisposableStack {
	return &DisposableStack{Object: shape.NewObjectWithProto(proto), ctx: ctx}
}

func (s *DisposableStack) Disposed() bool { return s.disposed }

func (s *DisposableStack) Use(d Disposer) error {
	if s.disposed {
		return ErrAlreadyDisposed
	}
	s.disposers = append(s.disposers, d)
	return nil
}

// Dispose runs every registered disposer in LIFO order. A second call is a
// silent no-op, matching `DisposableStack.prototype.dispose`.
func (s *DisposableStack) Dispose() (value.Value, bool) {
	if s.disposed {
		return value.Undefined, false
	}
	s.disposed = true
	var result value.Value
	hasResult := false
	for i := len(s.disposers) - 1; i >= 0; i-- {
		if thrown, threw := s.disposers[i](); threw {
			result, hasResult = composeThrown(s.ctx, result, hasResult, thrown)
		}
	}
	s.disposers = nil
	return result, hasResult
}

// Move transfers ownership of all pending disposers to a freshly returned
// stack, leaving the receiver disposed without running anything.
func (s *DisposableStack) Move() *DisposableStack {
	moved := &DisposableStack{Object: shape.NewObjectWithProto(s.GetPrototype()), ctx: s.ctx, disposers: s.disposers}
	s.disposers = nil
	s.disposed = true
	return moved
}

// AsyncDisposer is the async counterpart of Disposer: it returns a promise
// that settles once the cleanup completes (rejecting if it threw).
type AsyncDisposer func() *promise.Promise

// AsyncDisposableStack is `await using`'s stack: disposers run in LIFO
// order, each fully awaited (via a bounded microtask-queue poll) before
// the next starts.
type AsyncDisposableStack struct {
	*shape.Object
	ctx       *context.Context
	disposers []AsyncDisposer
	disposed  bool
}

func NewAsyncDisposableStack(ctx *context.Context, proto shape.Interface) *AsyncDisposableStack {
	return &AsyncDisposableStack{Object: shape.NewObjectWithProto(proto), ctx: ctx}
}

func (s *AsyncDisposableStack) Disposed() bool { return s.disposed }

func (s *AsyncDisposableStack) UseAsync(d AsyncDisposer) error {
	if s.disposed {
		return ErrAlreadyDisposed
	}
	s.disposers = append(s.disposers, d)
	return nil
}

// DisposeAsync runs every registered async disposer in LIFO order,
// awaiting each via a bounded microtask-queue poll (ctx.AsyncDisposeBudget
// iterations) before moving to the next, composing thrown values the same
// way DisposableStack.Dispose does.
func (s *AsyncDisposableStack) DisposeAsync() (value.Value, bool) {
	if s.disposed {
		return value.Undefined, false
	}
	s.disposed = true
	var result value.Value
	hasResult := false
	for i := len(s.disposers) - 1; i >= 0; i-- {
		p := s.disposers[i]()
		if p == nil {
			continue
		}
		s.await(p)
		if p.State() == promise.Rejected {
			result, hasResult = composeThrown(s.ctx, result, hasResult, p.Result())
		}
	}
	s.disposers = nil
	return result, hasResult
}

func (s *AsyncDisposableStack) await(p *promise.Promise) {
	budget := s.ctx.AsyncDisposeBudget
	for i := 0; i < budget && p.State() == promise.Pending; i++ {
		s.ctx.DrainMicrotasks()
	}
}

// Move transfers ownership of all pending disposers to a freshly returned
// stack, leaving the receiver disposed without running anything.
func (s *AsyncDisposableStack) Move() *AsyncDisposableStack {
	moved := &AsyncDisposableStack{Object: shape.NewObjectWithProto(s.GetPrototype()), ctx: s.ctx, disposers: s.disposers}
	s.disposers = nil
	s.disposed = true
	return moved
}
