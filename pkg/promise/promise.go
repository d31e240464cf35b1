// Package promise implements the Promise state machine and its microtask
// reaction scheduling: pending/fulfilled/rejected, FIFO reaction queues,
// thenable-chaining resolution, and deferred unhandled-rejection
// notification.
package promise

import (
	"go.uber.org/zap"

	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// State is one of the three promise states. Transitions only ever go
// Pending -> Fulfilled or Pending -> Rejected, and only once.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

type reaction struct {
	onFulfilled func(value.Value)
	onRejected  func(value.Value)
}

// Promise is a shape-backed object implementing the ECMAScript promise
// state machine. It embeds *shape.Object so it is itself an ordinary
// property-bearing engine object, not a distinct value kind.
type Promise struct {
	*shape.Object
	ctx       *context.Context
	state     State
	result    value.Value
	reactions []reaction
	handled   bool
}

// New creates a pending promise.
func New(ctx *context.Context, proto shape.Interface) *Promise {
	return &Promise{Object: shape.NewObjectWithProto(proto), ctx: ctx, state: Pending}
}

func (p *Promise) State() State        { return p.state }
func (p *Promise) Result() value.Value { return p.result }

// AsPromise type-asserts a Value's object payload as a *Promise, used to
// detect thenable-chaining on Resolve.
func AsPromise(v value.Value) (*Promise, bool) {
	if !v.IsObject() {
		return nil, false
	}
	p, ok := v.AsObject().(*Promise)
	return p, ok
}

// Resolve implements the Resolve capability: resolving with another
// promise adopts its eventual state instead of fulfilling with the
// promise object itself (thenable chaining).
func (p *Promise) Resolve(v value.Value) {
	if p.state != Pending {
		return
	}
	if inner, ok := AsPromise(v); ok {
		inner.addReaction(reaction{onFulfilled: p.fulfill, onRejected: p.Reject})
		return
	}
	p.fulfill(v)
}

func (p *Promise) fulfill(v value.Value) {
	if p.state != Pending {
		return
	}
	p.state = Fulfilled
	p.result = v
	p.scheduleReactions()
}

// Reject transitions the promise to Rejected and schedules both its
// reactions and a deferred unhandled-rejection check.
func (p *Promise) Reject(reason value.Value) {
	if p.state != Pending {
		return
	}
	p.state = Rejected
	p.result = reason
	p.scheduleReactions()
	p.scheduleUnhandledCheck()
}

func (p *Promise) addReaction(r reaction) {
	switch p.state {
	case Pending:
		p.reactions = append(p.reactions, r)
	case Fulfilled:
		p.ctx.EnqueueMicrotask(func() { r.onFulfilled(p.result) })
	case Rejected:
		p.handled = true
		p.ctx.EnqueueMicrotask(func() { r.onRejected(p.result) })
	}
}

// scheduleReactions drains the pending reaction list into the microtask
// queue in FIFO order once the promise settles.
func (p *Promise) scheduleReactions() {
	pending := p.reactions
	p.reactions = nil
	settled := p.state
	for _, r := range pending {
		r := r
		if settled == Fulfilled {
			p.ctx.EnqueueMicrotask(func() { r.onFulfilled(p.result) })
		} else {
			p.handled = true
			p.ctx.EnqueueMicrotask(func() { r.onRejected(p.result) })
		}
	}
}

// scheduleUnhandledCheck defers a check to the back of the microtask
// queue: if nothing has called .then()/.catch() on this promise by the
// time the check runs, the rejection is logged and ctx.RejectHook fires.
// Synchronous .then() calls made before the microtask queue drains will
// have already set p.handled.
func (p *Promise) scheduleUnhandledCheck() {
	p.ctx.EnqueueMicrotask(func() {
		if p.handled {
			return
		}
		p.ctx.Logger.Warn("unhandled promise rejection",
			zap.String("reason", describeReason(p.result)))
		if p.ctx.RejectHook != nil {
			p.ctx.RejectHook(p.result)
		}
	})
}

// describeReason renders a rejection reason for the log line without
// invoking any user-defined toString/valueOf: a logging call must never
// itself run JS code or risk a second, re-entrant rejection.
func describeReason(v value.Value) string {
	switch {
	case v.IsString():
		return v.AsString()
	case v.IsNumber(), v.IsBigInt(), v.IsBoolean():
		s, err := value.ToString(v)
		if err != nil {
			return v.TypeOf()
		}
		return s
	case v.IsUndefined(), v.IsNull():
		return v.TypeOf()
	default:
		return "[object]"
	}
}

// Then implements Promise.prototype.then: it always returns a new derived
// promise, wiring each handler to resolve or reject it, and treats a nil
// handler as pass-through (the rejected/fulfilled value flows to the
// derived promise unchanged, matching onFulfilled/onRejected defaulting to
// the identity/thrower functions).
func (p *Promise) Then(onFulfilled, onRejected shape.Callable, derivedProto shape.Interface) *Promise {
	derived := New(p.ctx, derivedProto)
	p.handled = true

	settle := func(handler shape.Callable, v value.Value, onNilReject bool) {
		if handler == nil {
			if onNilReject {
				derived.Reject(v)
			} else {
				derived.fulfill(v)
			}
			return
		}
		result, err := handler.Call(value.Undefined, []value.Value{v})
		if err != nil {
			reason, ok := p.ctx.PendingException()
			if ok {
				p.ctx.ClearException()
			} else {
				reason = value.Undefined
			}
			derived.Reject(reason)
			return
		}
		derived.Resolve(result)
	}

	p.addReaction(reaction{
		onFulfilled: func(v value.Value) { settle(onFulfilled, v, false) },
		onRejected:  func(v value.Value) { settle(onRejected, v, true) },
	})
	return derived
}

// All resolves once every input settles fulfilled, or rejects as soon as
// any one rejects (Promise.all). Results preserve input order.
func All(ctx *context.Context, promises []*Promise, derivedProto shape.Interface) *Promise {
	derived := New(ctx, derivedProto)
	if len(promises) == 0 {
		derived.Resolve(value.Undefined)
		return derived
	}
	results := make([]value.Value, len(promises))
	remaining := len(promises)
	done := false
	for i, p := range promises {
		i := i
		p.addReaction(reaction{
			onFulfilled: func(v value.Value) {
				if done {
					return
				}
				results[i] = v
				remaining--
				if remaining == 0 {
					done = true
					derived.Resolve(packResults(ctx, results))
				}
			},
			onRejected: func(reason value.Value) {
				if done {
					return
				}
				done = true
				derived.Reject(reason)
			},
		})
	}
	return derived
}

// packResults builds a minimal index-keyed, length-bearing object over
// results (caller-side array intrinsics are responsible for giving it a
// real Array.prototype; this package only needs the element shape).
func packResults(ctx *context.Context, results []value.Value) value.Value {
	var proto shape.Interface
	if protoVal, ok := ctx.Intrinsic("Array.prototype"); ok && protoVal.IsObject() {
		proto, _ = protoVal.AsObject().(shape.Interface)
	}
	arr := shape.NewObjectWithProto(proto)
	fullMask := propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}
	for i, v := range results {
		arr.DefineOwn(propkey.Index(uint32(i)), propkey.NewData(v, true, true, true), fullMask)
	}
	arr.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(int64(len(results))), true, false, false), fullMask)
	return value.Object(arr)
}
