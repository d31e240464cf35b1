package shape

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/value"
)

// maxPrototypeDepth bounds prototype-chain walks so a cyclic chain (which
// SetPrototype should normally prevent) can never hang a get/set.
const maxPrototypeDepth = 4096

// Callable lets a shape.Object carry a function payload without this
// package depending on pkg/function; pkg/function's BytecodeFunction,
// NativeFunction, BoundFunction, and Class all implement it by embedding
// an *Object and installing themselves into its callable slot.
type Callable interface {
	Call(this value.Value, args []value.Value) (value.Value, error)
}

// Interface is the operation set every object-like value supports:
// ordinary Object and Proxy both implement it.
type Interface interface {
	value.Objecter

	Get(key propkey.Key, receiver value.Value) (value.Value, error)
	Set(key propkey.Key, v value.Value, receiver value.Value) (bool, error)
	Has(key propkey.Key) (bool, error)
	Delete(key propkey.Key) (bool, error)
	OwnPropertyKeys() ([]propkey.Key, error)
	EnumerableKeys() ([]propkey.Key, error)
	GetPrototype() Interface
	SetPrototype(Interface) error
}

var nextObjectID uint64

func allocObjectID() uint64 { return atomic.AddUint64(&nextObjectID, 1) }

// InternalSlots is the optional internal-slot bag an Object may carry:
// primitive-value wrapper, typed-array backing, regexp bytecode,
// weak-target flag, or buffer. Payload types that would otherwise create
// an import cycle (typed arrays, regexp bytecode) are stored as `any` and
// type-asserted by their owning package.
type InternalSlots struct {
	PrimitiveValue *value.Value // Boolean/Number/String/Symbol/BigInt wrappers
	Buffer         any          // *buffer.ArrayBuffer, *buffer.TypedArray, *buffer.DataView
	WeakTarget     bool         // true for WeakRef/WeakMap/WeakSet/FinalizationRegistry-tracked handles
	Extra          any          // catch-all for regexp bytecode and similar opaque payloads
}

// Object is the shape-backed heap object: a shape (a parallel values array
// is unnecessary here because Descriptor already carries Value for data
// properties), a prototype link (shared, never owning), and an optional
// internal-slot bag and callable payload.
type Object struct {
	id    uint64
	shape *Shape
	proto Interface

	extensible bool
	callable   Callable
	slots      InternalSlots
}

// NewObject creates an extensible object with no prototype.
func NewObject() *Object {
	return &Object{id: allocObjectID(), shape: New(), extensible: true}
}

// NewObjectWithProto creates an extensible object with the given prototype.
func NewObjectWithProto(proto Interface) *Object {
	o := NewObject()
	o.proto = proto
	return o
}

func (o *Object) ObjectID() uint64   { return o.id }
func (o *Object) IsCallable() bool   { return o.callable != nil }
func (o *Object) SetCallable(c Callable) { o.callable = c }
func (o *Object) Callable() Callable { return o.callable }

func (o *Object) Slots() *InternalSlots { return &o.slots }

func (o *Object) Extensible() bool     { return o.extensible }
func (o *Object) PreventExtensions()   { o.extensible = false }

// GetOwn returns the object's own descriptor for key without walking the
// prototype chain.
func (o *Object) GetOwn(key propkey.Key) (propkey.Descriptor, bool) {
	return o.shape.Get(key)
}

// DefineOwn installs or merges a property directly on this object (used by
// intrinsic setup code and by the compiler-facing function/class builders;
// it bypasses receiver-based accessor dispatch entirely).
func (o *Object) DefineOwn(key propkey.Key, desc propkey.Descriptor, mask propkey.Mask) bool {
	if _, exists := o.shape.Get(key); !exists && !o.extensible {
		return false
	}
	return o.shape.Define(key, desc, mask)
}

// Get implements [[Get]]: own descriptor, else walk the prototype chain
// (depth-limited to detect cycles), invoking a getter with receiver if
// found, else undefined.
func (o *Object) Get(key propkey.Key, receiver value.Value) (value.Value, error) {
	var cur Interface = o
	for depth := 0; cur != nil; depth++ {
		if depth > maxPrototypeDepth {
			return value.Undefined, errors.New("shape: prototype chain too deep (cycle?)")
		}
		ownObj, ok := cur.(*Object)
		if !ok {
			// A Proxy or other Interface implementor further up the
			// chain: delegate the remainder of the lookup to it.
			return cur.Get(key, receiver)
		}
		if desc, found := ownObj.shape.Get(key); found {
			if desc.IsAccessor {
				return invokeAccessor(desc.Get, receiver)
			}
			return desc.Value, nil
		}
		cur = ownObj.proto
	}
	return value.Undefined, nil
}

// Set implements [[Set]]. It returns (false, nil) for the silent,
// non-strict-mode failure case — callers that need strict-mode TypeError
// semantics check the bool themselves.
func (o *Object) Set(key propkey.Key, v value.Value, receiver value.Value) (bool, error) {
	var cur Interface = o
	for depth := 0; cur != nil; depth++ {
		if depth > maxPrototypeDepth {
			return false, errors.New("shape: prototype chain too deep (cycle?)")
		}
		ownObj, ok := cur.(*Object)
		if !ok {
			return cur.Set(key, v, receiver)
		}
		if desc, found := ownObj.shape.Get(key); found {
			if desc.IsAccessor {
				if desc.Set.IsUndefined() {
					return false, nil
				}
				_, err := invokeAccessor(desc.Set, receiver, v)
				return err == nil, err
			}
			if !desc.Writable {
				return false, nil
			}
			return o.setOwnData(key, v, receiver)
		}
		ownObj2 := ownObj
		cur = ownObj2.proto
	}
	// No ancestor owns the key: create a new writable/enumerable/
	// configurable own data property on the receiver.
	return o.setOwnData(key, v, receiver)
}

func (o *Object) setOwnData(key propkey.Key, v value.Value, receiver value.Value) (bool, error) {
	target, ok := receiver.AsObject().(*Object)
	if !ok {
		target = o
	}
	if existing, found := target.shape.Get(key); found {
		mask := propkey.Mask{Value: true}
		ok := target.shape.Define(key, propkey.Descriptor{Value: v, Writable: existing.Writable, Enumerable: existing.Enumerable, Configurable: existing.Configurable}, mask)
		return ok, nil
	}
	if !target.extensible {
		return false, nil
	}
	ok2 := target.shape.Define(key, propkey.NewData(v, true, true, true), propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
	return ok2, nil
}

func invokeAccessor(fn value.Value, receiver value.Value, args ...value.Value) (value.Value, error) {
	if fn.IsUndefined() {
		return value.Undefined, nil
	}
	if o, ok := fn.AsObject().(*Object); ok && o.callable != nil {
		return o.callable.Call(receiver, args)
	}
	obj, ok := fn.AsObject().(Callable)
	if !ok {
		return value.Undefined, fmt.Errorf("shape: accessor is not callable")
	}
	return obj.Call(receiver, args)
}

// Has implements [[HasProperty]]: own descriptor, else delegate to the
// prototype.
func (o *Object) Has(key propkey.Key) (bool, error) {
	if _, found := o.shape.Get(key); found {
		return true, nil
	}
	if o.proto == nil {
		return false, nil
	}
	return o.proto.Has(key)
}

// Delete implements [[Delete]] (own property only; never touches the
// prototype chain).
func (o *Object) Delete(key propkey.Key) (bool, error) {
	return o.shape.Delete(key), nil
}

// OwnPropertyKeys implements [[OwnPropertyKeys]]: own keys, including
// symbols, insertion order.
func (o *Object) OwnPropertyKeys() ([]propkey.Key, error) {
	return o.shape.OwnPropertyKeys(), nil
}

// EnumerableKeys returns own enumerable string/index keys (used by for-in
// and Object.keys-style consumers; symbols are excluded).
func (o *Object) EnumerableKeys() ([]propkey.Key, error) {
	return o.shape.EnumerableStringKeys(), nil
}

func (o *Object) GetPrototype() Interface { return o.proto }

// SetPrototype implements [[SetPrototypeOf]], refusing to create a cycle
// and signaling a TypeError in that case. The TypeError construction
// itself belongs to pkg/jserr; this returns a plain error the caller
// wraps.
func (o *Object) SetPrototype(proto Interface) error {
	visited := map[value.Objecter]bool{o: true}
	cur := proto
	for cur != nil {
		if visited[cur] {
			return errCyclicPrototype
		}
		visited[cur] = true
		cur = cur.GetPrototype()
	}
	o.proto = proto
	return nil
}

var errCyclicPrototype = errors.New("shape: setPrototype would create a cycle")

// ErrCyclicPrototype lets callers detect the specific failure with
// errors.Is instead of string matching.
func ErrCyclicPrototype() error { return errCyclicPrototype }

// ToPrimitive implements value.Primitiver for plain objects: it returns
// the PrimitiveValue slot when one is set (Boolean/Number/String/Symbol/
// BigInt wrapper objects) and otherwise fails, since a plain object has
// no valueOf/toString of its own.
func (o *Object) ToPrimitive(hint value.ToPrimitiveHint) (value.Value, error) {
	if o.slots.PrimitiveValue != nil {
		return *o.slots.PrimitiveValue, nil
	}
	return value.Undefined, value.ErrBadConversion
}
