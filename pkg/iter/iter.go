// Package iter implements the iteration protocols: GetIterator/next/return
// dispatch for for-of (with close-on-abrupt), and the prototype-chain walk
// for for-in.
package iter

import (
	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/jserr"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// Iterator is a live handle on an iterator object's `next`/`return` pair.
type Iterator struct {
	obj  shape.Interface
	this value.Value
}

// GetIterator implements the GetIterator abstract operation: looks up
// @@iterator on v, calls it, and validates the result is an object.
func GetIterator(ctx *context.Context, v value.Value) (*Iterator, error) {
	obj, ok := asInterface(v)
	if !ok {
		return nil, jserr.ThrowTypeError(ctx, "value is not iterable")
	}
	symIterVal, ok := ctx.Intrinsic("Symbol.iterator")
	if !ok || !symIterVal.IsSymbol() {
		return nil, jserr.ThrowTypeError(ctx, "Symbol.iterator is not registered on this realm")
	}
	key := propkey.Symbol(symIterVal.AsSymbol())
	methodVal, err := obj.Get(key, v)
	if err != nil {
		return nil, err
	}
	methodFn, ok := methodVal.AsObject().(shape.Callable)
	if !ok {
		return nil, jserr.ThrowTypeError(ctx, "value is not iterable")
	}
	iterVal, err := methodFn.Call(v, nil)
	if err != nil {
		return nil, err
	}
	iterObj, ok := asInterface(iterVal)
	if !ok {
		return nil, jserr.ThrowTypeError(ctx, "iterator result is not an object")
	}
	return &Iterator{obj: iterObj, this: iterVal}, nil
}

func asInterface(v value.Value) (shape.Interface, bool) {
	if !v.IsObject() {
		return nil, false
	}
	iface, ok := v.AsObject().(shape.Interface)
	return iface, ok
}

// FromValue rebuilds an *Iterator handle around a value previously
// obtained from GetIterator — used by callers (pkg/vm's GET_ITERATOR/
// ITER_NEXT/ITER_CLOSE opcodes) that can only keep the iterator object
// itself on an operand stack, not the *Iterator wrapper.
func FromValue(v value.Value) (*Iterator, bool) {
	obj, ok := asInterface(v)
	if !ok {
		return nil, false
	}
	return &Iterator{obj: obj, this: v}, true
}

// Value returns the underlying iterator object value.
func (it *Iterator) Value() value.Value { return it.this }

// Next calls the iterator's next() and reports (value, done).
func (it *Iterator) Next(ctx *context.Context) (value.Value, bool, error) {
	nextVal, err := it.obj.Get(propkey.String("next"), it.this)
	if err != nil {
		return value.Undefined, false, err
	}
	nextFn, ok := nextVal.AsObject().(shape.Callable)
	if !ok {
		return value.Undefined, false, jserr.ThrowTypeError(ctx, "iterator has no next method")
	}
	resultVal, err := nextFn.Call(it.this, nil)
	if err != nil {
		return value.Undefined, false, err
	}
	resultObj, ok := asInterface(resultVal)
	if !ok {
		return value.Undefined, false, jserr.ThrowTypeError(ctx, "iterator result is not an object")
	}
	doneVal, err := resultObj.Get(propkey.String("done"), resultVal)
	if err != nil {
		return value.Undefined, false, err
	}
	valueVal, err := resultObj.Get(propkey.String("value"), resultVal)
	if err != nil {
		return value.Undefined, false, err
	}
	return valueVal, value.ToBoolean(doneVal), nil
}

// Close calls the iterator's return() if present, swallowing its own
// failure: a close triggered by an abrupt completion must never replace
// the original error.
func (it *Iterator) Close() {
	retVal, err := it.obj.Get(propkey.String("return"), it.this)
	if err != nil || retVal.IsUndefined() || retVal.IsNull() {
		return
	}
	retFn, ok := retVal.AsObject().(shape.Callable)
	if !ok {
		return
	}
	_, _ = retFn.Call(it.this, nil)
}

// ForOf drives body over iterable, closing the iterator when body
// completes abruptly (a normal run to done does not call return()), and
// always propagating body's error rather than any error from the close
// itself: the exception pending before the close is still pending after
// it.
func ForOf(ctx *context.Context, iterable value.Value, body func(v value.Value) error) error {
	it, err := GetIterator(ctx, iterable)
	if err != nil {
		return err
	}
	for {
		v, done, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if bodyErr := body(v); bodyErr != nil {
			saved, pending := ctx.PendingException()
			it.Close()
			if pending {
				ctx.Throw(saved)
			} else {
				ctx.ClearException()
			}
			return bodyErr
		}
	}
}

// IterableToList drains iterable into a Go slice via ForOf.
func IterableToList(ctx *context.Context, iterable value.Value) ([]value.Value, error) {
	var out []value.Value
	err := ForOf(ctx, iterable, func(v value.Value) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// ForIn walks v's prototype chain, invoking body once per own-or-inherited
// enumerable string key, skipping symbols, and never revisiting a key name
// shadowed earlier in the chain regardless of that earlier occurrence's
// own enumerability. Integer-index keys are emitted as decimal strings.
func ForIn(v value.Value, body func(key string) error) error {
	obj, ok := asInterface(v)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var cur shape.Interface = obj
	for cur != nil {
		ownKeys, err := cur.OwnPropertyKeys()
		if err != nil {
			return err
		}
		enumKeys, err := cur.EnumerableKeys()
		if err != nil {
			return err
		}
		enumSet := make(map[string]bool, len(enumKeys))
		for _, k := range enumKeys {
			enumSet[k.StringValue()] = true
		}
		for _, k := range ownKeys {
			if k.IsSymbol() {
				continue
			}
			s := k.StringValue()
			if seen[s] {
				continue
			}
			seen[s] = true
			if enumSet[s] {
				if err := body(s); err != nil {
					return err
				}
			}
		}
		cur = cur.GetPrototype()
	}
	return nil
}
