package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/function"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

func newConstructTestContext() *context.Context {
	ctx := context.New(nil)
	ctx.DefineIntrinsic("Symbol.iterator", value.SymbolValue(value.NewSymbol("Symbol.iterator")))
	return ctx
}

func newConstructor(ctx *context.Context, kind ElementKind) *TypedArrayConstructor {
	proto := shape.NewObject()
	funcProto := shape.NewObject()
	return NewTypedArrayConstructor(ctx, kind, funcProto, proto)
}

func typedArrayOf(t *testing.T, v value.Value) *TypedArray {
	t.Helper()
	obj, ok := v.AsObject().(*shape.Object)
	require.True(t, ok)
	ta, ok := obj.Slots().Buffer.(*TypedArray)
	require.True(t, ok)
	return ta
}

func elementsOf(t *testing.T, ta *TypedArray) []float64 {
	t.Helper()
	out := make([]float64, ta.Length())
	for i := range out {
		v, err := ta.GetFloat(i)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func TestTypedArrayConstructorRejectsCallWithoutNew(t *testing.T) {
	ctx := newConstructTestContext()
	ctor := newConstructor(ctx, Int32Kind)
	_, err := ctor.Call(value.Undefined, nil)
	assert.Error(t, err)
}

func TestTypedArrayConstructorFromLength(t *testing.T) {
	ctx := newConstructTestContext()
	ctor := newConstructor(ctx, Int32Kind)
	result, err := ctor.Construct([]value.Value{value.Int(3)})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, elementsOf(t, typedArrayOf(t, result)))
}

func TestTypedArrayConstructorFromArrayLike(t *testing.T) {
	ctx := newConstructTestContext()
	ctor := newConstructor(ctx, Int32Kind)
	mask := propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}

	arrayLike := shape.NewObject()
	arrayLike.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(3), true, true, true), mask)
	arrayLike.DefineOwn(propkey.Index(0), propkey.NewData(value.Int(10), true, true, true), mask)
	arrayLike.DefineOwn(propkey.Index(1), propkey.NewData(value.Int(20), true, true, true), mask)
	arrayLike.DefineOwn(propkey.Index(2), propkey.NewData(value.Int(30), true, true, true), mask)

	result, err := ctor.Construct([]value.Value{value.Object(arrayLike)})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, elementsOf(t, typedArrayOf(t, result)))
}

func TestTypedArrayConstructorFromSyncIterable(t *testing.T) {
	ctx := newConstructTestContext()
	ctor := newConstructor(ctx, Int32Kind)
	mask := propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}

	items := []value.Value{value.Int(1), value.Int(2), value.Int(3)}
	idx := 0
	iterObj := shape.NewObject()
	nextFn := function.NewNative("next", 0, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		res := shape.NewObject()
		if idx >= len(items) {
			res.DefineOwn(propkey.String("done"), propkey.NewData(value.Bool(true), true, true, true), mask)
			res.DefineOwn(propkey.String("value"), propkey.NewData(value.Undefined, true, true, true), mask)
			return value.Object(res), nil
		}
		v := items[idx]
		idx++
		res.DefineOwn(propkey.String("done"), propkey.NewData(value.Bool(false), true, true, true), mask)
		res.DefineOwn(propkey.String("value"), propkey.NewData(v, true, true, true), mask)
		return value.Object(res), nil
	})
	iterObj.DefineOwn(propkey.String("next"), propkey.NewData(value.Object(nextFn), true, true, true), mask)

	iterable := shape.NewObject()
	iterFn := function.NewNative("[Symbol.iterator]", 0, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Object(iterObj), nil
	})
	symIterVal, _ := ctx.Intrinsic("Symbol.iterator")
	iterable.DefineOwn(propkey.Symbol(symIterVal.AsSymbol()), propkey.NewData(value.Object(iterFn), true, true, true), mask)

	result, err := ctor.Construct([]value.Value{value.Object(iterable)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, elementsOf(t, typedArrayOf(t, result)))
}

func TestTypedArrayConstructorFromArrayBufferWithOffsetAndLength(t *testing.T) {
	ctx := newConstructTestContext()
	ctor := newConstructor(ctx, Int32Kind)

	ab := NewArrayBuffer(16)
	full, err := NewTypedArray(Int32Kind, ab, 0, 4)
	require.NoError(t, err)
	require.NoError(t, full.SetFloat(0, 1))
	require.NoError(t, full.SetFloat(1, 2))
	require.NoError(t, full.SetFloat(2, 3))
	require.NoError(t, full.SetFloat(3, 4))

	bufObj := shape.NewObject()
	bufObj.Slots().Buffer = ab

	result, err := ctor.Construct([]value.Value{value.Object(bufObj), value.Int(8), value.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, elementsOf(t, typedArrayOf(t, result)))
}

func TestTypedArrayConstructorFromTypedArrayConvertsElements(t *testing.T) {
	ctx := newConstructTestContext()
	srcCtor := newConstructor(ctx, Int32Kind)
	srcVal, err := srcCtor.Construct([]value.Value{value.Int(2)})
	require.NoError(t, err)
	src := typedArrayOf(t, srcVal)
	require.NoError(t, src.SetFloat(0, 7))
	require.NoError(t, src.SetFloat(1, 8))

	dstCtor := newConstructor(ctx, Float64Kind)
	result, err := dstCtor.Construct([]value.Value{srcVal})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, elementsOf(t, typedArrayOf(t, result)))
}

func TestTypedArrayConstructorBigIntRejectsNonBigIntElement(t *testing.T) {
	ctx := newConstructTestContext()
	ctor := newConstructor(ctx, BigInt64Kind)
	_, err := ctor.Construct([]value.Value{value.Object(func() *shape.Object {
		mask := propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}
		arrayLike := shape.NewObject()
		arrayLike.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(1), true, true, true), mask)
		arrayLike.DefineOwn(propkey.Index(0), propkey.NewData(value.Int(1), true, true, true), mask)
		return arrayLike
	}())})
	assert.Error(t, err)
}
