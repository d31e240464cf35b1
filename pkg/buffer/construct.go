package buffer

import (
	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/iter"
	"github.com/kristofer/jsrt/pkg/jserr"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

var fullMask = propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}

// TypedArrayConstructor is the native [[Call]]/[[Construct]] behavior
// behind one typed-array global (Int8Array, Float64Array, ...). One
// instance per ElementKind is installed onto the realm by the embedder.
type TypedArrayConstructor struct {
	*shape.Object
	ctx   *context.Context
	kind  ElementKind
	proto *shape.Object
}

// NewTypedArrayConstructor builds the constructor object for kind, linked
// to funcProto, with its own `prototype` property set to proto — every
// typed array this constructor produces is linked to proto in turn.
func NewTypedArrayConstructor(ctx *context.Context, kind ElementKind, funcProto shape.Interface, proto *shape.Object) *TypedArrayConstructor {
	obj := shape.NewObjectWithProto(funcProto)
	tc := &TypedArrayConstructor{Object: obj, ctx: ctx, kind: kind, proto: proto}
	obj.SetCallable(tc)
	obj.DefineOwn(propkey.String("name"), propkey.NewData(value.String(kind.Name()), false, false, true), fullMask)
	obj.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(3), false, false, true), fullMask)
	obj.DefineOwn(propkey.String("prototype"), propkey.NewData(value.Object(proto), false, false, false), fullMask)
	return tc
}

// Call rejects direct invocation: typed array constructors, like classes,
// may only be invoked via `new`.
func (tc *TypedArrayConstructor) Call(this value.Value, args []value.Value) (value.Value, error) {
	return value.Undefined, jserr.ThrowTypeError(tc.ctx, "constructor %s requires 'new'", tc.kind.Name())
}

// Construct implements the %TypedArray% abstract constructor's argument
// dispatch (ECMA-262 §23.2.5.1): a numeric length, an ArrayBuffer
// (optionally sliced by byteOffset/length), another typed array
// (element-wise converted to this kind), or anything else — drained via
// its sync iterator if it has one, else read as an array-like through
// `length` and numeric indices.
func (tc *TypedArrayConstructor) Construct(args []value.Value) (value.Value, error) {
	ta, err := tc.dispatch(args)
	if err != nil {
		return value.Undefined, err
	}
	inst := shape.NewObjectWithProto(tc.proto)
	inst.Slots().Buffer = ta
	return value.Object(inst), nil
}

func (tc *TypedArrayConstructor) dispatch(args []value.Value) (*TypedArray, error) {
	if len(args) == 0 {
		return NewTypedArrayFromLength(tc.kind, 0), nil
	}
	arg := args[0]
	if !arg.IsObject() {
		n, err := value.ToIndex(arg)
		if err != nil {
			return nil, jserr.ThrowRangeError(tc.ctx, "invalid typed array length")
		}
		return NewTypedArrayFromLength(tc.kind, int(n)), nil
	}

	if obj, ok := arg.AsObject().(*shape.Object); ok {
		switch payload := obj.Slots().Buffer.(type) {
		case *ArrayBuffer:
			return tc.fromArrayBuffer(payload, args[1:])
		case *TypedArray:
			return tc.fromTypedArray(payload), nil
		}
	}

	iface, ok := arg.AsObject().(shape.Interface)
	if !ok {
		return nil, jserr.ThrowTypeError(tc.ctx, "typed array constructor argument is not an object")
	}
	if tc.hasIterator(arg) {
		list, err := iter.IterableToList(tc.ctx, arg)
		if err != nil {
			return nil, err
		}
		return tc.fromValueList(list)
	}
	return tc.fromArrayLike(iface, arg)
}

func (tc *TypedArrayConstructor) fromArrayBuffer(buf *ArrayBuffer, rest []value.Value) (*TypedArray, error) {
	byteOffset := 0
	if len(rest) > 0 && !rest[0].IsUndefined() {
		n, err := value.ToIndex(rest[0])
		if err != nil {
			return nil, jserr.ThrowRangeError(tc.ctx, "invalid byteOffset")
		}
		byteOffset = int(n)
	}
	elemSize := tc.kind.BytesPerElement()
	if byteOffset%elemSize != 0 {
		return nil, jserr.ThrowRangeError(tc.ctx, "start offset must be a multiple of %d", elemSize)
	}
	length := (buf.ByteLength() - byteOffset) / elemSize
	if len(rest) > 1 && !rest[1].IsUndefined() {
		n, err := value.ToIndex(rest[1])
		if err != nil {
			return nil, jserr.ThrowRangeError(tc.ctx, "invalid length")
		}
		length = int(n)
	}
	ta, err := NewTypedArray(tc.kind, buf, byteOffset, length)
	if err != nil {
		return nil, jserr.ThrowRangeError(tc.ctx, "%s", err)
	}
	return ta, nil
}

// fromTypedArray converts src element-by-element into tc.kind into a
// fresh buffer, so this constructor form never aliases the source. A
// BigInt-kind source and a Number-kind target (or the reverse) is not
// rejected: each element is converted through int64, so fractional
// Number values are truncated.
func (tc *TypedArrayConstructor) fromTypedArray(src *TypedArray) *TypedArray {
	out := NewTypedArrayFromLength(tc.kind, src.Length())
	for i := 0; i < src.Length(); i++ {
		switch {
		case tc.kind.IsBigInt() && src.Kind().IsBigInt():
			v, _ := src.GetBigInt64(i)
			_ = out.SetBigInt64(i, v)
		case tc.kind.IsBigInt():
			v, _ := src.GetFloat(i)
			_ = out.SetBigInt64(i, int64(v))
		case src.Kind().IsBigInt():
			v, _ := src.GetBigInt64(i)
			_ = out.SetFloat(i, float64(v))
		default:
			v, _ := src.GetFloat(i)
			_ = out.SetFloat(i, v)
		}
	}
	return out
}

func (tc *TypedArrayConstructor) fromValueList(list []value.Value) (*TypedArray, error) {
	out := NewTypedArrayFromLength(tc.kind, len(list))
	for i, v := range list {
		if err := tc.setElement(out, i, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (tc *TypedArrayConstructor) fromArrayLike(iface shape.Interface, this value.Value) (*TypedArray, error) {
	lengthVal, err := iface.Get(propkey.String("length"), this)
	if err != nil {
		return nil, err
	}
	n, err := value.ToLength(lengthVal)
	if err != nil {
		return nil, jserr.ThrowRangeError(tc.ctx, "invalid array-like length")
	}
	out := NewTypedArrayFromLength(tc.kind, int(n))
	for i := 0; i < int(n); i++ {
		v, err := iface.Get(propkey.Index(uint32(i)), this)
		if err != nil {
			return nil, err
		}
		if err := tc.setElement(out, i, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (tc *TypedArrayConstructor) setElement(ta *TypedArray, i int, v value.Value) error {
	if tc.kind.IsBigInt() {
		n, err := value.ToBigInt64(v)
		if err != nil {
			return jserr.ThrowTypeError(tc.ctx, "cannot convert value to a BigInt64 element")
		}
		return ta.SetBigInt64(i, n)
	}
	numVal, err := value.ToNumber(v)
	if err != nil {
		return jserr.ThrowTypeError(tc.ctx, "cannot convert value to a typed array element")
	}
	return ta.SetFloat(i, numVal.AsNumber())
}

// hasIterator reports whether v has a callable @@iterator method, the
// test %TypedArray%(object) uses to choose between draining an iterable
// and reading an array-like by length/index.
func (tc *TypedArrayConstructor) hasIterator(v value.Value) bool {
	symIterVal, ok := tc.ctx.Intrinsic("Symbol.iterator")
	if !ok || !symIterVal.IsSymbol() {
		return false
	}
	obj, ok := v.AsObject().(shape.Interface)
	if !ok {
		return false
	}
	methodVal, err := obj.Get(propkey.Symbol(symIterVal.AsSymbol()), v)
	if err != nil {
		return false
	}
	_, callable := methodVal.AsObject().(shape.Callable)
	return callable
}
