package vm

import (
	"testing"

	"github.com/kristofer/jsrt/pkg/buffer"
	"github.com/kristofer/jsrt/pkg/bytecode"
	"github.com/kristofer/jsrt/pkg/function"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

func runScript(t *testing.T, code *bytecode.Bytecode) (value.Value, *VM) {
	t.Helper()
	ctx := newTestContext()
	v := New(ctx)
	result, err := v.Run(code)
	if err != nil {
		t.Fatalf("unexpected VM error: %v", err)
	}
	return result, v
}

func TestVMIntegerLiteral(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(42)},
	}
	result, _ := runScript(t, code)
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Errorf("expected 42, got %v", result)
	}
}

func TestVMStringLiteral(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{"hello"},
	}
	result, _ := runScript(t, code)
	if !result.IsString() || result.AsString() != "hello" {
		t.Errorf("expected \"hello\", got %v", result)
	}
}

func TestVMArithmetic(t *testing.T) {
	tests := []struct {
		op       bytecode.Opcode
		a, b     int64
		expected float64
	}{
		{bytecode.OpAdd, 3, 4, 7},
		{bytecode.OpSub, 10, 3, 7},
		{bytecode.OpMul, 3, 4, 12},
		{bytecode.OpDiv, 12, 3, 4},
		{bytecode.OpMod, 10, 3, 1},
	}
	for _, tt := range tests {
		code := &bytecode.Bytecode{
			Instructions: []bytecode.Instruction{
				{Op: bytecode.OpPush, Operand: 0},
				{Op: bytecode.OpPush, Operand: 1},
				{Op: tt.op},
				{Op: bytecode.OpReturn},
			},
			Constants: []any{tt.a, tt.b},
		}
		result, _ := runScript(t, code)
		if !result.IsNumber() || result.AsNumber() != tt.expected {
			t.Errorf("%s(%d, %d): expected %v, got %v", tt.op, tt.a, tt.b, tt.expected, result)
		}
	}
}

func TestVMStringConcatenation(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpAdd},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{"foo", "bar"},
	}
	result, _ := runScript(t, code)
	if !result.IsString() || result.AsString() != "foobar" {
		t.Errorf("expected \"foobar\", got %v", result)
	}
}

func TestVMComparison(t *testing.T) {
	tests := []struct {
		op       bytecode.Opcode
		a, b     int64
		expected bool
	}{
		{bytecode.OpLt, 3, 4, true},
		{bytecode.OpLt, 4, 3, false},
		{bytecode.OpGt, 4, 3, true},
		{bytecode.OpLte, 3, 3, true},
		{bytecode.OpGte, 3, 3, true},
		{bytecode.OpStrictEq, 3, 3, true},
		{bytecode.OpStrictNeq, 3, 4, true},
	}
	for _, tt := range tests {
		code := &bytecode.Bytecode{
			Instructions: []bytecode.Instruction{
				{Op: bytecode.OpPush, Operand: 0},
				{Op: bytecode.OpPush, Operand: 1},
				{Op: tt.op},
				{Op: bytecode.OpReturn},
			},
			Constants: []any{tt.a, tt.b},
		}
		result, _ := runScript(t, code)
		if !result.IsBoolean() || result.AsBool() != tt.expected {
			t.Errorf("%s(%d, %d): expected %v, got %v", tt.op, tt.a, tt.b, tt.expected, result)
		}
	}
}

func TestVMLocalVariable(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpStoreLocal, Operand: 0},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpLoadLocal, Operand: 0},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(42)},
		NumLocals: 1,
	}
	result, _ := runScript(t, code)
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Errorf("expected 42, got %v", result)
	}
}

func TestVMGlobalVariable(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpStoreGlobal, Operand: 1},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpLoadGlobal, Operand: 1},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(7), "counter"},
	}
	result, _ := runScript(t, code)
	if !result.IsNumber() || result.AsNumber() != 7 {
		t.Errorf("expected 7, got %v", result)
	}
}

func TestVMIfTrueBranch(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushTrue},
			{Op: bytecode.OpJumpIfFalse, Operand: 4},
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpJump, Operand: 5},
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(1), int64(2)},
	}
	result, _ := runScript(t, code)
	if result.AsNumber() != 1 {
		t.Errorf("expected the true-branch value 1, got %v", result)
	}
}

func TestVMIfFalseBranch(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushFalse},
			{Op: bytecode.OpJumpIfFalse, Operand: 4},
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpJump, Operand: 5},
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(1), int64(2)},
	}
	result, _ := runScript(t, code)
	if result.AsNumber() != 2 {
		t.Errorf("expected the false-branch value 2, got %v", result)
	}
}

func TestVMArrayLiteralAndIndex(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpPush, Operand: 2},
			{Op: bytecode.OpNewArray, Operand: 3},
			{Op: bytecode.OpPush, Operand: 3},
			{Op: bytecode.OpGetIndex},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(10), int64(20), int64(30), int64(1)},
	}
	result, _ := runScript(t, code)
	if !result.IsNumber() || result.AsNumber() != 20 {
		t.Errorf("expected array[1] == 20, got %v", result)
	}
}

func TestVMObjectPropertyAccess(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpNewObject},
			{Op: bytecode.OpDup},
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpSetProp, Operand: 1},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpGetProp, Operand: 1},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(99), "x"},
	}
	result, _ := runScript(t, code)
	if !result.IsNumber() || result.AsNumber() != 99 {
		t.Errorf("expected obj.x == 99, got %v", result)
	}
}

func TestVMCallNativeFunction(t *testing.T) {
	ctx := newTestContext()
	double := function.NewNative("double", 1, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Number(args[0].AsNumber() * 2), nil
	})
	mask := propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}
	ctx.Globals.DefineOwn(propkey.String("double"), propkey.NewData(value.Object(double), true, true, true), mask)

	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpLoadGlobal, Operand: 0},
			{Op: bytecode.OpPushUndefined},
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpCall, Operand: 1},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{"double", int64(21)},
	}

	v := New(ctx)
	result, err := v.Run(code)
	if err != nil {
		t.Fatalf("unexpected VM error: %v", err)
	}
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Errorf("expected double(21) == 42, got %v", result)
	}
}

func TestVMCallMethod(t *testing.T) {
	ctx := newTestContext()
	v := New(ctx)

	obj := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	greet := function.NewNative("greet", 0, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.String("hi"), nil
	})
	mask := propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}
	obj.DefineOwn(propkey.String("greet"), propkey.NewData(value.Object(greet), true, true, true), mask)
	ctx.Globals.DefineOwn(propkey.String("obj"), propkey.NewData(value.Object(obj), true, true, true), mask)

	selector := 1 // constant index of "greet"
	operand := (selector << bytecode.CallMethodSelectorShift) | 0
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpLoadGlobal, Operand: 0},
			{Op: bytecode.OpCallMethod, Operand: operand},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{"obj", "greet"},
	}
	result, err := v.Run(code)
	if err != nil {
		t.Fatalf("unexpected VM error: %v", err)
	}
	if !result.IsString() || result.AsString() != "hi" {
		t.Errorf("expected \"hi\", got %v", result)
	}
}

func TestVMClassConstruct(t *testing.T) {
	ctorCode := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushThis},
			{Op: bytecode.OpLoadLocal, Operand: 0},
			{Op: bytecode.OpSetProp, Operand: 0},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpPushUndefined},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{"x"},
		NumLocals: 1,
	}
	classTmpl := &bytecode.ClassTemplate{
		Name: "Point",
		Methods: []bytecode.MethodTemplate{
			{
				Key:        "constructor",
				Kind:       bytecode.MethodNormal,
				Static:     false,
				Enumerable: false,
				Fn:         &bytecode.FunctionTemplate{Name: "constructor", ParamCount: 1, Code: ctorCode},
			},
		},
	}
	topCode := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushUndefined},
			{Op: bytecode.OpNewClass, Operand: 0},
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpConstruct, Operand: 1},
			{Op: bytecode.OpGetProp, Operand: 2},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{classTmpl, int64(42), "x"},
	}
	result, _ := runScript(t, topCode)
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Errorf("expected constructed instance's x == 42, got %v", result)
	}
}

// TestVMDerivedClassImplicitSuperFieldReachesInstance guards against a
// super(...) construction path that allocates and mutates a second,
// discarded instance instead of the one returned to the caller: Base's
// constructor sets `x`, Derived declares no constructor of its own (so
// Class.Construct takes the implicit-super path), and the final
// Derived instance must still carry `x`.
func TestVMDerivedClassImplicitSuperFieldReachesInstance(t *testing.T) {
	baseCtorCode := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushThis},
			{Op: bytecode.OpLoadLocal, Operand: 0},
			{Op: bytecode.OpSetProp, Operand: 0},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpPushUndefined},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{"x"},
		NumLocals: 1,
	}
	baseTmpl := &bytecode.ClassTemplate{
		Name: "Base",
		Methods: []bytecode.MethodTemplate{
			{
				Key:  "constructor",
				Kind: bytecode.MethodNormal,
				Fn:   &bytecode.FunctionTemplate{Name: "constructor", ParamCount: 1, Code: baseCtorCode},
			},
		},
	}
	derivedTmpl := &bytecode.ClassTemplate{Name: "Derived"}

	topCode := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			// Base = class Base { constructor(x) { this.x = x } }
			{Op: bytecode.OpPushUndefined},
			{Op: bytecode.OpNewClass, Operand: 0},
			{Op: bytecode.OpStoreLocal, Operand: 0},
			{Op: bytecode.OpPop},
			// Derived = class Derived extends Base {}
			{Op: bytecode.OpLoadLocal, Operand: 0},
			{Op: bytecode.OpNewClass, Operand: 1},
			// new Derived(42).x
			{Op: bytecode.OpPush, Operand: 2},
			{Op: bytecode.OpConstruct, Operand: 1},
			{Op: bytecode.OpGetProp, Operand: 3},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{baseTmpl, derivedTmpl, int64(42), "x"},
		NumLocals: 1,
	}
	result, _ := runScript(t, topCode)
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Errorf("expected the Derived instance's x == 42 (set by Base's implicit super constructor), got %v", result)
	}
}

func TestVMTryCatchCatchesThrow(t *testing.T) {
	code := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpEnterTry, Operand: 3},
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpThrow},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{"boom"},
	}
	result, _ := runScript(t, code)
	if !result.IsString() || result.AsString() != "boom" {
		t.Errorf("expected the thrown value \"boom\" at the catch handler, got %v", result)
	}
}

func TestVMGenerator(t *testing.T) {
	genCode := &bytecode.Bytecode{
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operand: 0},
			{Op: bytecode.OpYield},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpPush, Operand: 1},
			{Op: bytecode.OpYield},
			{Op: bytecode.OpPop},
			{Op: bytecode.OpPush, Operand: 2},
			{Op: bytecode.OpReturn},
		},
		Constants: []any{int64(1), int64(2), int64(3)},
	}

	ctx := newTestContext()
	vm := New(ctx)
	genFn := function.NewBytecodeFunction("gen", 0, vm.protoIntrinsic("Function.prototype"), genCode, nil,
		function.FlagGenerator, vm)

	result, err := vm.RunFunction(genFn, value.Undefined, nil)
	if err != nil {
		t.Fatalf("unexpected error calling generator function: %v", err)
	}
	gen, ok := result.AsObject().(*Generator)
	if !ok {
		t.Fatalf("expected calling a generator function to return a *Generator, got %T", result.AsObject())
	}

	readIterResult := func(v value.Value) (value.Value, bool) {
		obj, _ := v.AsObject().(shape.Interface)
		val, _ := obj.Get(propkey.String("value"), v)
		doneVal, _ := obj.Get(propkey.String("done"), v)
		return val, value.ToBoolean(doneVal)
	}

	first, err := gen.resume(resumeKindNext, value.Undefined)
	if err != nil {
		t.Fatalf("first resume: %v", err)
	}
	v, done := readIterResult(first)
	if done || v.AsNumber() != 1 {
		t.Errorf("expected {value: 1, done: false}, got {%v, %v}", v, done)
	}

	second, err := gen.resume(resumeKindNext, value.Undefined)
	if err != nil {
		t.Fatalf("second resume: %v", err)
	}
	v, done = readIterResult(second)
	if done || v.AsNumber() != 2 {
		t.Errorf("expected {value: 2, done: false}, got {%v, %v}", v, done)
	}

	third, err := gen.resume(resumeKindNext, value.Undefined)
	if err != nil {
		t.Fatalf("third resume: %v", err)
	}
	v, done = readIterResult(third)
	if !done || v.AsNumber() != 3 {
		t.Errorf("expected {value: 3, done: true}, got {%v, %v}", v, done)
	}
}

// typedArrayElements drains a *buffer.TypedArray into a float64 slice for
// assertions below.
func typedArrayElements(t *testing.T, v value.Value) []float64 {
	t.Helper()
	obj, ok := v.AsObject().(*shape.Object)
	if !ok {
		t.Fatalf("expected an object, got %v", v)
	}
	ta, ok := obj.Slots().Buffer.(*buffer.TypedArray)
	if !ok {
		t.Fatalf("expected a *buffer.TypedArray payload, got %T", obj.Slots().Buffer)
	}
	out := make([]float64, ta.Length())
	for i := range out {
		f, err := ta.GetFloat(i)
		if err != nil {
			t.Fatalf("GetFloat(%d): %v", i, err)
		}
		out[i] = f
	}
	return out
}

func assertFloats(t *testing.T, got []float64, want ...float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

// TestVMConstructTypedArrayFromLength exercises `new Int32Array(3)` through
// the same vm.construct path OpConstruct uses: buffer.TypedArrayConstructor
// implements the `constructable` interface exactly like *function.Class, so
// no VM-specific typed-array code is needed for this to resolve correctly.
func TestVMConstructTypedArrayFromLength(t *testing.T) {
	ctx := newTestContext()
	v := New(ctx)
	proto := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	ctor := buffer.NewTypedArrayConstructor(ctx, buffer.Int32Kind, v.protoIntrinsic("Function.prototype"), proto)

	result, err := v.construct(value.Object(ctor), []value.Value{value.Int(3)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFloats(t, typedArrayElements(t, result), 0, 0, 0)
}

// TestVMConstructTypedArrayFromArrayLike exercises the array-like
// constructor form: a plain object exposing `length` and numeric indices,
// with no @@iterator, drains through Get(length)/Get(index) rather than
// the iterator protocol.
func TestVMConstructTypedArrayFromArrayLike(t *testing.T) {
	ctx := newTestContext()
	v := New(ctx)
	proto := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	ctor := buffer.NewTypedArrayConstructor(ctx, buffer.Int32Kind, v.protoIntrinsic("Function.prototype"), proto)

	arrayLike := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	arrayLike.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(3), true, true, true), fullMask)
	arrayLike.DefineOwn(propkey.Index(0), propkey.NewData(value.Int(10), true, true, true), fullMask)
	arrayLike.DefineOwn(propkey.Index(1), propkey.NewData(value.Int(20), true, true, true), fullMask)
	arrayLike.DefineOwn(propkey.Index(2), propkey.NewData(value.Int(30), true, true, true), fullMask)

	result, err := v.construct(value.Object(ctor), []value.Value{value.Object(arrayLike)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFloats(t, typedArrayElements(t, result), 10, 20, 30)
}

// TestVMConstructTypedArrayFromTypedArray exercises element-wise
// conversion from another typed array (`new Float64Array(int32arr)`).
func TestVMConstructTypedArrayFromTypedArray(t *testing.T) {
	ctx := newTestContext()
	v := New(ctx)
	srcProto := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	srcCtor := buffer.NewTypedArrayConstructor(ctx, buffer.Int32Kind, v.protoIntrinsic("Function.prototype"), srcProto)
	srcVal, err := v.construct(value.Object(srcCtor), []value.Value{value.Int(2)})
	if err != nil {
		t.Fatalf("unexpected error constructing source: %v", err)
	}
	srcObj := srcVal.AsObject().(*shape.Object)
	srcObj.Slots().Buffer.(*buffer.TypedArray).SetFloat(0, 7)
	srcObj.Slots().Buffer.(*buffer.TypedArray).SetFloat(1, 8)

	dstProto := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	dstCtor := buffer.NewTypedArrayConstructor(ctx, buffer.Float64Kind, v.protoIntrinsic("Function.prototype"), dstProto)
	result, err := v.construct(value.Object(dstCtor), []value.Value{srcVal})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFloats(t, typedArrayElements(t, result), 7, 8)
}

// TestVMConstructTypedArrayFromArrayBuffer exercises the buffer(+offset,
// +length) constructor form (`new Int32Array(buf, 4, 2)`).
func TestVMConstructTypedArrayFromArrayBuffer(t *testing.T) {
	ctx := newTestContext()
	v := New(ctx)
	proto := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	ctor := buffer.NewTypedArrayConstructor(ctx, buffer.Int32Kind, v.protoIntrinsic("Function.prototype"), proto)

	ab := buffer.NewArrayBuffer(16)
	full, err := buffer.NewTypedArray(buffer.Int32Kind, ab, 0, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	full.SetFloat(0, 1)
	full.SetFloat(1, 2)
	full.SetFloat(2, 3)
	full.SetFloat(3, 4)

	bufObj := shape.NewObjectWithProto(v.protoIntrinsic("Object.prototype"))
	bufObj.Slots().Buffer = ab

	result, err := v.construct(value.Object(ctor), []value.Value{value.Object(bufObj), value.Int(8), value.Int(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFloats(t, typedArrayElements(t, result), 3, 4)
}
