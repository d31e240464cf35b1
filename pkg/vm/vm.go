// Package vm implements the bytecode virtual machine: the executor that
// drives pkg/bytecode programs over the pkg/value/pkg/shape object model.
//
// The VM is a stack-based interpreter, generalized from the original
// Smalltalk-flavored smog machine into one that speaks ECMAScript's
// abstract operations. Every frame keeps its own operand stack, locals,
// and closure array as plain Go slices rather than recursing through the
// host call stack, so a generator or async function can suspend mid-body
// (OpYield/OpAwait) and resume later from exactly where it left off: the
// frame IS the resumable state, there is no hidden goroutine underneath
// it.
//
// Exception unwind works the way bytecode.go documents it: OpThrow (or
// any failure that leaves a pending exception on the context) walks the
// current frame's operand stack from the top looking for a catch marker
// pushed by OpEnterTry, rather than using Go's own panic/recover. A Go
// error with no pending exception behind it is not caught and escapes
// the frame.
package vm

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/kristofer/jsrt/pkg/bytecode"
	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/function"
	"github.com/kristofer/jsrt/pkg/iter"
	"github.com/kristofer/jsrt/pkg/jserr"
	"github.com/kristofer/jsrt/pkg/promise"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// maxCallDepth bounds how many nested calls opCall/opConstruct/
// opCallMethod will perform before treating the program as having
// overflowed the stack, the way ECMAScript engines signal a RangeError
// rather than letting the host stack blow up.
const maxCallDepth = 2048

var fullMask = propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}

// frame is one function activation: its own operand stack, local slots,
// captured closure slots, and `this` binding, plus the instruction
// pointer into code.Instructions. Suspending a generator or async
// function is just returning this struct to the caller instead of
// discarding it.
type frame struct {
	code    *bytecode.Bytecode
	ip      int
	stack   []value.Value
	locals  []value.Value
	closure []value.Value
	this    value.Value
	name    string
}

func newFrame(code *bytecode.Bytecode, closure []value.Value, this value.Value, args []value.Value, name string) *frame {
	locals := make([]value.Value, code.NumLocals)
	for i := 0; i < len(args) && i < len(locals); i++ {
		locals[i] = args[i]
	}
	return &frame{code: code, locals: locals, closure: closure, this: this, name: name}
}

func (fr *frame) push(v value.Value) { fr.stack = append(fr.stack, v) }

func (fr *frame) pop() (value.Value, error) {
	if len(fr.stack) == 0 {
		return value.Undefined, errors.New("vm: operand stack underflow")
	}
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v, nil
}

func (fr *frame) top() value.Value { return fr.stack[len(fr.stack)-1] }

// outcome distinguishes why run() returned control to its caller.
type outcome int

const (
	outcomeReturn outcome = iota
	outcomeYield
	outcomeAwait
)

// VM executes compiled bytecode against a single realm Context. It
// implements function.Executor, so every BytecodeFunction built by
// opNewFunction/opNewClass calls back into this VM on invocation.
type VM struct {
	ctx       *context.Context
	callDepth int
	callStack []*frame
	debugger  *Debugger
}

// New creates a VM bound to ctx. A single VM can run any number of
// top-level scripts and functions sharing that realm.
func New(ctx *context.Context) *VM {
	return &VM{ctx: ctx}
}

// Context returns the realm this VM executes against.
func (vm *VM) Context() *context.Context { return vm.ctx }

// SetDebugger attaches a breakpoint/step facility; nil disables it.
func (vm *VM) SetDebugger(d *Debugger) { vm.debugger = d }

// StackTrace renders the active call stack, innermost frame first, for
// diagnostic output.
func (vm *VM) StackTrace() []string {
	trace := make([]string, 0, len(vm.callStack))
	for i := len(vm.callStack) - 1; i >= 0; i-- {
		fr := vm.callStack[i]
		trace = append(trace, fmt.Sprintf("  at %s (ip=%d)", fr.name, fr.ip))
	}
	return trace
}

// Run executes a top-level script to completion and drains the
// microtask queue afterward, matching the embedder's run-to-idle loop.
func (vm *VM) Run(code *bytecode.Bytecode) (value.Value, error) {
	fr := newFrame(code, nil, value.Undefined, nil, "<script>")
	v, oc, err := vm.run(fr)
	if err != nil {
		return value.Undefined, err
	}
	if oc != outcomeReturn {
		return value.Undefined, errors.New("vm: top-level script suspended unexpectedly")
	}
	vm.ctx.DrainMicrotasks()
	return v, nil
}

// RunFunction implements function.Executor: it is invoked every time a
// BytecodeFunction built by this VM is called.
func (vm *VM) RunFunction(fn *function.BytecodeFunction, this value.Value, args []value.Value) (value.Value, error) {
	code, ok := fn.Code.(*bytecode.Bytecode)
	if !ok {
		return value.Undefined, fmt.Errorf("vm: function code is not *bytecode.Bytecode")
	}
	if fn.Flags.IsGenerator() {
		return vm.newGenerator(fn, code, this, args)
	}
	fr := newFrame(code, fn.Closure, this, args, readFnName(fn))
	if fn.Flags.IsAsync() {
		return vm.runAsync(fr)
	}
	v, oc, err := vm.run(fr)
	if err != nil {
		return value.Undefined, err
	}
	if oc != outcomeReturn {
		return value.Undefined, errors.New("vm: a non-generator, non-async function suspended at yield/await")
	}
	return v, nil
}

func readFnName(fn *function.BytecodeFunction) string {
	if d, ok := fn.GetOwn(propkey.String("name")); ok && d.Value.IsString() {
		return d.Value.AsString()
	}
	return "<anonymous>"
}

// run drives fr's interpreter loop until it returns, yields, awaits, or
// fails with an error that no enclosing try/catch in fr catches.
func (vm *VM) run(fr *frame) (value.Value, outcome, error) {
	vm.callStack = append(vm.callStack, fr)
	defer func() { vm.callStack = vm.callStack[:len(vm.callStack)-1] }()

	code := fr.code
	for {
		if fr.ip < 0 || fr.ip >= len(code.Instructions) {
			return value.Undefined, outcomeReturn, nil
		}
		if vm.debugger != nil && vm.debugger.ShouldPause(fr.ip) {
			vm.debugger.Pause(fr, code)
		}

		instr := code.Instructions[fr.ip]
		switch instr.Op {
		case bytecode.OpJump:
			fr.ip = instr.Operand
			continue
		case bytecode.OpJumpIfFalse:
			v, err := fr.pop()
			if err != nil {
				return value.Undefined, outcomeReturn, err
			}
			if !value.ToBoolean(v) {
				fr.ip = instr.Operand
				continue
			}
		case bytecode.OpJumpIfTrue:
			v, err := fr.pop()
			if err != nil {
				return value.Undefined, outcomeReturn, err
			}
			if value.ToBoolean(v) {
				fr.ip = instr.Operand
				continue
			}
		case bytecode.OpReturn:
			v, err := fr.pop()
			if err != nil {
				v = value.Undefined
			}
			return v, outcomeReturn, nil
		case bytecode.OpYield:
			v, err := fr.pop()
			if err != nil {
				return value.Undefined, outcomeReturn, err
			}
			fr.ip++
			return v, outcomeYield, nil
		case bytecode.OpAwait:
			v, err := fr.pop()
			if err != nil {
				return value.Undefined, outcomeReturn, err
			}
			fr.ip++
			return v, outcomeAwait, nil
		case bytecode.OpEnterTry:
			fr.push(value.CatchMarker(int32(instr.Operand)))
		case bytecode.OpLeaveTry:
			if _, err := fr.pop(); err != nil {
				return value.Undefined, outcomeReturn, err
			}
		default:
			if err := vm.step(fr, instr); err != nil {
				if vm.unwind(fr) {
					continue
				}
				return value.Undefined, outcomeReturn, vm.wrapEscaping(err)
			}
		}
		fr.ip++
	}
}

// wrapEscaping attaches the call-stack snapshot to an error the first
// time it escapes an uncaught frame, rather than re-wrapping at every
// level the error propagates through.
func (vm *VM) wrapEscaping(err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	return newRuntimeError(err, vm.StackTrace())
}

// unwind searches fr's operand stack, top down, for a catch marker; if
// found, it clears the pending exception, pushes the thrown value where
// the marker was, and jumps to the marker's bytecode offset. Returns
// false if there is no marker (the exception escapes this frame).
func (vm *VM) unwind(fr *frame) bool {
	thrown, ok := vm.ctx.PendingException()
	if !ok {
		return false
	}
	for i := len(fr.stack) - 1; i >= 0; i-- {
		if fr.stack[i].IsCatchMarker() {
			offset := fr.stack[i].CatchOffset()
			fr.stack = fr.stack[:i]
			vm.ctx.ClearException()
			fr.push(thrown)
			fr.ip = int(offset)
			return true
		}
	}
	return false
}

// step executes one non-control-flow instruction, returning an error for
// any abrupt completion (including the uncaught-throw path, via
// OpThrow). run's default case is the only caller, and it owns deciding
// whether the error unwinds to a catch marker or escapes the frame.
func (vm *VM) step(fr *frame, instr bytecode.Instruction) error {
	ctx := vm.ctx
	switch instr.Op {
	case bytecode.OpPush:
		if instr.Operand < 0 || instr.Operand >= len(fr.code.Constants) {
			return fmt.Errorf("vm: constant index %d out of bounds", instr.Operand)
		}
		fr.push(constantToValue(fr.code.Constants[instr.Operand]))
	case bytecode.OpPop:
		_, err := fr.pop()
		return err
	case bytecode.OpDup:
		v, err := fr.pop()
		if err != nil {
			return err
		}
		fr.push(v)
		fr.push(v)
	case bytecode.OpSwap:
		b, err := fr.pop()
		if err != nil {
			return err
		}
		a, err := fr.pop()
		if err != nil {
			return err
		}
		fr.push(b)
		fr.push(a)
	case bytecode.OpPushUndefined:
		fr.push(value.Undefined)
	case bytecode.OpPushNull:
		fr.push(value.Null)
	case bytecode.OpPushTrue:
		fr.push(value.True)
	case bytecode.OpPushFalse:
		fr.push(value.False)
	case bytecode.OpPushThis:
		fr.push(fr.this)

	case bytecode.OpAdd:
		return vm.opAdd(fr)
	case bytecode.OpSub:
		return vm.arithBinary(fr, arithOp{
			number: func(a, b float64) float64 { return a - b },
			bigInt: func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Sub(a, b), nil },
		})
	case bytecode.OpMul:
		return vm.arithBinary(fr, arithOp{
			number: func(a, b float64) float64 { return a * b },
			bigInt: func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Mul(a, b), nil },
		})
	case bytecode.OpDiv:
		return vm.arithBinary(fr, arithOp{
			number: func(a, b float64) float64 { return a / b },
			bigInt: func(a, b *big.Int) (*big.Int, error) {
				if b.Sign() == 0 {
					return nil, errDivideByZero
				}
				return new(big.Int).Quo(a, b), nil
			},
		})
	case bytecode.OpMod:
		return vm.arithBinary(fr, arithOp{
			number: math.Mod,
			bigInt: func(a, b *big.Int) (*big.Int, error) {
				if b.Sign() == 0 {
					return nil, errDivideByZero
				}
				return new(big.Int).Rem(a, b), nil
			},
		})
	case bytecode.OpExp:
		return vm.arithBinary(fr, arithOp{
			number: math.Pow,
			bigInt: func(a, b *big.Int) (*big.Int, error) {
				if b.Sign() < 0 {
					return nil, errNegativeExponent
				}
				return new(big.Int).Exp(a, b, nil), nil
			},
		})
	case bytecode.OpNeg:
		v, err := fr.pop()
		if err != nil {
			return err
		}
		if v.IsBigInt() {
			fr.push(value.BigInt(new(big.Int).Neg(v.AsBigInt())))
			return nil
		}
		n, err := value.ToNumber(v)
		if err != nil {
			return vm.typeErr(err)
		}
		fr.push(value.Number(-n.AsNumber()))
	case bytecode.OpBitAnd:
		return vm.int32Binary(fr, func(a, b int32) int32 { return a & b })
	case bytecode.OpBitOr:
		return vm.int32Binary(fr, func(a, b int32) int32 { return a | b })
	case bytecode.OpBitXor:
		return vm.int32Binary(fr, func(a, b int32) int32 { return a ^ b })
	case bytecode.OpBitNot:
		v, err := fr.pop()
		if err != nil {
			return err
		}
		n, err := toInt32(v)
		if err != nil {
			return vm.typeErr(err)
		}
		fr.push(value.Int(int64(^n)))
	case bytecode.OpShl:
		return vm.shiftBinary(fr, func(a int32, b uint32) int32 { return a << (b & 31) })
	case bytecode.OpShr:
		return vm.shiftBinary(fr, func(a int32, b uint32) int32 { return a >> (b & 31) })
	case bytecode.OpUShr:
		return vm.ushrBinary(fr)
	case bytecode.OpNot:
		v, err := fr.pop()
		if err != nil {
			return err
		}
		fr.push(value.Bool(!value.ToBoolean(v)))
	case bytecode.OpTypeof:
		v, err := fr.pop()
		if err != nil {
			return err
		}
		fr.push(value.String(v.TypeOf()))
	case bytecode.OpInstanceOf:
		return vm.opInstanceOf(fr)
	case bytecode.OpIn:
		return vm.opIn(fr)
	case bytecode.OpEq:
		return vm.opLooseEq(fr, false)
	case bytecode.OpNeq:
		return vm.opLooseEq(fr, true)
	case bytecode.OpStrictEq:
		b, err := fr.pop()
		if err != nil {
			return err
		}
		a, err := fr.pop()
		if err != nil {
			return err
		}
		fr.push(value.Bool(value.StrictEquals(a, b)))
	case bytecode.OpStrictNeq:
		b, err := fr.pop()
		if err != nil {
			return err
		}
		a, err := fr.pop()
		if err != nil {
			return err
		}
		fr.push(value.Bool(!value.StrictEquals(a, b)))
	case bytecode.OpLt, bytecode.OpLte, bytecode.OpGt, bytecode.OpGte:
		return vm.opCompare(fr, instr.Op)

	case bytecode.OpLoadLocal:
		if instr.Operand < 0 || instr.Operand >= len(fr.locals) {
			return fmt.Errorf("vm: local slot %d out of bounds", instr.Operand)
		}
		fr.push(fr.locals[instr.Operand])
	case bytecode.OpStoreLocal:
		if instr.Operand < 0 || instr.Operand >= len(fr.locals) {
			return fmt.Errorf("vm: local slot %d out of bounds", instr.Operand)
		}
		if len(fr.stack) == 0 {
			return errors.New("vm: operand stack underflow")
		}
		fr.locals[instr.Operand] = fr.top()
	case bytecode.OpLoadClosure:
		if instr.Operand < 0 || instr.Operand >= len(fr.closure) {
			return fmt.Errorf("vm: closure slot %d out of bounds", instr.Operand)
		}
		fr.push(fr.closure[instr.Operand])
	case bytecode.OpStoreClosure:
		if instr.Operand < 0 || instr.Operand >= len(fr.closure) {
			return fmt.Errorf("vm: closure slot %d out of bounds", instr.Operand)
		}
		if len(fr.stack) == 0 {
			return errors.New("vm: operand stack underflow")
		}
		fr.closure[instr.Operand] = fr.top()
	case bytecode.OpLoadGlobal:
		name, err := constantString(fr, instr.Operand)
		if err != nil {
			return err
		}
		v, err := ctx.Globals.Get(propkey.String(name), value.Object(ctx.Globals))
		if err != nil {
			return err
		}
		fr.push(v)
	case bytecode.OpStoreGlobal:
		name, err := constantString(fr, instr.Operand)
		if err != nil {
			return err
		}
		if len(fr.stack) == 0 {
			return errors.New("vm: operand stack underflow")
		}
		if _, err := ctx.Globals.Set(propkey.String(name), fr.top(), value.Object(ctx.Globals)); err != nil {
			return err
		}

	case bytecode.OpGetProp:
		return vm.opGetProp(fr, instr)
	case bytecode.OpSetProp:
		return vm.opSetProp(fr, instr)
	case bytecode.OpGetIndex:
		return vm.opGetIndex(fr)
	case bytecode.OpSetIndex:
		return vm.opSetIndex(fr)
	case bytecode.OpDeleteProp:
		return vm.opDeleteProp(fr, instr)

	case bytecode.OpCall:
		return vm.opCall(fr, instr)
	case bytecode.OpCallMethod:
		return vm.opCallMethod(fr, instr)
	case bytecode.OpConstruct:
		return vm.opConstruct(fr, instr)
	case bytecode.OpThrow:
		v, err := fr.pop()
		if err != nil {
			return err
		}
		ctx.Throw(v)
		return errors.New("vm: uncaught exception")

	case bytecode.OpNewObject:
		fr.push(value.Object(shape.NewObjectWithProto(vm.protoIntrinsic("Object.prototype"))))
	case bytecode.OpNewArray:
		return vm.opNewArray(fr, instr)
	case bytecode.OpNewFunction:
		return vm.opNewFunction(fr, instr)
	case bytecode.OpNewClass:
		return vm.opNewClass(fr, instr)

	case bytecode.OpGetIterator:
		return vm.opGetIterator(fr)
	case bytecode.OpIterNext:
		return vm.opIterNext(fr)
	case bytecode.OpIterClose:
		return vm.opIterClose(fr)

	default:
		return fmt.Errorf("vm: unimplemented opcode %s", instr.Op)
	}
	return nil
}

var (
	errDivideByZero     = errors.New("vm: division by zero")
	errNegativeExponent = errors.New("vm: exponent must be non-negative for BigInt")
)

func constantString(fr *frame, idx int) (string, error) {
	if idx < 0 || idx >= len(fr.code.Constants) {
		return "", fmt.Errorf("vm: constant index %d out of bounds", idx)
	}
	s, ok := fr.code.Constants[idx].(string)
	if !ok {
		return "", fmt.Errorf("vm: constant[%d] is not a string", idx)
	}
	return s, nil
}

func constantToValue(c any) value.Value {
	switch v := c.(type) {
	case int64:
		return value.Int(v)
	case float64:
		return value.Number(v)
	case string:
		return value.String(v)
	case bool:
		return value.Bool(v)
	case *big.Int:
		return value.BigInt(v)
	case nil:
		return value.Null
	default:
		return value.Undefined
	}
}

func asInterface(v value.Value) (shape.Interface, bool) {
	if !v.IsObject() {
		return nil, false
	}
	iface, ok := v.AsObject().(shape.Interface)
	return iface, ok
}

// typeErr turns a plain pkg/value conversion error into the matching
// pending JS exception (RangeError for out-of-range conversions,
// TypeError for everything else pkg/value's leaf conversions refuse).
func (vm *VM) typeErr(err error) error {
	if errors.Is(err, value.ErrRangeConversion) {
		return jserr.ThrowRangeError(vm.ctx, "%v", err)
	}
	return jserr.ThrowTypeError(vm.ctx, "%v", err)
}

func (vm *VM) protoIntrinsic(name string) shape.Interface {
	v, ok := vm.ctx.Intrinsic(name)
	if !ok || !v.IsObject() {
		return nil
	}
	iface, _ := v.AsObject().(shape.Interface)
	return iface
}

// --- Arithmetic & comparison -----------------------------------------

func (vm *VM) opAdd(fr *frame) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	pa, err := value.ToPrimitive(a, value.HintDefault)
	if err != nil {
		return vm.typeErr(err)
	}
	pb, err := value.ToPrimitive(b, value.HintDefault)
	if err != nil {
		return vm.typeErr(err)
	}
	if pa.IsString() || pb.IsString() {
		sa, err := value.ToString(pa)
		if err != nil {
			return vm.typeErr(err)
		}
		sb, err := value.ToString(pb)
		if err != nil {
			return vm.typeErr(err)
		}
		fr.push(value.String(sa + sb))
		return nil
	}
	if pa.IsBigInt() && pb.IsBigInt() {
		fr.push(value.BigInt(new(big.Int).Add(pa.AsBigInt(), pb.AsBigInt())))
		return nil
	}
	if pa.IsBigInt() != pb.IsBigInt() {
		return jserr.ThrowTypeError(vm.ctx, "cannot mix BigInt and other types, use explicit conversions")
	}
	na, err := value.ToNumber(pa)
	if err != nil {
		return vm.typeErr(err)
	}
	nb, err := value.ToNumber(pb)
	if err != nil {
		return vm.typeErr(err)
	}
	fr.push(value.Number(na.AsNumber() + nb.AsNumber()))
	return nil
}

// arithOp pairs a float64 operator with its BigInt counterpart so
// Sub/Mul/Div/Mod/Exp share one dispatch helper instead of four nearly
// identical copies.
type arithOp struct {
	number func(a, b float64) float64
	bigInt func(a, b *big.Int) (*big.Int, error)
}

func (vm *VM) arithBinary(fr *frame, op arithOp) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	if a.IsBigInt() && b.IsBigInt() {
		r, err := op.bigInt(a.AsBigInt(), b.AsBigInt())
		if err != nil {
			return jserr.ThrowRangeError(vm.ctx, "%v", err)
		}
		fr.push(value.BigInt(r))
		return nil
	}
	if a.IsBigInt() || b.IsBigInt() {
		return jserr.ThrowTypeError(vm.ctx, "cannot mix BigInt and other types, use explicit conversions")
	}
	na, err := value.ToNumber(a)
	if err != nil {
		return vm.typeErr(err)
	}
	nb, err := value.ToNumber(b)
	if err != nil {
		return vm.typeErr(err)
	}
	fr.push(value.Number(op.number(na.AsNumber(), nb.AsNumber())))
	return nil
}

func toInt32(v value.Value) (int32, error) {
	n, err := value.ToNumber(v)
	if err != nil {
		return 0, err
	}
	f := n.AsNumber()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	f = math.Trunc(f)
	mod := math.Mod(f, 4294967296)
	if mod < 0 {
		mod += 4294967296
	}
	return int32(uint32(mod)), nil
}

func toUint32(v value.Value) (uint32, error) {
	i, err := toInt32(v)
	return uint32(i), err
}

func (vm *VM) int32Binary(fr *frame, op func(a, b int32) int32) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	ai, err := toInt32(a)
	if err != nil {
		return vm.typeErr(err)
	}
	bi, err := toInt32(b)
	if err != nil {
		return vm.typeErr(err)
	}
	fr.push(value.Int(int64(op(ai, bi))))
	return nil
}

func (vm *VM) shiftBinary(fr *frame, op func(a int32, b uint32) int32) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	ai, err := toInt32(a)
	if err != nil {
		return vm.typeErr(err)
	}
	bu, err := toUint32(b)
	if err != nil {
		return vm.typeErr(err)
	}
	fr.push(value.Int(int64(op(ai, bu))))
	return nil
}

func (vm *VM) ushrBinary(fr *frame) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	au, err := toUint32(a)
	if err != nil {
		return vm.typeErr(err)
	}
	bu, err := toUint32(b)
	if err != nil {
		return vm.typeErr(err)
	}
	fr.push(value.Int(int64(au >> (bu & 31))))
	return nil
}

func (vm *VM) opCompare(fr *frame, op bytecode.Opcode) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	pa, err := value.ToPrimitive(a, value.HintNumber)
	if err != nil {
		return vm.typeErr(err)
	}
	pb, err := value.ToPrimitive(b, value.HintNumber)
	if err != nil {
		return vm.typeErr(err)
	}

	var lt, eq bool
	switch {
	case pa.IsString() && pb.IsString():
		sa, sb := pa.AsString(), pb.AsString()
		lt, eq = sa < sb, sa == sb
	case pa.IsBigInt() && pb.IsBigInt():
		c := pa.AsBigInt().Cmp(pb.AsBigInt())
		lt, eq = c < 0, c == 0
	default:
		na, err := value.ToNumber(pa)
		if err != nil {
			return vm.typeErr(err)
		}
		nb, err := value.ToNumber(pb)
		if err != nil {
			return vm.typeErr(err)
		}
		fa, fb := na.AsNumber(), nb.AsNumber()
		if math.IsNaN(fa) || math.IsNaN(fb) {
			fr.push(value.Bool(false))
			return nil
		}
		lt, eq = fa < fb, fa == fb
	}

	var result bool
	switch op {
	case bytecode.OpLt:
		result = lt
	case bytecode.OpLte:
		result = lt || eq
	case bytecode.OpGt:
		result = !lt && !eq
	case bytecode.OpGte:
		result = !lt
	}
	fr.push(value.Bool(result))
	return nil
}

func (vm *VM) opLooseEq(fr *frame, negate bool) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	eq, err := value.LooseEquals(a, b)
	if err != nil {
		return vm.typeErr(err)
	}
	if negate {
		eq = !eq
	}
	fr.push(value.Bool(eq))
	return nil
}

func (vm *VM) opInstanceOf(fr *frame) error {
	ctorVal, err := fr.pop()
	if err != nil {
		return err
	}
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	if !ctorVal.IsObject() || !ctorVal.AsObject().IsCallable() {
		return jserr.ThrowTypeError(vm.ctx, "right-hand side of 'instanceof' is not callable")
	}
	ctorIface, _ := ctorVal.AsObject().(shape.Interface)
	if ctorIface == nil {
		return jserr.ThrowTypeError(vm.ctx, "right-hand side of 'instanceof' is not an object")
	}
	protoVal, err := ctorIface.Get(propkey.String("prototype"), ctorVal)
	if err != nil {
		return err
	}
	if !protoVal.IsObject() {
		return jserr.ThrowTypeError(vm.ctx, "function has non-object prototype in 'instanceof' check")
	}
	if !objVal.IsObject() {
		fr.push(value.False)
		return nil
	}
	targetID := protoVal.AsObject().ObjectID()
	objIface, ok := objVal.AsObject().(shape.Interface)
	if !ok {
		fr.push(value.False)
		return nil
	}
	for cur := objIface.GetPrototype(); cur != nil; cur = cur.GetPrototype() {
		if cur.ObjectID() == targetID {
			fr.push(value.True)
			return nil
		}
	}
	fr.push(value.False)
	return nil
}

func (vm *VM) opIn(fr *frame) error {
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	keyVal, err := fr.pop()
	if err != nil {
		return err
	}
	iface, ok := asInterface(objVal)
	if !ok {
		return jserr.ThrowTypeError(vm.ctx, "cannot use 'in' operator on a non-object")
	}
	key, err := propkey.ToPropertyKey(keyVal)
	if err != nil {
		return vm.typeErr(err)
	}
	has, err := iface.Has(key)
	if err != nil {
		return err
	}
	fr.push(value.Bool(has))
	return nil
}

// --- Property access ----------------------------------------------------

func (vm *VM) opGetProp(fr *frame, instr bytecode.Instruction) error {
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	name, err := constantString(fr, instr.Operand)
	if err != nil {
		return err
	}
	iface, ok := asInterface(objVal)
	if !ok {
		return jserr.ThrowTypeError(vm.ctx, "cannot read properties of %s (reading %q)", objVal.TypeOf(), name)
	}
	v, err := iface.Get(propkey.String(name), objVal)
	if err != nil {
		return err
	}
	fr.push(v)
	return nil
}

func (vm *VM) opSetProp(fr *frame, instr bytecode.Instruction) error {
	v, err := fr.pop()
	if err != nil {
		return err
	}
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	name, err := constantString(fr, instr.Operand)
	if err != nil {
		return err
	}
	iface, ok := asInterface(objVal)
	if !ok {
		return jserr.ThrowTypeError(vm.ctx, "cannot set properties of %s (setting %q)", objVal.TypeOf(), name)
	}
	if _, err := iface.Set(propkey.String(name), v, objVal); err != nil {
		return err
	}
	fr.push(v)
	return nil
}

func (vm *VM) opGetIndex(fr *frame) error {
	keyVal, err := fr.pop()
	if err != nil {
		return err
	}
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	iface, ok := asInterface(objVal)
	if !ok {
		return jserr.ThrowTypeError(vm.ctx, "cannot read properties of %s", objVal.TypeOf())
	}
	key, err := propkey.ToPropertyKey(keyVal)
	if err != nil {
		return vm.typeErr(err)
	}
	v, err := iface.Get(key, objVal)
	if err != nil {
		return err
	}
	fr.push(v)
	return nil
}

func (vm *VM) opSetIndex(fr *frame) error {
	v, err := fr.pop()
	if err != nil {
		return err
	}
	keyVal, err := fr.pop()
	if err != nil {
		return err
	}
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	iface, ok := asInterface(objVal)
	if !ok {
		return jserr.ThrowTypeError(vm.ctx, "cannot set properties of %s", objVal.TypeOf())
	}
	key, err := propkey.ToPropertyKey(keyVal)
	if err != nil {
		return vm.typeErr(err)
	}
	if _, err := iface.Set(key, v, objVal); err != nil {
		return err
	}
	fr.push(v)
	return nil
}

func (vm *VM) opDeleteProp(fr *frame, instr bytecode.Instruction) error {
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	name, err := constantString(fr, instr.Operand)
	if err != nil {
		return err
	}
	iface, ok := asInterface(objVal)
	if !ok {
		fr.push(value.True)
		return nil
	}
	ok2, err := iface.Delete(propkey.String(name))
	if err != nil {
		return err
	}
	fr.push(value.Bool(ok2))
	return nil
}

// --- Call / construct ----------------------------------------------------

func (vm *VM) opCall(fr *frame, instr bytecode.Instruction) error {
	n := instr.Operand
	args, err := popArgs(fr, n)
	if err != nil {
		return err
	}
	thisVal, err := fr.pop()
	if err != nil {
		return err
	}
	calleeVal, err := fr.pop()
	if err != nil {
		return err
	}
	result, err := vm.callValue(calleeVal, thisVal, args)
	if err != nil {
		return err
	}
	fr.push(result)
	return nil
}

func popArgs(fr *frame, n int) ([]value.Value, error) {
	args := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := fr.pop()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (vm *VM) callValue(calleeVal, thisVal value.Value, args []value.Value) (value.Value, error) {
	if !calleeVal.IsObject() {
		return value.Undefined, jserr.ThrowTypeError(vm.ctx, "%s is not a function", calleeVal.TypeOf())
	}
	callable, ok := calleeVal.AsObject().(shape.Callable)
	if !ok {
		return value.Undefined, jserr.ThrowTypeError(vm.ctx, "value is not a function")
	}
	vm.callDepth++
	defer func() { vm.callDepth-- }()
	if vm.callDepth > maxCallDepth {
		return value.Undefined, jserr.ThrowRangeError(vm.ctx, "Maximum call stack size exceeded")
	}
	return callable.Call(thisVal, args)
}

func (vm *VM) opCallMethod(fr *frame, instr bytecode.Instruction) error {
	selIdx := instr.Operand >> bytecode.CallMethodSelectorShift
	n := instr.Operand & bytecode.CallMethodArgCountMask
	args, err := popArgs(fr, n)
	if err != nil {
		return err
	}
	objVal, err := fr.pop()
	if err != nil {
		return err
	}
	selector, err := constantString(fr, selIdx)
	if err != nil {
		return err
	}
	iface, ok := asInterface(objVal)
	if !ok {
		return jserr.ThrowTypeError(vm.ctx, "cannot call method %q of %s", selector, objVal.TypeOf())
	}
	methodVal, err := iface.Get(propkey.String(selector), objVal)
	if err != nil {
		return err
	}
	result, err := vm.callValue(methodVal, objVal, args)
	if err != nil {
		return err
	}
	fr.push(result)
	return nil
}

// constructable is implemented by engine object kinds with their own
// [[Construct]] (currently *function.Class). Anything else callable
// goes through the generic OrdinaryCreateFromConstructor path below.
type constructable interface {
	Construct(args []value.Value) (value.Value, error)
}

func (vm *VM) opConstruct(fr *frame, instr bytecode.Instruction) error {
	n := instr.Operand
	args, err := popArgs(fr, n)
	if err != nil {
		return err
	}
	calleeVal, err := fr.pop()
	if err != nil {
		return err
	}
	result, err := vm.construct(calleeVal, args)
	if err != nil {
		return err
	}
	fr.push(result)
	return nil
}

func (vm *VM) construct(calleeVal value.Value, args []value.Value) (value.Value, error) {
	if !calleeVal.IsObject() || !calleeVal.AsObject().IsCallable() {
		return value.Undefined, jserr.ThrowTypeError(vm.ctx, "value is not a constructor")
	}
	if c, ok := calleeVal.AsObject().(constructable); ok {
		return c.Construct(args)
	}
	callable, ok := calleeVal.AsObject().(shape.Callable)
	if !ok {
		return value.Undefined, jserr.ThrowTypeError(vm.ctx, "value is not a constructor")
	}

	var proto shape.Interface
	if calleeIface, ok := calleeVal.AsObject().(shape.Interface); ok {
		protoVal, err := calleeIface.Get(propkey.String("prototype"), calleeVal)
		if err != nil {
			return value.Undefined, err
		}
		if protoVal.IsObject() {
			proto, _ = protoVal.AsObject().(shape.Interface)
		}
	}
	if proto == nil {
		proto = vm.protoIntrinsic("Object.prototype")
	}

	instObj := shape.NewObjectWithProto(proto)
	instVal := value.Object(instObj)
	result, err := callable.Call(instVal, args)
	if err != nil {
		return value.Undefined, err
	}
	if result.IsObject() {
		return result, nil
	}
	return instVal, nil
}

// --- Literals -------------------------------------------------------------

func (vm *VM) opNewArray(fr *frame, instr bytecode.Instruction) error {
	elems, err := popArgs(fr, instr.Operand)
	if err != nil {
		return err
	}
	arr := shape.NewObjectWithProto(vm.protoIntrinsic("Array.prototype"))
	for i, v := range elems {
		arr.DefineOwn(propkey.Index(uint32(i)), propkey.NewData(v, true, true, true), fullMask)
	}
	arr.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(int64(len(elems))), true, false, false), fullMask)
	fr.push(value.Object(arr))
	return nil
}

// captureClosure snapshots the creating frame's locals as the child
// function's closure array, truncated or zero-padded to upvalueCount:
// child slot i reads/writes whatever the parent's local slot i held at
// the moment the closure was created.
func captureClosure(fr *frame, upvalueCount int) []value.Value {
	closure := make([]value.Value, upvalueCount)
	copy(closure, fr.locals)
	return closure
}

func toBytecodeFlags(f bytecode.FunctionFlags) function.BytecodeFlags {
	var out function.BytecodeFlags
	if f.IsConstructor() {
		out |= function.FlagConstructor
	}
	if f.IsGenerator() {
		out |= function.FlagGenerator
	}
	if f.IsAsync() {
		out |= function.FlagAsync
	}
	return out
}

func (vm *VM) opNewFunction(fr *frame, instr bytecode.Instruction) error {
	if instr.Operand < 0 || instr.Operand >= len(fr.code.Constants) {
		return fmt.Errorf("vm: constant index %d out of bounds", instr.Operand)
	}
	tmpl, ok := fr.code.Constants[instr.Operand].(*bytecode.FunctionTemplate)
	if !ok {
		return fmt.Errorf("vm: NEW_FUNCTION constant[%d] is not a function template", instr.Operand)
	}
	fn := vm.instantiateMethod(fr, tmpl, vm.protoIntrinsic("Function.prototype"))
	fr.push(value.Object(fn))
	return nil
}

func (vm *VM) instantiateMethod(fr *frame, tmpl *bytecode.FunctionTemplate, proto shape.Interface) *function.BytecodeFunction {
	closure := captureClosure(fr, tmpl.Code.UpvalueCount)
	return function.NewBytecodeFunction(tmpl.Name, tmpl.ParamCount, proto, tmpl.Code, closure, toBytecodeFlags(tmpl.Flags), vm)
}

func (vm *VM) opNewClass(fr *frame, instr bytecode.Instruction) error {
	superVal, err := fr.pop()
	if err != nil {
		return err
	}
	if instr.Operand < 0 || instr.Operand >= len(fr.code.Constants) {
		return fmt.Errorf("vm: constant index %d out of bounds", instr.Operand)
	}
	tmpl, ok := fr.code.Constants[instr.Operand].(*bytecode.ClassTemplate)
	if !ok {
		return fmt.Errorf("vm: NEW_CLASS constant[%d] is not a class template", instr.Operand)
	}

	var super *function.Class
	if superVal.IsObject() {
		super, _ = superVal.AsObject().(*function.Class)
		if super == nil {
			return jserr.ThrowTypeError(vm.ctx, "class extends value is not a constructor")
		}
	}

	def := function.ClassDefinition{Name: tmpl.Name, Super: super}
	fnProto := vm.protoIntrinsic("Function.prototype")

	for _, m := range tmpl.Methods {
		fnObj := vm.instantiateMethod(fr, m.Fn, fnProto)
		def.Methods = append(def.Methods, function.MethodDefinition{
			Key:        propkey.String(m.Key),
			Kind:       function.MethodKind(m.Kind),
			Fn:         fnObj,
			FnObject:   fnObj.Object,
			Static:     m.Static,
			Enumerable: m.Enumerable,
		})
		if m.Key == "constructor" && !m.Static && m.Kind == bytecode.MethodNormal {
			def.Constructor = fnObj
		}
	}

	for _, fld := range tmpl.Fields {
		fd := function.FieldDefinition{Key: propkey.String(fld.Key), Static: fld.Static}
		if fld.Fn != nil {
			initFn := vm.instantiateMethod(fr, fld.Fn, fnProto)
			if fld.Static {
				v, err := initFn.Call(value.Undefined, nil)
				if err != nil {
					return err
				}
				fd.StaticValue = v
			} else {
				fd.Initializer = func(this value.Value) (value.Value, error) {
					return initFn.Call(this, nil)
				}
			}
		}
		def.Fields = append(def.Fields, fd)
	}

	fr.push(value.Object(function.NewClass(def)))
	return nil
}

// --- Iteration --------------------------------------------------------

func (vm *VM) opGetIterator(fr *frame) error {
	v, err := fr.pop()
	if err != nil {
		return err
	}
	it, err := iter.GetIterator(vm.ctx, v)
	if err != nil {
		return err
	}
	fr.push(it.Value())
	return nil
}

func (vm *VM) opIterNext(fr *frame) error {
	v, err := fr.pop()
	if err != nil {
		return err
	}
	it, ok := iter.FromValue(v)
	if !ok {
		return jserr.ThrowTypeError(vm.ctx, "value is not an iterator")
	}
	val, done, err := it.Next(vm.ctx)
	if err != nil {
		return err
	}
	fr.push(val)
	fr.push(value.Bool(done))
	return nil
}

func (vm *VM) opIterClose(fr *frame) error {
	v, err := fr.pop()
	if err != nil {
		return err
	}
	it, ok := iter.FromValue(v)
	if !ok {
		return nil
	}
	it.Close()
	return nil
}

// --- Generators ---------------------------------------------------------
//
// A generator call never runs the body: it allocates a frame and hands
// back an iterator object whose next()/return()/throw() drive vm.run
// over that same frame, one suspension at a time.

// GeneratorState is one of the four generator lifecycle states.
type GeneratorState int

const (
	GeneratorSuspendedStart GeneratorState = iota
	GeneratorSuspendedYield
	GeneratorExecuting
	GeneratorCompleted
)

type resumeKind int

const (
	resumeKindNext resumeKind = iota
	resumeKindReturn
	resumeKindThrow
)

// Generator is the iterator object returned by calling a generator
// function; it embeds *shape.Object so it is itself an ordinary
// property-bearing object carrying next/return/throw/@@iterator.
type Generator struct {
	*shape.Object
	vm    *VM
	fr    *frame
	state GeneratorState
}

func (vm *VM) newGenerator(fn *function.BytecodeFunction, code *bytecode.Bytecode, this value.Value, args []value.Value) (value.Value, error) {
	fr := newFrame(code, fn.Closure, this, args, readFnName(fn))
	g := &Generator{
		Object: shape.NewObjectWithProto(vm.protoIntrinsic("Generator.prototype")),
		vm:     vm,
		fr:     fr,
		state:  GeneratorSuspendedStart,
	}
	vm.installGeneratorMethods(g)
	return value.Object(g), nil
}

func (vm *VM) installGeneratorMethods(g *Generator) {
	fnProto := vm.protoIntrinsic("Function.prototype")
	install := func(name string, kind resumeKind) {
		nf := function.NewNative(name, 1, fnProto, func(_ value.Value, args []value.Value) (value.Value, error) {
			var v value.Value
			if len(args) > 0 {
				v = args[0]
			}
			return g.resume(kind, v)
		})
		g.DefineOwn(propkey.String(name), propkey.NewData(value.Object(nf), true, false, true), fullMask)
	}
	install("next", resumeKindNext)
	install("return", resumeKindReturn)
	install("throw", resumeKindThrow)

	if symIterVal, ok := vm.ctx.Intrinsic("Symbol.iterator"); ok && symIterVal.IsSymbol() {
		selfFn := function.NewNative("[Symbol.iterator]", 0, fnProto, func(this value.Value, args []value.Value) (value.Value, error) {
			return this, nil
		})
		g.DefineOwn(propkey.Symbol(symIterVal.AsSymbol()), propkey.NewData(value.Object(selfFn), true, false, true), fullMask)
	}
}

func (vm *VM) iterResultObject(v value.Value, done bool) value.Value {
	o := shape.NewObjectWithProto(vm.protoIntrinsic("Object.prototype"))
	o.DefineOwn(propkey.String("value"), propkey.NewData(v, true, true, true), fullMask)
	o.DefineOwn(propkey.String("done"), propkey.NewData(value.Bool(done), true, true, true), fullMask)
	return value.Object(o)
}

// resume drives the generator's frame one step: on SUSPENDED_START it
// begins the body (a return()/throw() before the body ever ran just
// completes immediately); on SUSPENDED_YIELD it feeds the resume value
// back in as OpYield's result (or unwinds to a catch for throw()).
func (g *Generator) resume(kind resumeKind, v value.Value) (value.Value, error) {
	vm := g.vm
	switch g.state {
	case GeneratorCompleted:
		if kind == resumeKindThrow {
			vm.ctx.Throw(v)
			return value.Undefined, errors.New("vm: throw into a completed generator")
		}
		if kind == resumeKindReturn {
			return vm.iterResultObject(v, true), nil
		}
		return vm.iterResultObject(value.Undefined, true), nil

	case GeneratorExecuting:
		return value.Undefined, errors.New("vm: generator is already executing")

	case GeneratorSuspendedStart:
		switch kind {
		case resumeKindReturn:
			g.state = GeneratorCompleted
			return vm.iterResultObject(v, true), nil
		case resumeKindThrow:
			g.state = GeneratorCompleted
			vm.ctx.Throw(v)
			return value.Undefined, errors.New("vm: generator threw before starting")
		}

	case GeneratorSuspendedYield:
		switch kind {
		case resumeKindReturn:
			g.state = GeneratorCompleted
			return vm.iterResultObject(v, true), nil
		case resumeKindThrow:
			vm.ctx.Throw(v)
			if !vm.unwind(g.fr) {
				g.state = GeneratorCompleted
				return value.Undefined, errors.New("vm: uncaught exception in generator")
			}
		default:
			g.fr.push(v)
		}
	}

	g.state = GeneratorExecuting
	result, oc, err := vm.run(g.fr)
	if err != nil {
		g.state = GeneratorCompleted
		return value.Undefined, err
	}
	switch oc {
	case outcomeYield:
		g.state = GeneratorSuspendedYield
		return vm.iterResultObject(result, false), nil
	case outcomeReturn:
		g.state = GeneratorCompleted
		return vm.iterResultObject(result, true), nil
	default:
		g.state = GeneratorCompleted
		return value.Undefined, errors.New("vm: async generators are not supported")
	}
}

// --- Async functions -----------------------------------------------------
//
// An async function call returns a promise synchronously and runs its
// body as a sequence of microtask-driven resumptions: each OpAwait
// suspends the frame exactly like a generator's OpYield, but the VM
// itself (not an external caller) drives the next resumption, once the
// awaited value settles.

func (vm *VM) runAsync(fr *frame) (value.Value, error) {
	p := promise.New(vm.ctx, vm.protoIntrinsic("Promise.prototype"))
	vm.driveAsync(fr, p)
	return value.Object(p), nil
}

func (vm *VM) driveAsync(fr *frame, p *promise.Promise) {
	result, oc, err := vm.run(fr)
	if err != nil {
		if reason, ok := vm.ctx.PendingException(); ok {
			vm.ctx.ClearException()
			p.Reject(reason)
		} else {
			p.Reject(value.String(err.Error()))
		}
		return
	}
	switch oc {
	case outcomeReturn:
		p.Resolve(result)
	case outcomeAwait:
		vm.awaitValue(fr, p, result)
	default:
		p.Reject(value.String("vm: async generator functions are not supported"))
	}
}

func (vm *VM) toPromise(v value.Value) *promise.Promise {
	if inner, ok := promise.AsPromise(v); ok {
		return inner
	}
	p := promise.New(vm.ctx, vm.protoIntrinsic("Promise.prototype"))
	p.Resolve(v)
	return p
}

func (vm *VM) awaitValue(fr *frame, p *promise.Promise, awaited value.Value) {
	inner := vm.toPromise(awaited)
	onFulfilled := function.NewNative("", 1, nil, func(_ value.Value, args []value.Value) (value.Value, error) {
		var v value.Value
		if len(args) > 0 {
			v = args[0]
		}
		fr.push(v)
		vm.driveAsync(fr, p)
		return value.Undefined, nil
	})
	onRejected := function.NewNative("", 1, nil, func(_ value.Value, args []value.Value) (value.Value, error) {
		var v value.Value
		if len(args) > 0 {
			v = args[0]
		}
		vm.ctx.Throw(v)
		if !vm.unwind(fr) {
			vm.ctx.ClearException()
			p.Reject(v)
			return value.Undefined, nil
		}
		vm.driveAsync(fr, p)
		return value.Undefined, nil
	})
	inner.Then(onFulfilled, onRejected, vm.protoIntrinsic("Promise.prototype"))
}

// --- super() / super.m -------------------------------------------------
//
// No compiler in this module ever emits bytecode for `super`; these are
// exposed as direct Go entry points for an embedder or test to drive the
// same dispatch a compiler's super-construct/super-get would reach.

// SuperConstruct invokes cls's superclass constructor with args against
// this, the current (already-allocated) instance — exactly what
// `super(...)` does in a derived class constructor: the parent
// constructor's field initializers and side effects land on the same
// object the subclass constructor goes on to use, not on a second,
// discarded instance.
func (vm *VM) SuperConstruct(cls *function.Class, this value.Value, args []value.Value) (value.Value, error) {
	super := cls.Super()
	if super == nil {
		return value.Undefined, jserr.ThrowReferenceError(vm.ctx, "'super' keyword is only valid inside a derived class constructor")
	}
	instObj, ok := this.AsObject().(*shape.Object)
	if !this.IsObject() || !ok {
		return value.Undefined, vm.typeErr(fmt.Errorf("'super' called with a non-object this"))
	}
	return super.ConstructOn(instObj, args)
}

// SuperGetMethod resolves `super.name` from within a method of cls,
// binding the found method to `this` so it observes the caller's
// receiver rather than the superclass prototype.
func (vm *VM) SuperGetMethod(cls *function.Class, this value.Value, name string) (value.Value, error) {
	super := cls.Super()
	if super == nil {
		return value.Undefined, jserr.ThrowReferenceError(vm.ctx, "'super' keyword is only valid inside a method of a derived class")
	}
	v, err := super.Prototype().Get(propkey.String(name), this)
	if err != nil {
		return value.Undefined, err
	}
	callable, ok := v.AsObject().(shape.Callable)
	if !v.IsObject() || !ok {
		return v, nil
	}
	bound := function.NewNative(name, 0, nil, func(_ value.Value, args []value.Value) (value.Value, error) {
		return callable.Call(this, args)
	})
	return value.Object(bound), nil
}
