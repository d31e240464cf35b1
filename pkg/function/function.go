// Package function implements the callable object kinds: plain bytecode
// functions, native (Go-backed) functions, bound functions, and classes.
// Every kind wraps a *shape.Object so functions are themselves ordinary
// property-bearing objects with a [[Call]] (and optionally [[Construct]])
// internal slot.
package function

import (
	"fmt"

	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

var fullMask = propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}

func installNameAndLength(o *shape.Object, name string, length int) {
	o.DefineOwn(propkey.String("name"), propkey.NewData(value.String(name), false, false, true),
		propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
	o.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(int64(length)), false, false, true),
		propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
}

func readName(o *shape.Object) string {
	if d, ok := o.GetOwn(propkey.String("name")); ok {
		return d.Value.AsString()
	}
	return ""
}

func readLength(o *shape.Object) int {
	if d, ok := o.GetOwn(propkey.String("length")); ok {
		return int(d.Value.AsNumber())
	}
	return 0
}

// NativeFunc is the Go-level body of a NativeFunction.
type NativeFunc func(this value.Value, args []value.Value) (value.Value, error)

// NativeFunction wraps a Go closure as a callable engine object — the
// mechanism every intrinsic (Object.keys, Array.prototype.map, console.log,
// ...) is built from.
type NativeFunction struct {
	*shape.Object
	fn NativeFunc
}

// NewNative builds a native function with the given display name and
// declared arity, using proto as its prototype (typically the engine's
// Function.prototype intrinsic).
func NewNative(name string, arity int, proto shape.Interface, fn NativeFunc) *NativeFunction {
	nf := &NativeFunction{Object: shape.NewObjectWithProto(proto), fn: fn}
	nf.SetCallable(nf)
	installNameAndLength(nf.Object, name, arity)
	return nf
}

func (f *NativeFunction) Call(this value.Value, args []value.Value) (value.Value, error) {
	return f.fn(this, args)
}

// Executor runs compiled bytecode on behalf of a BytecodeFunction. pkg/vm
// implements this and is the only package that constructs
// BytecodeFunctions, which keeps pkg/function free of any dependency on
// pkg/vm or pkg/bytecode.
type Executor interface {
	RunFunction(fn *BytecodeFunction, this value.Value, args []value.Value) (value.Value, error)
}

// BytecodeFlags records the declaration-site bits that change a
// BytecodeFunction's calling convention. Mirrors bytecode.FunctionFlags
// without importing pkg/bytecode.
type BytecodeFlags uint8

const (
	FlagConstructor BytecodeFlags = 1 << iota
	FlagGenerator
	FlagAsync
)

func (f BytecodeFlags) IsConstructor() bool { return f&FlagConstructor != 0 }
func (f BytecodeFlags) IsGenerator() bool   { return f&FlagGenerator != 0 }
func (f BytecodeFlags) IsAsync() bool       { return f&FlagAsync != 0 }

// BytecodeFunction is a function whose body is compiled bytecode plus a
// captured closure environment. Code is an opaque payload (pkg/vm's
// *bytecode.Bytecode) so this package never imports pkg/bytecode.
type BytecodeFunction struct {
	*shape.Object
	Code     any
	Closure  []value.Value
	Flags    BytecodeFlags
	executor Executor
}

// NewBytecodeFunction builds a callable function object around compiled
// code. exec.RunFunction is invoked on every Call.
func NewBytecodeFunction(name string, arity int, proto shape.Interface, code any, closure []value.Value, flags BytecodeFlags, exec Executor) *BytecodeFunction {
	bf := &BytecodeFunction{Object: shape.NewObjectWithProto(proto), Code: code, Closure: closure, Flags: flags, executor: exec}
	bf.SetCallable(bf)
	installNameAndLength(bf.Object, name, arity)
	return bf
}

func (f *BytecodeFunction) Call(this value.Value, args []value.Value) (value.Value, error) {
	return f.executor.RunFunction(f, this, args)
}

// BoundFunction implements Function.prototype.bind: a fixed `this`, a
// prefix of bound arguments, and the ECMA arity/name derivation rules:
// arity = max(0, target.length - boundArgs.length), name = "bound " +
// target.name.
type BoundFunction struct {
	*shape.Object
	target   shape.Callable
	boundFn  *shape.Object
	boundThis value.Value
	boundArgs []value.Value
}

// NewBound wraps target (itself both shape.Callable and a *shape.Object)
// with a fixed receiver and argument prefix.
func NewBound(target *shape.Object, targetCallable shape.Callable, proto shape.Interface, boundThis value.Value, boundArgs []value.Value) *BoundFunction {
	arity := readLength(target) - len(boundArgs)
	if arity < 0 {
		arity = 0
	}
	bf := &BoundFunction{
		Object:    shape.NewObjectWithProto(proto),
		target:    targetCallable,
		boundFn:   target,
		boundThis: boundThis,
		boundArgs: boundArgs,
	}
	bf.SetCallable(bf)
	installNameAndLength(bf.Object, "bound "+readName(target), arity)
	return bf
}

func (f *BoundFunction) Call(this value.Value, args []value.Value) (value.Value, error) {
	full := make([]value.Value, 0, len(f.boundArgs)+len(args))
	full = append(full, f.boundArgs...)
	full = append(full, args...)
	return f.target.Call(f.boundThis, full)
}

// MethodKind distinguishes a normal method from an accessor pair member.
type MethodKind int

const (
	MethodNormal MethodKind = iota
	MethodGetter
	MethodSetter
)

// MethodDefinition describes one member of a class body: instance methods
// go on the prototype, static methods go on the class object itself.
type MethodDefinition struct {
	Key        propkey.Key
	Kind       MethodKind
	Fn         shape.Callable
	FnObject   *shape.Object
	Static     bool
	Enumerable bool
}

// FieldInitializer computes an instance field's initial value; `this` is
// the partially-constructed instance so initializers can reference earlier
// fields.
type FieldInitializer func(this value.Value) (value.Value, error)

// FieldDefinition describes one field of a class body.
type FieldDefinition struct {
	Key         propkey.Key
	Static      bool
	Initializer FieldInitializer // instance fields
	StaticValue value.Value      // static fields (evaluated once, at class definition time)
}

// ClassDefinition is the declarative description of a class, built by
// whatever front end is producing callable class objects: a class is
// sugar for a constructor function plus a linked prototype object.
type ClassDefinition struct {
	Name        string
	Super       *Class
	Constructor shape.Callable
	Methods     []MethodDefinition
	Fields      []FieldDefinition
}

// Class is a callable engine object implementing [[Construct]]. Calling it
// directly (without `new`) is a TypeError, matching ECMAScript class
// semantics.
type Class struct {
	*shape.Object
	name      string
	super     *Class
	prototype *shape.Object
	fields    []FieldDefinition
	ctor      shape.Callable
}

// NewClass builds a class object and its prototype from a definition,
// linking prototype chains to def.Super when present.
func NewClass(def ClassDefinition) *Class {
	var protoParent shape.Interface
	var classParent shape.Interface
	if def.Super != nil {
		protoParent = def.Super.prototype
		classParent = def.Super.Object
	}
	proto := shape.NewObjectWithProto(protoParent)

	c := &Class{
		Object:    shape.NewObjectWithProto(classParent),
		name:      def.Name,
		super:     def.Super,
		prototype: proto,
		fields:    def.Fields,
		ctor:      def.Constructor,
	}
	c.SetCallable(c)
	installNameAndLength(c.Object, def.Name, 0)

	proto.DefineOwn(propkey.String("constructor"), propkey.NewData(value.Object(c), true, false, true), fullMask)
	c.DefineOwn(propkey.String("prototype"), propkey.NewData(value.Object(proto), false, false, false), fullMask)

	for _, m := range def.Methods {
		target := proto
		if m.Static {
			target = c.Object
		}
		fnVal := value.Object(m.FnObject)
		switch m.Kind {
		case MethodGetter:
			target.DefineOwn(m.Key, propkey.NewAccessor(fnVal, value.Undefined, m.Enumerable, true),
				propkey.Mask{Get: true, Enumerable: true, Configurable: true})
		case MethodSetter:
			target.DefineOwn(m.Key, propkey.NewAccessor(value.Undefined, fnVal, m.Enumerable, true),
				propkey.Mask{Set: true, Enumerable: true, Configurable: true})
		default:
			target.DefineOwn(m.Key, propkey.NewData(fnVal, true, m.Enumerable, true),
				propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
		}
	}
	for _, f := range def.Fields {
		if f.Static {
			c.DefineOwn(f.Key, propkey.NewData(f.StaticValue, true, true, true), fullMask)
		}
	}
	return c
}

func (c *Class) Name() string           { return c.name }
func (c *Class) Prototype() *shape.Object { return c.prototype }
func (c *Class) Super() *Class          { return c.super }

// Call rejects direct invocation: classes may only be invoked via `new`.
func (c *Class) Call(this value.Value, args []value.Value) (value.Value, error) {
	return value.Undefined, fmt.Errorf("function: class constructor %s cannot be invoked without 'new'", c.name)
}

// Construct implements the construction protocol: allocate a fresh
// instance linked to this class's prototype, then run ConstructOn against
// it.
func (c *Class) Construct(args []value.Value) (value.Value, error) {
	instObj := shape.NewObjectWithProto(c.prototype)
	return c.ConstructOn(instObj, args)
}

// ConstructOn runs this class's construction protocol — implicit or
// explicit superclass dispatch, then field initializers in declaration
// order, then the constructor body — against an already-allocated
// instance rather than allocating a new one.
//
// This is what super(args) must call: spec §4.5 requires that "super(args)
// in a derived constructor invokes the parent constructor with the
// current this", not with some other, freshly allocated object. instObj
// keeps the most-derived class's prototype throughout the whole chain
// (it is allocated once, by the outermost Construct call, with
// new.target's prototype) exactly as ECMAScript's OrdinaryCreateFromConstructor
// plus derived-constructor this-binding does: every level of the
// superclass chain mutates the same object, so instance fields and side
// effects set by a base constructor are visible on the final instance.
func (c *Class) ConstructOn(instObj *shape.Object, args []value.Value) (value.Value, error) {
	instance := value.Object(instObj)

	if c.ctor == nil && c.super != nil {
		if _, err := c.super.ConstructOn(instObj, args); err != nil {
			return value.Undefined, err
		}
	}

	for _, f := range c.fields {
		if f.Static || f.Initializer == nil {
			continue
		}
		v, err := f.Initializer(instance)
		if err != nil {
			return value.Undefined, err
		}
		instObj.DefineOwn(f.Key, propkey.NewData(v, true, true, true), fullMask)
	}

	if c.ctor != nil {
		if _, err := c.ctor.Call(instance, args); err != nil {
			return value.Undefined, err
		}
	}
	return instance, nil
}
