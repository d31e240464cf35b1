// Package main implements jsrt, the minimal embedder demo CLI for the
// engine core: it loads a pre-compiled bytecode module (produced by an
// external compiler, which is out of scope for this repository per
// spec.md's non-goals) and runs it against a freshly bootstrapped realm.
package main

import (
	"go.uber.org/zap"

	"github.com/kristofer/jsrt/pkg/buffer"
	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// typedArrayKinds lists the twelve element kinds this realm installs a
// global constructor for, in the order ECMA-262's own typed-array table
// lists them.
var typedArrayKinds = []buffer.ElementKind{
	buffer.Int8Kind, buffer.Uint8Kind, buffer.Uint8ClampedKind,
	buffer.Int16Kind, buffer.Uint16Kind,
	buffer.Int32Kind, buffer.Uint32Kind,
	buffer.Float16Kind, buffer.Float32Kind, buffer.Float64Kind,
	buffer.BigInt64Kind, buffer.BigUint64Kind,
}

// newRealm builds a context with the handful of intrinsic prototypes the
// executor consults directly (Object/Function/Array/Generator/Promise
// prototypes, plus Symbol.iterator), plus the typed-array global
// constructors. A production embedder would also install the full
// built-in class catalogue (Array.prototype.map, JSON, Math, ...)
// described in spec.md §1 as an external collaborator; that catalogue
// lives outside the core this repository implements.
func newRealm(logger *zap.Logger) *context.Context {
	ctx := context.New(logger)

	objProto := shape.NewObject()
	funcProto := shape.NewObjectWithProto(objProto)
	arrProto := shape.NewObjectWithProto(objProto)
	genProto := shape.NewObjectWithProto(objProto)
	promiseProto := shape.NewObjectWithProto(objProto)
	errProto := shape.NewObjectWithProto(objProto)

	ctx.DefineIntrinsic("Object.prototype", value.Object(objProto))
	ctx.DefineIntrinsic("Function.prototype", value.Object(funcProto))
	ctx.DefineIntrinsic("Array.prototype", value.Object(arrProto))
	ctx.DefineIntrinsic("Generator.prototype", value.Object(genProto))
	ctx.DefineIntrinsic("Promise.prototype", value.Object(promiseProto))
	ctx.DefineIntrinsic("Error.prototype", value.Object(errProto))
	ctx.DefineIntrinsic("Symbol.iterator", value.SymbolValue(value.NewSymbol("Symbol.iterator")))

	installTypedArrayGlobals(ctx, funcProto, objProto)

	return ctx
}

// installTypedArrayGlobals registers one buffer.TypedArrayConstructor per
// element kind as both a realm intrinsic (so pkg/vm's opConstruct's
// [[Construct]] dispatch reaches it the same way it reaches a Class) and
// a global binding, so `new Int32Array(...)` resolves the way any other
// global constructor does.
func installTypedArrayGlobals(ctx *context.Context, funcProto, objProto shape.Interface) {
	mask := propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}
	for _, kind := range typedArrayKinds {
		proto := shape.NewObjectWithProto(objProto)
		ctor := buffer.NewTypedArrayConstructor(ctx, kind, funcProto, proto)
		name := kind.Name()
		ctx.DefineIntrinsic(name, value.Object(ctor))
		ctx.DefineIntrinsic(name+".prototype", value.Object(proto))
		ctx.Globals.DefineOwn(propkey.String(name), propkey.NewData(value.Object(ctor), true, false, true), mask)
	}
}
