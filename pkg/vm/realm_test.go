package vm

import (
	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// newTestContext builds a minimal realm with just enough intrinsics wired
// up for the executor to run: the five prototypes it consults directly,
// plus a registered Symbol.iterator for the iteration/generator tests.
func newTestContext() *context.Context {
	ctx := context.New(nil)
	objProto := shape.NewObject()
	funcProto := shape.NewObjectWithProto(objProto)
	arrProto := shape.NewObjectWithProto(objProto)
	genProto := shape.NewObjectWithProto(objProto)
	promiseProto := shape.NewObjectWithProto(objProto)

	ctx.DefineIntrinsic("Object.prototype", value.Object(objProto))
	ctx.DefineIntrinsic("Function.prototype", value.Object(funcProto))
	ctx.DefineIntrinsic("Array.prototype", value.Object(arrProto))
	ctx.DefineIntrinsic("Generator.prototype", value.Object(genProto))
	ctx.DefineIntrinsic("Promise.prototype", value.Object(promiseProto))
	ctx.DefineIntrinsic("Symbol.iterator", value.SymbolValue(value.NewSymbol("Symbol.iterator")))

	return ctx
}
