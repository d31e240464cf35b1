// Package jserr implements the built-in error taxonomy (Error, TypeError,
// RangeError, ReferenceError, SyntaxError, URIError, EvalError,
// AggregateError, SuppressedError) as ordinary shape.Objects, plus helpers
// that install one as a context's pending exception.
package jserr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/kristofer/jsrt/pkg/context"
	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

// Kind names one of the built-in error constructors.
type Kind string

const (
	KindError           Kind = "Error"
	KindTypeError        Kind = "TypeError"
	KindRangeError       Kind = "RangeError"
	KindReferenceError   Kind = "ReferenceError"
	KindSyntaxError      Kind = "SyntaxError"
	KindURIError         Kind = "URIError"
	KindEvalError        Kind = "EvalError"
	KindAggregateError   Kind = "AggregateError"
	KindSuppressedError  Kind = "SuppressedError"
)

var fullMask = propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true}

func nonEnumerableWritable() propkey.Mask { return fullMask }

// prototypeFor resolves "<kind>.prototype" from the context's intrinsic
// registry, falling back to "Error.prototype" so an engine that hasn't
// registered every subtype still produces a usable object.
func prototypeFor(ctx *context.Context, kind Kind) shape.Interface {
	if v, ok := ctx.Intrinsic(string(kind) + ".prototype"); ok && v.IsObject() {
		if iface, ok := v.AsObject().(shape.Interface); ok {
			return iface
		}
	}
	if v, ok := ctx.Intrinsic("Error.prototype"); ok && v.IsObject() {
		if iface, ok := v.AsObject().(shape.Interface); ok {
			return iface
		}
	}
	return nil
}

// New builds a new error object of kind with the given message, without
// touching ctx's pending-exception slot.
func New(ctx *context.Context, kind Kind, message string) *shape.Object {
	o := shape.NewObjectWithProto(prototypeFor(ctx, kind))
	o.DefineOwn(propkey.String("name"), propkey.NewData(value.String(string(kind)), true, false, true), nonEnumerableWritable())
	o.DefineOwn(propkey.String("message"), propkey.NewData(value.String(message), true, false, true), nonEnumerableWritable())
	o.DefineOwn(propkey.String("stack"), propkey.NewData(value.String(fmt.Sprintf("%s: %s", kind, message)), true, false, true), nonEnumerableWritable())
	return o
}

// Throw builds a new error object and installs it as ctx's pending
// exception, returning a Go-level error for callers still on the plain
// (Value, error) return path (a VM frame turns this into an abrupt
// completion once it notices ctx.PendingException is set).
func Throw(ctx *context.Context, kind Kind, message string) error {
	ctx.Throw(value.Object(New(ctx, kind, message)))
	return errors.Errorf("%s: %s", kind, message)
}

// ThrowTypeError formats and throws a TypeError.
func ThrowTypeError(ctx *context.Context, format string, args ...any) error {
	return Throw(ctx, KindTypeError, fmt.Sprintf(format, args...))
}

// ThrowRangeError formats and throws a RangeError.
func ThrowRangeError(ctx *context.Context, format string, args ...any) error {
	return Throw(ctx, KindRangeError, fmt.Sprintf(format, args...))
}

// ThrowReferenceError formats and throws a ReferenceError.
func ThrowReferenceError(ctx *context.Context, format string, args ...any) error {
	return Throw(ctx, KindReferenceError, fmt.Sprintf(format, args...))
}

// ThrowSyntaxError formats and throws a SyntaxError.
func ThrowSyntaxError(ctx *context.Context, format string, args ...any) error {
	return Throw(ctx, KindSyntaxError, fmt.Sprintf(format, args...))
}

// ThrowURIError formats and throws a URIError.
func ThrowURIError(ctx *context.Context, format string, args ...any) error {
	return Throw(ctx, KindURIError, fmt.Sprintf(format, args...))
}

// ThrowEvalError formats and throws an EvalError.
func ThrowEvalError(ctx *context.Context, format string, args ...any) error {
	return Throw(ctx, KindEvalError, fmt.Sprintf(format, args...))
}

// NewAggregate builds an AggregateError whose .errors property is an
// index-keyed, length-bearing object over errs, the shape AggregateError
// uses for a collection of rejection reasons. Disposal composition uses
// NewSuppressed instead.
func NewAggregate(ctx *context.Context, errs []value.Value, message string) *shape.Object {
	o := New(ctx, KindAggregateError, message)
	list := shape.NewObject()
	for i, e := range errs {
		list.DefineOwn(propkey.Index(uint32(i)), propkey.NewData(e, true, true, true), fullMask)
	}
	list.DefineOwn(propkey.String("length"), propkey.NewData(value.Int(int64(len(errs))), true, false, false), fullMask)
	o.DefineOwn(propkey.String("errors"), propkey.NewData(value.Object(list), true, false, true), nonEnumerableWritable())
	return o
}

// NewSuppressed builds a SuppressedError combining a later error with one
// it suppressed, matching the `.error`/`.suppressed` shape produced by
// DisposableStack/AsyncDisposableStack composition.
func NewSuppressed(ctx *context.Context, errorVal, suppressedVal value.Value, message string) *shape.Object {
	o := New(ctx, KindSuppressedError, message)
	o.DefineOwn(propkey.String("error"), propkey.NewData(errorVal, true, false, true), nonEnumerableWritable())
	o.DefineOwn(propkey.String("suppressed"), propkey.NewData(suppressedVal, true, false, true), nonEnumerableWritable())
	return o
}

// Message reads the .message string property off an error-shaped object,
// returning "" if absent.
func Message(o *shape.Object) string {
	if d, ok := o.GetOwn(propkey.String("message")); ok {
		return d.Value.AsString()
	}
	return ""
}

// Name reads the .name string property off an error-shaped object.
func Name(o *shape.Object) string {
	if d, ok := o.GetOwn(propkey.String("name")); ok {
		return d.Value.AsString()
	}
	return ""
}
