package function

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/shape"
	"github.com/kristofer/jsrt/pkg/value"
)

func TestNativeFunctionCallAndMeta(t *testing.T) {
	nf := NewNative("add", 2, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Int(int64(args[0].AsNumber()) + int64(args[1].AsNumber())), nil
	})
	assert.Equal(t, "add", readName(nf.Object))
	assert.Equal(t, 2, readLength(nf.Object))

	result, err := nf.Call(value.Undefined, []value.Value{value.Int(1), value.Int(2)})
	require.NoError(t, err)
	assert.True(t, value.StrictEquals(result, value.Int(3)))
}

func TestBoundFunctionArityAndNameRules(t *testing.T) {
	target := NewNative("greet", 3, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.String("hi"), nil
	})
	bound := NewBound(target.Object, target, nil, value.Undefined, []value.Value{value.Int(1)})
	assert.Equal(t, "bound greet", readName(bound.Object))
	assert.Equal(t, 2, readLength(bound.Object))
}

func TestBoundFunctionArityNeverNegative(t *testing.T) {
	target := NewNative("f", 1, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		return value.Undefined, nil
	})
	bound := NewBound(target.Object, target, nil, value.Undefined, []value.Value{value.Int(1), value.Int(2), value.Int(3)})
	assert.Equal(t, 0, readLength(bound.Object))
}

func TestBoundFunctionPrependsBoundArgs(t *testing.T) {
	var seen []value.Value
	target := NewNative("f", 0, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		seen = args
		return value.Undefined, nil
	})
	bound := NewBound(target.Object, target, nil, value.Undefined, []value.Value{value.Int(1), value.Int(2)})
	_, err := bound.Call(value.Undefined, []value.Value{value.Int(3)})
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.EqualValues(t, 1, seen[0].AsNumber())
	assert.EqualValues(t, 3, seen[2].AsNumber())
}

func TestClassConstructRunsFieldsThenConstructorInOrder(t *testing.T) {
	var order []string
	ctor := NewNative("constructor", 0, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		order = append(order, "ctor")
		return value.Undefined, nil
	})
	cls := NewClass(ClassDefinition{
		Name:        "Point",
		Constructor: ctor,
		Fields: []FieldDefinition{
			{Key: propkey.String("x"), Initializer: func(this value.Value) (value.Value, error) {
				order = append(order, "x")
				return value.Int(0), nil
			}},
		},
	})

	instVal, err := cls.Construct(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "ctor"}, order)

	inst := instVal.AsObject().(*shape.Object)
	desc, ok := inst.GetOwn(propkey.String("x"))
	require.True(t, ok)
	assert.True(t, value.StrictEquals(desc.Value, value.Int(0)))
}

func TestClassInheritsPrototypeChain(t *testing.T) {
	base := NewClass(ClassDefinition{Name: "Base"})
	base.Prototype().DefineOwn(propkey.String("greet"), propkey.NewData(value.String("hi"), true, true, true),
		propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})

	derived := NewClass(ClassDefinition{Name: "Derived", Super: base})
	instVal, err := derived.Construct(nil)
	require.NoError(t, err)

	inst := instVal.AsObject().(*shape.Object)
	got, err := inst.Get(propkey.String("greet"), instVal)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.AsString())
}

func TestDerivedClassImplicitSuperSetsFieldsOnSameInstance(t *testing.T) {
	baseCtor := NewNative("constructor", 0, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		inst := this.AsObject().(*shape.Object)
		inst.DefineOwn(propkey.String("x"), propkey.NewData(value.Int(1), true, true, true),
			propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
		return value.Undefined, nil
	})
	base := NewClass(ClassDefinition{Name: "Base", Constructor: baseCtor})
	derived := NewClass(ClassDefinition{Name: "Derived", Super: base})

	instVal, err := derived.Construct(nil)
	require.NoError(t, err)

	inst := instVal.AsObject().(*shape.Object)
	desc, ok := inst.GetOwn(propkey.String("x"))
	require.True(t, ok, "base constructor's field must land on the actual Derived instance")
	assert.True(t, value.StrictEquals(desc.Value, value.Int(1)))
}

func TestDerivedClassExplicitSuperConstructOnSharesInstance(t *testing.T) {
	baseCtor := NewNative("constructor", 1, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		inst := this.AsObject().(*shape.Object)
		inst.DefineOwn(propkey.String("y"), propkey.NewData(args[0], true, true, true),
			propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
		return value.Undefined, nil
	})
	base := NewClass(ClassDefinition{Name: "Base", Constructor: baseCtor})

	var derivedCalled *shape.Object
	derivedCtor := NewNative("constructor", 1, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		inst := this.AsObject().(*shape.Object)
		// Emulates what compiled `super(args[0])` does: call the
		// superclass constructor against the same instance.
		if _, err := base.ConstructOn(inst, args); err != nil {
			return value.Undefined, err
		}
		derivedCalled = inst
		return value.Undefined, nil
	})
	derived := NewClass(ClassDefinition{Name: "Derived", Super: base, Constructor: derivedCtor})

	instVal, err := derived.Construct([]value.Value{value.Int(42)})
	require.NoError(t, err)

	inst := instVal.AsObject().(*shape.Object)
	assert.Same(t, inst, derivedCalled)
	desc, ok := inst.GetOwn(propkey.String("y"))
	require.True(t, ok)
	assert.True(t, value.StrictEquals(desc.Value, value.Int(42)))
}

func TestClassCallWithoutNewIsRejected(t *testing.T) {
	cls := NewClass(ClassDefinition{Name: "X"})
	_, err := cls.Call(value.Undefined, nil)
	assert.Error(t, err)
}

func TestClassGetterSetterAccessorPair(t *testing.T) {
	var stored value.Value
	getter := NewNative("get value", 0, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		return stored, nil
	})
	setter := NewNative("set value", 1, nil, func(this value.Value, args []value.Value) (value.Value, error) {
		stored = args[0]
		return value.Undefined, nil
	})
	cls := NewClass(ClassDefinition{
		Name: "Box",
		Methods: []MethodDefinition{
			{Key: propkey.String("value"), Kind: MethodGetter, Fn: getter, FnObject: getter.Object, Enumerable: true},
			{Key: propkey.String("value"), Kind: MethodSetter, Fn: setter, FnObject: setter.Object, Enumerable: true},
		},
	})
	instVal, err := cls.Construct(nil)
	require.NoError(t, err)
	inst := instVal.AsObject().(*shape.Object)

	ok, err := inst.Set(propkey.String("value"), value.Int(5), instVal)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := inst.Get(propkey.String("value"), instVal)
	require.NoError(t, err)
	assert.True(t, value.StrictEquals(got, value.Int(5)))
}
