package shape

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/value"
)

func TestShapeCompactionPreservesOrderAndResetsTombstones(t *testing.T) {
	s := New()
	keys := make([]propkey.Key, 20)
	for i := 0; i < 20; i++ {
		keys[i] = propkey.String(fmt.Sprintf("k%d", i))
		ok := s.Define(keys[i], propkey.NewData(value.Int(int64(i)), true, true, true), propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
		require.True(t, ok)
	}

	for i := 0; i <= 18; i += 2 {
		ok := s.Delete(keys[i])
		require.True(t, ok)
	}

	k20 := propkey.String("k20")
	ok := s.Define(k20, propkey.NewData(value.Int(20), true, true, true), propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
	require.True(t, ok)

	assert.Equal(t, 0, s.DeletedCount())

	var want []propkey.Key
	for i := 1; i <= 19; i += 2 {
		want = append(want, keys[i])
	}
	want = append(want, k20)
	assert.Equal(t, want, s.OwnPropertyKeys())
}

func TestShapeDefineRejectsNonConfigurableWidening(t *testing.T) {
	s := New()
	k := propkey.String("x")
	s.Define(k, propkey.NewData(value.Int(1), false, true, false), propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})

	ok := s.Define(k, propkey.NewData(value.Int(2), true, true, false), propkey.Mask{Writable: true})
	assert.False(t, ok, "cannot flip writable:false->true on a non-configurable prop")
}

func TestShapeDeleteNonConfigurableFails(t *testing.T) {
	s := New()
	k := propkey.String("x")
	s.Define(k, propkey.NewData(value.Int(1), true, true, false), propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})
	assert.False(t, s.Delete(k))
	assert.True(t, s.Has(k))
}

func TestObjectGetSetOwnProperty(t *testing.T) {
	o := NewObject()
	k := propkey.String("a")
	self := value.Object(o)

	ok, err := o.Set(k, value.Int(1), self)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := o.Get(k, self)
	require.NoError(t, err)
	assert.True(t, value.StrictEquals(got, value.Int(1)))
}

func TestObjectGetWalksPrototypeChain(t *testing.T) {
	proto := NewObject()
	self := value.Object(proto)
	proto.Set(propkey.String("greeting"), value.String("hi"), self)

	child := NewObjectWithProto(proto)
	childSelf := value.Object(child)

	got, err := child.Get(propkey.String("greeting"), childSelf)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.AsString())

	has, err := child.Has(propkey.String("greeting"))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestObjectSetPrototypeRejectsCycle(t *testing.T) {
	a := NewObject()
	b := NewObjectWithProto(a)

	err := a.SetPrototype(b)
	assert.ErrorIs(t, err, ErrCyclicPrototype())
}

func TestObjectSetPrototypeRejectsSelfCycle(t *testing.T) {
	a := NewObject()
	err := a.SetPrototype(a)
	assert.ErrorIs(t, err, ErrCyclicPrototype())
}

func TestObjectNonWritableInheritedPropertyBlocksSet(t *testing.T) {
	proto := NewObject()
	proto.DefineOwn(propkey.String("frozen"), propkey.NewData(value.Int(1), false, true, false), propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})

	child := NewObjectWithProto(proto)
	childSelf := value.Object(child)

	ok, err := child.Set(propkey.String("frozen"), value.Int(2), childSelf)
	require.NoError(t, err)
	assert.False(t, ok)

	has, _ := child.Has(propkey.String("frozen"))
	assert.True(t, has)
	_, ownFound := child.GetOwn(propkey.String("frozen"))
	assert.False(t, ownFound, "set against a non-writable inherited prop must not shadow it on the receiver")
}

type recordingCallable struct {
	calls [][]value.Value
	ret   value.Value
}

func (r *recordingCallable) Call(this value.Value, args []value.Value) (value.Value, error) {
	r.calls = append(r.calls, args)
	return r.ret, nil
}

func TestObjectAccessorGetSetDispatch(t *testing.T) {
	o := NewObject()
	backing := value.Int(0)

	getter := &recordingCallable{ret: value.Int(42)}
	getterObj := NewObject()
	getterObj.SetCallable(getter)

	setter := &recordingCallable{}
	setterObj := NewObject()
	setterObj.SetCallable(setter)

	_ = backing
	o.DefineOwn(propkey.String("x"), propkey.NewAccessor(value.Object(getterObj), value.Object(setterObj), true, true),
		propkey.Mask{Get: true, Set: true, Enumerable: true, Configurable: true})

	self := value.Object(o)
	got, err := o.Get(propkey.String("x"), self)
	require.NoError(t, err)
	assert.True(t, value.StrictEquals(got, value.Int(42)))

	ok, err := o.Set(propkey.String("x"), value.Int(7), self)
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, setter.calls, 1)
	assert.True(t, value.StrictEquals(setter.calls[0][0], value.Int(7)))
}

func TestProxyForwardsToTargetWhenNoTrap(t *testing.T) {
	target := NewObject()
	target.DefineOwn(propkey.String("a"), propkey.NewData(value.Int(9), true, true, true), propkey.Mask{Value: true, Writable: true, Enumerable: true, Configurable: true})

	p := NewProxy(target, Handler{})
	got, err := p.Get(propkey.String("a"), value.Object(p))
	require.NoError(t, err)
	assert.True(t, value.StrictEquals(got, value.Int(9)))
}

func TestProxyGetTrapOverridesTarget(t *testing.T) {
	target := NewObject()
	p := NewProxy(target, Handler{
		Get: func(target Interface, key propkey.Key, receiver value.Value) (value.Value, error) {
			return value.String("trapped"), nil
		},
	})
	got, err := p.Get(propkey.String("anything"), value.Object(p))
	require.NoError(t, err)
	assert.Equal(t, "trapped", got.AsString())
}

func TestProxyRevokeFailsAllTraps(t *testing.T) {
	target := NewObject()
	p := NewProxy(target, Handler{})
	p.Revoke()

	_, err := p.Get(propkey.String("a"), value.Object(p))
	assert.ErrorIs(t, err, ErrRevokedProxy)

	_, err = p.Has(propkey.String("a"))
	assert.Error(t, err)
}

func TestProxyOwnKeysRejectsDuplicates(t *testing.T) {
	target := NewObject()
	p := NewProxy(target, Handler{
		OwnKeys: func(target Interface) ([]propkey.Key, error) {
			return []propkey.Key{propkey.String("a"), propkey.String("a")}, nil
		},
	})
	_, err := p.OwnPropertyKeys()
	assert.Error(t, err)
}
