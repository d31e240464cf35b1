package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataViewEndianness(t *testing.T) {
	buf := NewArrayBuffer(4)
	data, _ := buf.Bytes()
	copy(data, []byte{0x01, 0x02, 0x03, 0x04})

	dv, err := NewDataView(buf, 0, 4)
	require.NoError(t, err)

	little, err := dv.GetInt32(0, true)
	require.NoError(t, err)
	assert.EqualValues(t, 0x04030201, little)

	big, err := dv.GetInt32(0, false)
	require.NoError(t, err)
	assert.EqualValues(t, 0x01020304, big)
}

func TestDataViewOutOfBounds(t *testing.T) {
	buf := NewArrayBuffer(2)
	dv, err := NewDataView(buf, 0, 2)
	require.NoError(t, err)
	_, err = dv.GetInt32(0, true)
	assert.Error(t, err)
}

func TestDetachZeroesLength(t *testing.T) {
	buf := NewArrayBuffer(8)
	ta, err := NewTypedArray(Uint8Kind, buf, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, ta.Length())

	require.NoError(t, buf.Detach())
	assert.Equal(t, 0, ta.Length())
	assert.True(t, buf.IsDetached())

	_, err = ta.GetFloat(0)
	assert.Error(t, err)
}

func TestSharedArrayBufferCannotDetach(t *testing.T) {
	buf := NewSharedArrayBuffer(4)
	assert.ErrorIs(t, buf.Detach(), ErrSharedNotDetachable)
}

func TestUint8ClampedRoundsHalfToEvenAndSaturates(t *testing.T) {
	ta := NewTypedArrayFromLength(Uint8ClampedKind, 4)
	require.NoError(t, ta.SetFloat(0, -10))
	require.NoError(t, ta.SetFloat(1, 300))
	require.NoError(t, ta.SetFloat(2, 2.5))
	require.NoError(t, ta.SetFloat(3, 3.5))

	v0, _ := ta.GetFloat(0)
	v1, _ := ta.GetFloat(1)
	v2, _ := ta.GetFloat(2)
	v3, _ := ta.GetFloat(3)
	assert.Equal(t, 0.0, v0)
	assert.Equal(t, 255.0, v1)
	assert.Equal(t, 2.0, v2, "round-half-to-even rounds 2.5 down to 2")
	assert.Equal(t, 4.0, v3, "round-half-to-even rounds 3.5 up to 4")
}

func TestInt32ArrayWrapsModulo2To32(t *testing.T) {
	ta := NewTypedArrayFromLength(Int32Kind, 1)
	require.NoError(t, ta.SetFloat(0, 4294967296+5))
	v, _ := ta.GetFloat(0)
	assert.Equal(t, 5.0, v)
}

func TestBigInt64RoundTrip(t *testing.T) {
	ta := NewTypedArrayFromLength(BigInt64Kind, 2)
	require.NoError(t, ta.SetBigInt64(0, -1))
	require.NoError(t, ta.SetBigInt64(1, 42))
	v0, err := ta.GetBigInt64(0)
	require.NoError(t, err)
	assert.EqualValues(t, -1, v0)
	v1, err := ta.GetBigInt64(1)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v1)
}

func TestFloat16RoundTrip(t *testing.T) {
	ta := NewTypedArrayFromLength(Float16Kind, 1)
	require.NoError(t, ta.SetFloat(0, 1.5))
	v, err := ta.GetFloat(0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)
}

func TestTypedArrayViewOverBufferRespectsOffset(t *testing.T) {
	buf := NewArrayBuffer(8)
	ta, err := NewTypedArray(Uint32Kind, buf, 4, 1)
	require.NoError(t, err)
	require.NoError(t, ta.SetFloat(0, 7))

	data, _ := buf.Bytes()
	assert.Equal(t, []byte{0, 0, 0, 0, 7, 0, 0, 0}, data)
}
