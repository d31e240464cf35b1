// Package buffer implements ArrayBuffer, the typed-array family, and
// DataView: the binary data layer backing TypedArray-typed shape.Objects.
package buffer

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ArrayBuffer is a fixed-length raw byte region. Detaching is one-way:
// once Detach is called every view over the buffer must treat it as
// zero-length.
type ArrayBuffer struct {
	data     []byte
	detached bool
	shared   bool // SharedArrayBuffer: detach is refused, growth is monotonic
}

// NewArrayBuffer allocates a zero-filled buffer of byteLength bytes.
func NewArrayBuffer(byteLength int) *ArrayBuffer {
	return &ArrayBuffer{data: make([]byte, byteLength)}
}

// NewSharedArrayBuffer allocates a zero-filled shared buffer.
func NewSharedArrayBuffer(byteLength int) *ArrayBuffer {
	return &ArrayBuffer{data: make([]byte, byteLength), shared: true}
}

func (b *ArrayBuffer) ByteLength() int {
	if b.detached {
		return 0
	}
	return len(b.data)
}

func (b *ArrayBuffer) IsDetached() bool { return b.detached }
func (b *ArrayBuffer) IsShared() bool   { return b.shared }

// ErrDetached is returned by any operation against a detached buffer.
var ErrDetached = errors.New("buffer: operation on a detached ArrayBuffer")

// ErrSharedNotDetachable is returned by Detach on a SharedArrayBuffer.
var ErrSharedNotDetachable = errors.New("buffer: SharedArrayBuffer cannot be detached")

// Detach transfers the buffer's storage away, leaving it permanently
// zero-length (used by structured-clone transfer and postMessage).
func (b *ArrayBuffer) Detach() error {
	if b.shared {
		return ErrSharedNotDetachable
	}
	b.data = nil
	b.detached = true
	return nil
}

// Bytes returns the live backing slice. Callers must not retain it across
// a Detach call.
func (b *ArrayBuffer) Bytes() ([]byte, error) {
	if b.detached {
		return nil, ErrDetached
	}
	return b.data, nil
}

// Slice returns a copy of [start, end) as a new, independent ArrayBuffer
// (ArrayBuffer.prototype.slice).
func (b *ArrayBuffer) Slice(start, end int) (*ArrayBuffer, error) {
	if b.detached {
		return nil, ErrDetached
	}
	if start < 0 || end > len(b.data) || start > end {
		return nil, errors.New("buffer: slice range out of bounds")
	}
	out := make([]byte, end-start)
	copy(out, b.data[start:end])
	return &ArrayBuffer{data: out}, nil
}

// ElementKind identifies one of the twelve typed-array element types.
type ElementKind uint8

const (
	Int8Kind ElementKind = iota
	Uint8Kind
	Uint8ClampedKind
	Int16Kind
	Uint16Kind
	Int32Kind
	Uint32Kind
	Float16Kind
	Float32Kind
	Float64Kind
	BigInt64Kind
	BigUint64Kind
)

// BytesPerElement returns the element size for a kind.
func (k ElementKind) BytesPerElement() int {
	switch k {
	case Int8Kind, Uint8Kind, Uint8ClampedKind:
		return 1
	case Int16Kind, Uint16Kind, Float16Kind:
		return 2
	case Int32Kind, Uint32Kind, Float32Kind:
		return 4
	case Float64Kind, BigInt64Kind, BigUint64Kind:
		return 8
	default:
		return 1
	}
}

func (k ElementKind) IsBigInt() bool { return k == BigInt64Kind || k == BigUint64Kind }

// Name returns the JS-visible constructor name for the kind (e.g.
// "Int32Array"), used to label a TypedArrayConstructor's `name` property
// and its error messages.
func (k ElementKind) Name() string {
	switch k {
	case Int8Kind:
		return "Int8Array"
	case Uint8Kind:
		return "Uint8Array"
	case Uint8ClampedKind:
		return "Uint8ClampedArray"
	case Int16Kind:
		return "Int16Array"
	case Uint16Kind:
		return "Uint16Array"
	case Int32Kind:
		return "Int32Array"
	case Uint32Kind:
		return "Uint32Array"
	case Float16Kind:
		return "Float16Array"
	case Float32Kind:
		return "Float32Array"
	case Float64Kind:
		return "Float64Array"
	case BigInt64Kind:
		return "BigInt64Array"
	case BigUint64Kind:
		return "BigUint64Array"
	default:
		return "TypedArray"
	}
}

// TypedArray is a typed view over an ArrayBuffer: a kind, a byte offset,
// and an element length. All element access goes through the buffer's
// live bytes, so detaching the underlying buffer is observable immediately
// (length reads back as 0).
type TypedArray struct {
	kind   ElementKind
	buf    *ArrayBuffer
	offset int
	length int // element count
}

// ErrOutOfBounds is returned by element access outside [0, length).
var ErrOutOfBounds = errors.New("buffer: typed array index out of bounds")

// NewTypedArray constructs a view of length elements of kind over buf
// starting at byteOffset.
func NewTypedArray(kind ElementKind, buf *ArrayBuffer, byteOffset, length int) (*TypedArray, error) {
	elemSize := kind.BytesPerElement()
	if byteOffset%elemSize != 0 {
		return nil, errors.New("buffer: byteOffset must be a multiple of the element size")
	}
	if byteOffset+length*elemSize > buf.ByteLength() {
		return nil, ErrOutOfBounds
	}
	return &TypedArray{kind: kind, buf: buf, offset: byteOffset, length: length}, nil
}

// NewTypedArrayFromLength allocates a fresh backing ArrayBuffer sized for
// length elements of kind (the `new Int32Array(n)` constructor form).
func NewTypedArrayFromLength(kind ElementKind, length int) *TypedArray {
	buf := NewArrayBuffer(length * kind.BytesPerElement())
	return &TypedArray{kind: kind, buf: buf, length: length}
}

// NewTypedArrayFromValues builds a typed array from a Go float64 slice
// (the `new Int32Array([...])` / iterable / array-like constructor forms
// funnel through here once the caller has produced a flat number list).
func NewTypedArrayFromValues(kind ElementKind, values []float64) *TypedArray {
	ta := NewTypedArrayFromLength(kind, len(values))
	for i, v := range values {
		ta.SetFloat(i, v)
	}
	return ta
}

func (t *TypedArray) Kind() ElementKind { return t.kind }
func (t *TypedArray) Length() int {
	if t.buf.IsDetached() {
		return 0
	}
	return t.length
}
func (t *TypedArray) Buffer() *ArrayBuffer { return t.buf }
func (t *TypedArray) ByteOffset() int      { return t.offset }

func (t *TypedArray) elemBytes(i int) ([]byte, error) {
	if i < 0 || i >= t.Length() {
		return nil, ErrOutOfBounds
	}
	bs, err := t.buf.Bytes()
	if err != nil {
		return nil, err
	}
	size := t.kind.BytesPerElement()
	start := t.offset + i*size
	return bs[start : start+size], nil
}

// GetFloat reads element i as a float64, clamped/rounded representations
// read back as already-clamped values (Uint8Clamped stores the clamped
// byte, so reading it back is a plain widen).
func (t *TypedArray) GetFloat(i int) (float64, error) {
	b, err := t.elemBytes(i)
	if err != nil {
		return 0, err
	}
	switch t.kind {
	case Int8Kind:
		return float64(int8(b[0])), nil
	case Uint8Kind, Uint8ClampedKind:
		return float64(b[0]), nil
	case Int16Kind:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case Uint16Kind:
		return float64(binary.LittleEndian.Uint16(b)), nil
	case Float16Kind:
		return float16ToFloat64(binary.LittleEndian.Uint16(b)), nil
	case Int32Kind:
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	case Uint32Kind:
		return float64(binary.LittleEndian.Uint32(b)), nil
	case Float32Kind:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case Float64Kind:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	default:
		return 0, errors.New("buffer: GetFloat on a BigInt-kind typed array")
	}
}

// SetFloat writes element i from a float64, applying the element kind's
// narrowing/clamping rule (Uint8Clamped rounds half-to-even and saturates
// to [0,255]; the integer kinds wrap modulo their width per ECMAScript's
// ToIntN/ToUintN).
func (t *TypedArray) SetFloat(i int, v float64) error {
	b, err := t.elemBytes(i)
	if err != nil {
		return err
	}
	switch t.kind {
	case Int8Kind:
		b[0] = byte(int8(toIntN(v, 8)))
	case Uint8Kind:
		b[0] = byte(toUintN(v, 8))
	case Uint8ClampedKind:
		b[0] = clampUint8(v)
	case Int16Kind:
		binary.LittleEndian.PutUint16(b, uint16(toIntN(v, 16)))
	case Uint16Kind:
		binary.LittleEndian.PutUint16(b, uint16(toUintN(v, 16)))
	case Float16Kind:
		binary.LittleEndian.PutUint16(b, float64ToFloat16(v))
	case Int32Kind:
		binary.LittleEndian.PutUint32(b, uint32(toIntN(v, 32)))
	case Uint32Kind:
		binary.LittleEndian.PutUint32(b, uint32(toUintN(v, 32)))
	case Float32Kind:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	case Float64Kind:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	default:
		return errors.New("buffer: SetFloat on a BigInt-kind typed array")
	}
	return nil
}

// GetBigInt64 reads a BigInt64Kind/BigUint64Kind element as a raw int64
// (the sign interpretation is the caller's responsibility for unsigned).
func (t *TypedArray) GetBigInt64(i int) (int64, error) {
	b, err := t.elemBytes(i)
	if err != nil {
		return 0, err
	}
	if !t.kind.IsBigInt() {
		return 0, errors.New("buffer: GetBigInt64 on a non-BigInt typed array")
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// SetBigInt64 writes a raw 64-bit pattern into a BigInt64Kind/BigUint64Kind
// element.
func (t *TypedArray) SetBigInt64(i int, v int64) error {
	b, err := t.elemBytes(i)
	if err != nil {
		return err
	}
	if !t.kind.IsBigInt() {
		return errors.New("buffer: SetBigInt64 on a non-BigInt typed array")
	}
	binary.LittleEndian.PutUint64(b, uint64(v))
	return nil
}

func toIntN(v float64, bits uint) int64 {
	u := toUintN(v, bits)
	signBit := uint64(1) << (bits - 1)
	mod := uint64(1) << bits
	if u&signBit != 0 {
		return int64(u) - int64(mod)
	}
	return int64(u)
}

func toUintN(v float64, bits uint) uint64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	mod := uint64(1) << bits
	t := math.Trunc(v)
	i := math.Mod(t, float64(mod))
	if i < 0 {
		i += float64(mod)
	}
	return uint64(i)
}

// clampUint8 implements ClampTo(0, 255, round-half-to-even) for
// Uint8ClampedArray element writes.
func clampUint8(v float64) byte {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(math.RoundToEven(v))
}

func float16ToFloat64(h uint16) float64 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff
	var f32 uint32
	switch exp {
	case 0:
		if frac == 0 {
			f32 = sign << 31
		} else {
			e := -1
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3ff
			f32 = sign<<31 | uint32(127+e-15+1)<<23 | frac<<13
		}
	case 0x1f:
		f32 = sign<<31 | 0xff<<23 | frac<<13
	default:
		f32 = sign<<31 | (exp-15+127)<<23 | frac<<13
	}
	return float64(math.Float32frombits(f32))
}

func float64ToFloat16(v float64) uint16 {
	f32 := float32(v)
	bits := math.Float32bits(f32)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23)&0xff - 127 + 15
	frac := bits & 0x7fffff
	switch {
	case math.IsNaN(float64(f32)):
		return sign | 0x7e00
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		return sign
	default:
		return sign | uint16(exp)<<10 | uint16(frac>>13)
	}
}

// DataView reads/writes an ArrayBuffer region with a per-call endianness
// choice, independent of any typed-array element kind.
type DataView struct {
	buf    *ArrayBuffer
	offset int
	length int
}

// NewDataView constructs a view over [byteOffset, byteOffset+byteLength)
// of buf.
func NewDataView(buf *ArrayBuffer, byteOffset, byteLength int) (*DataView, error) {
	if byteOffset+byteLength > buf.ByteLength() {
		return nil, ErrOutOfBounds
	}
	return &DataView{buf: buf, offset: byteOffset, length: byteLength}, nil
}

func (d *DataView) bytesAt(offset, size int) ([]byte, error) {
	if offset < 0 || offset+size > d.length {
		return nil, ErrOutOfBounds
	}
	bs, err := d.buf.Bytes()
	if err != nil {
		return nil, err
	}
	start := d.offset + offset
	return bs[start : start+size], nil
}

func order(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (d *DataView) GetInt32(byteOffset int, littleEndian bool) (int32, error) {
	b, err := d.bytesAt(byteOffset, 4)
	if err != nil {
		return 0, err
	}
	return int32(order(littleEndian).Uint32(b)), nil
}

func (d *DataView) SetInt32(byteOffset int, v int32, littleEndian bool) error {
	b, err := d.bytesAt(byteOffset, 4)
	if err != nil {
		return err
	}
	order(littleEndian).PutUint32(b, uint32(v))
	return nil
}

func (d *DataView) GetUint8(byteOffset int) (uint8, error) {
	b, err := d.bytesAt(byteOffset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *DataView) SetUint8(byteOffset int, v uint8) error {
	b, err := d.bytesAt(byteOffset, 1)
	if err != nil {
		return err
	}
	b[0] = v
	return nil
}

func (d *DataView) GetFloat64(byteOffset int, littleEndian bool) (float64, error) {
	b, err := d.bytesAt(byteOffset, 8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(order(littleEndian).Uint64(b)), nil
}

func (d *DataView) SetFloat64(byteOffset int, v float64, littleEndian bool) error {
	b, err := d.bytesAt(byteOffset, 8)
	if err != nil {
		return err
	}
	order(littleEndian).PutUint64(b, math.Float64bits(v))
	return nil
}

func (d *DataView) ByteLength() int { return d.length }
