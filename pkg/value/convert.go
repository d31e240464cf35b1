// Conversion algebra over Value.
//
// Conversions that ECMAScript specifies as throwing (e.g. converting a
// Symbol to a Number) do not reach into a Context here — pkg/value is a
// leaf package and never calls back into pkg/context. Instead they return
// a sentinel result plus a non-nil error; the caller (typically pkg/vm or
// pkg/context) is responsible for turning that error into a pending
// TypeError the way pkg/vm/errors.go wraps low-level errors with
// call-stack context.
package value

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrBadConversion is returned by conversions that ECMAScript specifies as
// throwing a TypeError (symbol->number, bigint<->number mixing, etc).
var ErrBadConversion = errors.New("value: conversion not allowed")

// ErrRangeConversion is returned by conversions that ECMAScript specifies
// as throwing a RangeError (ToIndex out of [0, 2^53-1], etc).
var ErrRangeConversion = errors.New("value: conversion out of range")

// ToBoolean implements the ToBoolean abstract operation. It never fails.
func ToBoolean(v Value) bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBoolean:
		return v.AsBool()
	case KindNumber:
		return v.num != 0 && !math.IsNaN(v.num)
	case KindBigInt:
		return v.big.Sign() != 0
	case KindString:
		return len(v.str) > 0
	case KindSymbol, KindObject:
		return true
	default:
		return false
	}
}

// ToNumber implements the ToNumber abstract operation.
// Symbols cannot convert to Number and yield ErrBadConversion; bigints
// likewise do not implicitly convert (ECMAScript throws TypeError there).
func ToNumber(v Value) (Value, error) {
	switch v.kind {
	case KindUndefined:
		return Number(math.NaN()), nil
	case KindNull:
		return Number(0), nil
	case KindBoolean:
		if v.AsBool() {
			return Number(1), nil
		}
		return Number(0), nil
	case KindNumber:
		return v, nil
	case KindString:
		return Number(stringToNumber(v.str)), nil
	case KindBigInt:
		return Number(math.NaN()), ErrBadConversion
	case KindSymbol:
		return Number(math.NaN()), ErrBadConversion
	case KindObject:
		prim, err := ToPrimitive(v, HintNumber)
		if err != nil {
			return Number(math.NaN()), err
		}
		if prim.kind == KindObject {
			return Number(math.NaN()), ErrBadConversion
		}
		return ToNumber(prim)
	default:
		return Number(math.NaN()), ErrBadConversion
	}
}

// stringToNumber parses a string per the ECMAScript StringToNumber grammar:
// decimal, hex (0x/0X), octal (0o/0O), binary (0b/0B); empty or
// whitespace-only input converts to +0; anything malformed converts to NaN.
func stringToNumber(s string) float64 {
	t := strings.TrimFunc(s, isJSWhitespace)
	if t == "" {
		return 0
	}
	sign := 1.0
	rest := t
	switch {
	case strings.HasPrefix(rest, "+"):
		rest = rest[1:]
	case strings.HasPrefix(rest, "-"):
		sign = -1
		rest = rest[1:]
	}
	lower := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(lower, "0x"):
		n, err := strconv.ParseUint(rest[2:], 16, 64)
		if err != nil || rest == "0x" || rest == "0X" {
			return math.NaN()
		}
		return sign * float64(n)
	case strings.HasPrefix(lower, "0o"):
		n, err := strconv.ParseUint(rest[2:], 8, 64)
		if err != nil {
			return math.NaN()
		}
		return sign * float64(n)
	case strings.HasPrefix(lower, "0b"):
		n, err := strconv.ParseUint(rest[2:], 2, 64)
		if err != nil {
			return math.NaN()
		}
		return sign * float64(n)
	case lower == "infinity":
		return sign * math.Inf(1)
	}
	f, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return math.NaN()
	}
	return sign * f
}

func isJSWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', 0xFEFF, 0x00A0:
		return true
	}
	return false
}

// ToInteger implements ToIntegerOrInfinity: NaN becomes 0, infinities are
// preserved, finite numbers are truncated toward zero.
func ToInteger(v Value) (float64, error) {
	n, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	f := n.AsNumber()
	if math.IsNaN(f) {
		return 0, nil
	}
	if math.IsInf(f, 0) {
		return f, nil
	}
	return math.Trunc(f), nil
}

// ToLength clamps ToInteger into [0, 2^53-1].
func ToLength(v Value) (int64, error) {
	f, err := ToInteger(v)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, nil
	}
	const maxLength = 1<<53 - 1
	if f > maxLength {
		return maxLength, nil
	}
	return int64(f), nil
}

// ToIndex implements ToIndex: an integer in [0, 2^53-1], signaling
// ErrRangeConversion otherwise.
func ToIndex(v Value) (int64, error) {
	f, err := ToInteger(v)
	if err != nil {
		return 0, err
	}
	const maxIndex = 1<<53 - 1
	if f < 0 || f > maxIndex {
		return 0, ErrRangeConversion
	}
	return int64(f), nil
}

// ToBigInt64 narrows a bigint value modulo 2^64 then sign-extends into an
// int64.
func ToBigInt64(v Value) (int64, error) {
	if v.kind != KindBigInt {
		return 0, ErrBadConversion
	}
	mod := new(big.Int).Mod(v.big, new(big.Int).Lsh(big.NewInt(1), 64))
	u := mod.Uint64()
	return int64(u), nil
}

// ToString implements the ToString abstract operation.
func ToString(v Value) (string, error) {
	switch v.kind {
	case KindUndefined:
		return "undefined", nil
	case KindNull:
		return "null", nil
	case KindBoolean:
		if v.AsBool() {
			return "true", nil
		}
		return "false", nil
	case KindNumber:
		return NumberToString(v.num), nil
	case KindBigInt:
		return v.big.String(), nil
	case KindString:
		return v.str, nil
	case KindSymbol:
		return "", ErrBadConversion
	case KindObject:
		prim, err := ToPrimitive(v, HintString)
		if err != nil {
			return "", err
		}
		if prim.kind == KindObject {
			return "", ErrBadConversion
		}
		return ToString(prim)
	default:
		return "", ErrBadConversion
	}
}

// NumberToString formats a float64 the way ECMAScript's Number::toString
// does for radix 10: shortest round-tripping digits, plain decimal
// notation for decimal exponents -6 through 20, otherwise "1.5e+21"/"1e-7" style
// exponent notation, and "NaN"/"Infinity"/"-Infinity" spelled out.
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "0" // ECMAScript prints -0 as "0" when stringified
		}
		return "0"
	}
	if f < 0 {
		return "-" + NumberToString(-f)
	}
	mant, expStr, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mant, ".", "", 1)
	e, _ := strconv.Atoi(expStr)
	switch n := e + 1; {
	case len(digits) <= n && n <= 21:
		return digits + strings.Repeat("0", n-len(digits))
	case 0 < n && n <= 21:
		return digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return "0." + strings.Repeat("0", -n) + digits
	}
	return digits[:1] + strings.TrimSuffix("."+digits[1:], ".") + fmt.Sprintf("e%+d", e)
}

// ToPrimitiveHint selects OrdinaryToPrimitive's method-try order.
type ToPrimitiveHint int

const (
	HintDefault ToPrimitiveHint = iota
	HintNumber
	HintString
)

// Primitiver lets an object participate in ToPrimitive without pkg/value
// depending on pkg/shape: objects implementing this interface get first
// refusal; objects that don't fall back to ErrBadConversion (callers in
// pkg/shape/pkg/context are expected to implement it on every object kind
// that has a [Symbol.toPrimitive], a valueOf, or a toString).
type Primitiver interface {
	ToPrimitive(hint ToPrimitiveHint) (Value, error)
}

// ToPrimitive implements the ToPrimitive abstract operation. Non-objects
// are already primitive. Objects must implement Primitiver.
func ToPrimitive(v Value, hint ToPrimitiveHint) (Value, error) {
	if v.kind != KindObject {
		return v, nil
	}
	if p, ok := v.obj.(Primitiver); ok {
		return p.ToPrimitive(hint)
	}
	return Value{}, fmt.Errorf("%w: object has no ToPrimitive", ErrBadConversion)
}

// ToPropertyKeyString converts a non-symbol value to the string used as a
// property key's source text. Symbols are not handled here — callers
// check IsSymbol first and use the symbol identity directly.
func ToPropertyKeyString(v Value) (string, error) {
	prim, err := ToPrimitive(v, HintString)
	if err != nil {
		return "", err
	}
	return ToString(prim)
}

// ToObjectKind reports whether a value's ToObject operation would throw
// (undefined/null are the only values that cannot become objects).
func ToObjectKind(v Value) error {
	if v.IsNullOrUndefined() {
		return ErrBadConversion
	}
	return nil
}

// SameValue implements the SameValue algorithm: like ===, except NaN
// equals NaN and +0 does not equal -0.
func SameValue(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNumber:
		if math.IsNaN(a.num) && math.IsNaN(b.num) {
			return true
		}
		if a.num == 0 && b.num == 0 {
			return math.Signbit(a.num) == math.Signbit(b.num)
		}
		return a.num == b.num
	case KindBigInt:
		return a.big.Cmp(b.big) == 0
	case KindString:
		return a.str == b.str
	case KindBoolean:
		return a.num == b.num
	case KindSymbol:
		return a.sym == b.sym
	case KindObject:
		return a.obj != nil && b.obj != nil && a.obj.ObjectID() == b.obj.ObjectID()
	case KindUndefined, KindNull:
		return true
	default:
		return false
	}
}

// SameValueZero differs from SameValue only in that +0 and -0 compare
// equal (used by Map/Set/WeakMap key equality and Array.prototype.includes).
func SameValueZero(a, b Value) bool {
	if a.kind == KindNumber && b.kind == KindNumber {
		if math.IsNaN(a.num) && math.IsNaN(b.num) {
			return true
		}
		return a.num == b.num
	}
	return SameValue(a, b)
}

// StrictEquals implements ===. It differs from SameValue only at NaN
// (unequal here) and ±0 (equal here).
func StrictEquals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindNumber {
		return a.num == b.num // Go's == already gives NaN!=NaN and +0==-0
	}
	return SameValue(a, b)
}

// LooseEquals implements the abstract == algorithm, including the classic
// type-coercing cases (number/string, boolean, object-to-primitive).
func LooseEquals(a, b Value) (bool, error) {
	if a.kind == b.kind {
		return StrictEquals(a, b), nil
	}
	if a.IsNullOrUndefined() && b.IsNullOrUndefined() {
		return true, nil
	}
	if a.IsNullOrUndefined() || b.IsNullOrUndefined() {
		return false, nil
	}
	if a.kind == KindNumber && b.kind == KindString {
		bn, err := ToNumber(b)
		if err != nil {
			return false, err
		}
		return StrictEquals(a, bn), nil
	}
	if a.kind == KindString && b.kind == KindNumber {
		return LooseEquals(b, a)
	}
	if a.kind == KindBigInt && b.kind == KindString {
		bi, ok := new(big.Int).SetString(strings.TrimSpace(b.str), 10)
		if !ok {
			return false, nil
		}
		return a.big.Cmp(bi) == 0, nil
	}
	if a.kind == KindString && b.kind == KindBigInt {
		return LooseEquals(b, a)
	}
	if a.kind == KindBoolean {
		an, err := ToNumber(a)
		if err != nil {
			return false, err
		}
		return LooseEquals(an, b)
	}
	if b.kind == KindBoolean {
		return LooseEquals(b, a)
	}
	if (a.kind == KindNumber || a.kind == KindBigInt || a.kind == KindString || a.kind == KindSymbol) && b.kind == KindObject {
		bp, err := ToPrimitive(b, HintDefault)
		if err != nil {
			return false, err
		}
		return LooseEquals(a, bp)
	}
	if a.kind == KindObject && (b.kind == KindNumber || b.kind == KindBigInt || b.kind == KindString || b.kind == KindSymbol) {
		return LooseEquals(b, a)
	}
	if a.kind == KindBigInt && b.kind == KindNumber || a.kind == KindNumber && b.kind == KindBigInt {
		var bi *big.Int
		var num float64
		if a.kind == KindBigInt {
			bi, num = a.big, b.num
		} else {
			bi, num = b.big, a.num
		}
		if math.IsNaN(num) || math.IsInf(num, 0) || num != math.Trunc(num) {
			return false, nil
		}
		nb := new(big.Int)
		big.NewFloat(num).Int(nb)
		return bi.Cmp(nb) == 0, nil
	}
	return false, nil
}
