// Package propkey implements canonical property keys and descriptors.
// Keys are a variant over string, non-negative integer index, and symbol;
// string keys that canonicalize to an array index collapse into the
// index variant.
package propkey

import (
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/kristofer/jsrt/pkg/value"
)

// Kind identifies which variant of Key is populated.
type Kind uint8

const (
	KindString Kind = iota
	KindIndex
	KindSymbol
)

// MaxIndex is the largest value a canonical array index key may hold
// (2^32 - 2; 2^32 - 1 is reserved as "not an index" per ECMAScript).
const MaxIndex = 1<<32 - 2

// Key is the canonical property key type.
type Key struct {
	kind Kind
	str  string
	idx  uint32
	sym  *value.Symbol
	atom uint64 // interned hash, 0 if not interned
}

// String builds a plain string-keyed Key, canonicalizing it to an index
// key if it parses as one: numeric string keys that parse as canonical
// array indices are treated as integer-index keys.
func String(s string) Key {
	if idx, ok := ParseCanonicalIndex(s); ok {
		return Index(idx)
	}
	return Key{kind: KindString, str: s}
}

// Index builds an integer-index Key directly.
func Index(i uint32) Key { return Key{kind: KindIndex, idx: i} }

// Symbol builds a symbol-keyed Key.
func Symbol(s *value.Symbol) Key { return Key{kind: KindSymbol, sym: s} }

func (k Key) Kind() Kind           { return k.kind }
func (k Key) IsString() bool       { return k.kind == KindString }
func (k Key) IsIndex() bool        { return k.kind == KindIndex }
func (k Key) IsSymbol() bool       { return k.kind == KindSymbol }
func (k Key) IndexValue() uint32   { return k.idx }
func (k Key) SymbolValue() *value.Symbol { return k.sym }

// StringValue returns the key's string form: the literal for string keys,
// the decimal spelling for index keys (for-in emits integer index keys as
// their decimal string), and the symbol's description for symbol keys
// (informational only — symbol keys are never equal to any string key).
func (k Key) StringValue() string {
	switch k.kind {
	case KindString:
		return k.str
	case KindIndex:
		return strconv.FormatUint(uint64(k.idx), 10)
	case KindSymbol:
		return k.sym.Description
	default:
		return ""
	}
}

// Equal reports whether two keys are the canonical same key.
func (k Key) Equal(other Key) bool {
	if k.kind != other.kind {
		return false
	}
	switch k.kind {
	case KindString:
		if k.atom != 0 && other.atom != 0 {
			return k.atom == other.atom && k.str == other.str
		}
		return k.str == other.str
	case KindIndex:
		return k.idx == other.idx
	case KindSymbol:
		return k.sym == other.sym
	default:
		return false
	}
}

// ParseCanonicalIndex implements CanonicalNumericIndexString restricted to
// the array-index subset: a string is an index iff it is the decimal
// representation (no leading zeros except "0" itself, no sign, no
// fractional part) of an integer in [0, 2^32-2].
func ParseCanonicalIndex(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	if s == "0" {
		return 0, true
	}
	if s[0] == '0' || s[0] < '0' || s[0] > '9' {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n > MaxIndex {
		return 0, false
	}
	return uint32(n), true
}

// ToPropertyKey implements the ToPropertyKey abstract operation: symbols
// pass through unchanged; everything else converts via
// ToPrimitive(hint=string) then ToString, canonicalizing numeric strings
// to index keys.
func ToPropertyKey(v value.Value) (Key, error) {
	if v.IsSymbol() {
		return Symbol(v.AsSymbol()), nil
	}
	s, err := value.ToPropertyKeyString(v)
	if err != nil {
		return Key{}, err
	}
	return String(s), nil
}

// AtomTable interns string keys for O(1) equality, mirroring V8/QuickJS
// atom tables. Hashing uses xxhash (github.com/cespare/xxhash/v2) so the
// interning fast-path and the sameValueZero-implies-equal-hash property
// share one hash function across the engine.
type AtomTable struct {
	byString map[string]uint64
}

// NewAtomTable creates an empty interning table.
func NewAtomTable() *AtomTable {
	return &AtomTable{byString: make(map[string]uint64)}
}

// Intern returns an interned Key for a string property name, computing
// (and caching) its xxhash atom on first use.
func (t *AtomTable) Intern(s string) Key {
	k := String(s)
	if k.kind != KindString {
		return k // already canonicalized to an index key; atoms don't apply
	}
	h, ok := t.byString[s]
	if !ok {
		h = xxhash.Sum64String(s)
		t.byString[s] = h
	}
	k.atom = h
	return k
}

// Hash returns a hash for the key consistent with SameValueZero equality:
// keys that compare Equal always hash identically. Used by the map/set
// key scheme.
func (k Key) Hash() uint64 {
	switch k.kind {
	case KindString:
		if k.atom != 0 {
			return k.atom
		}
		return xxhash.Sum64String(k.str)
	case KindIndex:
		return xxhash.Sum64String("#idx:" + strconv.FormatUint(uint64(k.idx), 10))
	case KindSymbol:
		// Pointer identity folded through its bit pattern; two distinct
		// symbols must not collide with ordinary string atoms.
		return xxhash.Sum64String("#sym:") ^ uint64(reflect.ValueOf(k.sym).Pointer())
	default:
		return 0
	}
}
