package propkey

import "github.com/kristofer/jsrt/pkg/value"

// Descriptor is either a data descriptor (Value/Writable) or an accessor
// descriptor (Get/Set), both carrying Enumerable/Configurable.
type Descriptor struct {
	IsAccessor bool

	Value    value.Value
	Writable bool

	Get value.Value // callable or Undefined
	Set value.Value // callable or Undefined

	Enumerable   bool
	Configurable bool
}

// NewData builds a data descriptor with every attribute explicit, matching
// ECMAScript's "fully populated" descriptor shape.
func NewData(v value.Value, writable, enumerable, configurable bool) Descriptor {
	return Descriptor{
		Value: v, Writable: writable,
		Enumerable: enumerable, Configurable: configurable,
	}
}

// NewAccessor builds an accessor descriptor.
func NewAccessor(get, set value.Value, enumerable, configurable bool) Descriptor {
	return Descriptor{
		IsAccessor: true, Get: get, Set: set,
		Enumerable: enumerable, Configurable: configurable,
	}
}

// defaultDescriptor is what a brand new property gets before any explicit
// attributes are applied: writable=enumerable=configurable=false.
func defaultDescriptor() Descriptor {
	return Descriptor{}
}

// Define implements the merge/validation rules of OrdinaryDefineOwnProperty
// restricted to the single-property case. existing is nil for a
// not-yet-present property. incoming carries only the attributes the
// caller actually specified; incomingMask records which fields of incoming
// are meaningful, so missing attributes can "preserve the existing ones"
// instead of being read as false/zero.
type Mask struct {
	Value, Writable, Get, Set, Enumerable, Configurable bool
}

// Define returns the resulting descriptor and whether the definition is
// allowed. A disallowed definition must not mutate shape state; the caller
// decides whether that is a silent no-op or a TypeError.
func Define(existing *Descriptor, incoming Descriptor, mask Mask) (Descriptor, bool) {
	if existing == nil {
		result := defaultDescriptor()
		applyMask(&result, incoming, mask)
		return result, true
	}

	if !existing.Configurable {
		if mask.Configurable && incoming.Configurable {
			return Descriptor{}, false
		}
		if mask.Enumerable && incoming.Enumerable != existing.Enumerable {
			return Descriptor{}, false
		}
		switchingKind := mask.Get || mask.Set
		if switchingKind && !existing.IsAccessor {
			return Descriptor{}, false
		}
		if (mask.Value || mask.Writable) && existing.IsAccessor {
			return Descriptor{}, false
		}
		if !existing.IsAccessor && !existing.Writable {
			if mask.Writable && incoming.Writable {
				return Descriptor{}, false
			}
			if mask.Value && !value.SameValue(incoming.Value, existing.Value) {
				return Descriptor{}, false
			}
		}
	}

	result := *existing
	applyMask(&result, incoming, mask)
	return result, true
}

func applyMask(result *Descriptor, incoming Descriptor, mask Mask) {
	if mask.Get || mask.Set {
		result.IsAccessor = true
		result.Value = value.Undefined
		result.Writable = false
	}
	if mask.Value || mask.Writable {
		result.IsAccessor = false
		result.Get = value.Undefined
		result.Set = value.Undefined
	}
	if mask.Value {
		result.Value = incoming.Value
	}
	if mask.Writable {
		result.Writable = incoming.Writable
	}
	if mask.Get {
		result.Get = incoming.Get
	}
	if mask.Set {
		result.Set = incoming.Set
	}
	if mask.Enumerable {
		result.Enumerable = incoming.Enumerable
	}
	if mask.Configurable {
		result.Configurable = incoming.Configurable
	}
}
