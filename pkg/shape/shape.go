// Package shape implements per-object property storage: an ordered,
// tombstone-tolerant property list with a compaction policy, plus the
// Object type that owns one.
package shape

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kristofer/jsrt/pkg/propkey"
)

// compactMinDeleted and the accompanying ratio check implement the
// compaction trigger: compaction runs once deletedCount >= 8 and
// deletedCount >= propertyCount/2.
const compactMinDeleted = 8

type entry struct {
	key  propkey.Key
	desc propkey.Descriptor
	dead bool
}

// Shape is an ordered vector of (PropertyKey, PropertyDescriptor) pairs
// with tombstones for deleted entries. A Shape belongs to exactly one
// Object, created fresh per object and never shared across objects, so
// unlike V8/QuickJS hidden classes there is no cross-object structural
// sharing here.
type Shape struct {
	entries      []entry
	deletedCount int

	// findCache memoizes key-hash -> entry-index lookups within this one
	// shape, avoiding an O(n) linear rescan on repeated get/set of the same
	// key. It is a per-shape optimization, not a shared hidden-class cache,
	// so it does not violate the "never shared across objects" invariant.
	findCache *lru.Cache[uint64, int]
}

// New creates an empty shape.
func New() *Shape {
	c, _ := lru.New[uint64, int](64)
	return &Shape{findCache: c}
}

// PropertyCount counts live+tombstone slots.
func (s *Shape) PropertyCount() int { return len(s.entries) }

// DeletedCount counts tombstones.
func (s *Shape) DeletedCount() int { return s.deletedCount }

func (s *Shape) find(key propkey.Key) int {
	if idx, ok := s.findCache.Get(key.Hash()); ok {
		if idx < len(s.entries) && !s.entries[idx].dead && s.entries[idx].key.Equal(key) {
			return idx
		}
		s.findCache.Remove(key.Hash())
	}
	for i := range s.entries {
		if !s.entries[i].dead && s.entries[i].key.Equal(key) {
			s.findCache.Add(key.Hash(), i)
			return i
		}
	}
	return -1
}

// Get returns the live descriptor for key, if any.
func (s *Shape) Get(key propkey.Key) (propkey.Descriptor, bool) {
	if i := s.find(key); i >= 0 {
		return s.entries[i].desc, true
	}
	return propkey.Descriptor{}, false
}

// Has reports whether key has a live own descriptor.
func (s *Shape) Has(key propkey.Key) bool { return s.find(key) >= 0 }

// Define applies OrdinaryDefineOwnProperty's merge/validation rules for a
// single key, appending a new entry or merging into an existing one. It
// reports whether the definition succeeded.
func (s *Shape) Define(key propkey.Key, incoming propkey.Descriptor, mask propkey.Mask) bool {
	i := s.find(key)
	var existingPtr *propkey.Descriptor
	if i >= 0 {
		existingPtr = &s.entries[i].desc
	}
	merged, ok := propkey.Define(existingPtr, incoming, mask)
	if !ok {
		return false
	}
	if i >= 0 {
		s.entries[i].desc = merged
		return true
	}
	s.findCache.Add(key.Hash(), len(s.entries))
	s.entries = append(s.entries, entry{key: key, desc: merged})
	return true
}

// Delete removes key, tombstoning it if the property is configurable.
// Deleting a non-existent key is always a success: ordinary [[Delete]] is
// a no-op success when the key is absent.
func (s *Shape) Delete(key propkey.Key) bool {
	i := s.find(key)
	if i < 0 {
		return true
	}
	if !s.entries[i].desc.Configurable {
		return false
	}
	s.entries[i].dead = true
	s.findCache.Remove(key.Hash())
	s.deletedCount++
	s.maybeCompact()
	return true
}

// maybeCompact rewrites entries in place, dropping tombstones, once the
// compaction threshold is hit. Live-key iteration order is preserved.
func (s *Shape) maybeCompact() {
	if s.deletedCount < compactMinDeleted {
		return
	}
	if s.deletedCount < s.PropertyCount()/2 {
		return
	}
	s.compact()
}

func (s *Shape) compact() {
	live := make([]entry, 0, len(s.entries)-s.deletedCount)
	for _, e := range s.entries {
		if !e.dead {
			live = append(live, e)
		}
	}
	s.entries = live
	s.deletedCount = 0
	s.findCache.Purge()
}

// OwnPropertyKeys returns all live own keys (strings, indices, and
// symbols) in insertion order, per [[OwnPropertyKeys]].
func (s *Shape) OwnPropertyKeys() []propkey.Key {
	keys := make([]propkey.Key, 0, len(s.entries)-s.deletedCount)
	for _, e := range s.entries {
		if !e.dead {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// EnumerableStringKeys returns live own string/index keys with
// Enumerable=true, skipping symbols and tombstones.
func (s *Shape) EnumerableStringKeys() []propkey.Key {
	keys := make([]propkey.Key, 0, len(s.entries))
	for _, e := range s.entries {
		if e.dead || e.key.IsSymbol() || !e.desc.Enumerable {
			continue
		}
		keys = append(keys, e.key)
	}
	return keys
}
