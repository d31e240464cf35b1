package shape

import (
	"github.com/pkg/errors"

	"github.com/kristofer/jsrt/pkg/propkey"
	"github.com/kristofer/jsrt/pkg/value"
)

// Handler is the set of traps a Proxy forwards to: get/set/has/
// deleteProperty/ownKeys/getPrototypeOf/setPrototypeOf. A nil trap falls
// through to the target's own behavior, matching ECMAScript's "no trap
// defined" rule.
type Handler struct {
	Get            func(target Interface, key propkey.Key, receiver value.Value) (value.Value, error)
	Set            func(target Interface, key propkey.Key, v value.Value, receiver value.Value) (bool, error)
	Has            func(target Interface, key propkey.Key) (bool, error)
	DeleteProperty func(target Interface, key propkey.Key) (bool, error)
	OwnKeys        func(target Interface) ([]propkey.Key, error)
	GetPrototypeOf func(target Interface) (Interface, error)
	SetPrototypeOf func(target Interface, proto Interface) error
}

// Proxy implements Interface by forwarding each operation to a Handler
// trap, falling back to the target's own behavior when a trap is absent.
// Revoking a proxy (Proxy.revocable) sets a revoked flag; target and
// handler are kept, and subsequent operations fail with ErrRevokedProxy
// (GetPrototype, which has no error result, returns nil).
type Proxy struct {
	id      uint64
	target  Interface
	handler Handler
	revoked bool
}

// ErrRevokedProxy is returned by every trap once the proxy has been
// revoked.
var ErrRevokedProxy = errors.New("shape: proxy has been revoked")

// NewProxy wraps target with handler.
func NewProxy(target Interface, handler Handler) *Proxy {
	return &Proxy{id: allocObjectID(), target: target, handler: handler}
}

// Revoke permanently disables the proxy.
func (p *Proxy) Revoke() { p.revoked = true }

func (p *Proxy) ObjectID() uint64 { return p.id }
func (p *Proxy) IsCallable() bool { return p.target != nil && p.target.IsCallable() }

func (p *Proxy) Get(key propkey.Key, receiver value.Value) (value.Value, error) {
	if p.revoked {
		return value.Undefined, ErrRevokedProxy
	}
	if p.handler.Get != nil {
		return p.handler.Get(p.target, key, receiver)
	}
	return p.target.Get(key, receiver)
}

func (p *Proxy) Set(key propkey.Key, v value.Value, receiver value.Value) (bool, error) {
	if p.revoked {
		return false, ErrRevokedProxy
	}
	if p.handler.Set != nil {
		return p.handler.Set(p.target, key, v, receiver)
	}
	return p.target.Set(key, v, receiver)
}

func (p *Proxy) Has(key propkey.Key) (bool, error) {
	if p.revoked {
		return false, ErrRevokedProxy
	}
	if p.handler.Has != nil {
		return p.handler.Has(p.target, key)
	}
	return p.target.Has(key)
}

func (p *Proxy) Delete(key propkey.Key) (bool, error) {
	if p.revoked {
		return false, ErrRevokedProxy
	}
	if p.handler.DeleteProperty != nil {
		return p.handler.DeleteProperty(p.target, key)
	}
	return p.target.Delete(key)
}

// OwnPropertyKeys forwards to the ownKeys trap, validating that the result
// is a list of property keys with no duplicates (a minimal form of the
// invariant-checking ECMAScript's [[OwnPropertyKeys]] trap performs).
func (p *Proxy) OwnPropertyKeys() ([]propkey.Key, error) {
	if p.revoked {
		return nil, ErrRevokedProxy
	}
	if p.handler.OwnKeys == nil {
		return p.target.OwnPropertyKeys()
	}
	keys, err := p.handler.OwnKeys(p.target)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64]bool, len(keys))
	for _, k := range keys {
		h := k.Hash()
		if seen[h] {
			return nil, errors.New("shape: ownKeys trap result contains duplicate keys")
		}
		seen[h] = true
	}
	return keys, nil
}

func (p *Proxy) EnumerableKeys() ([]propkey.Key, error) {
	keys, err := p.OwnPropertyKeys()
	if err != nil {
		return nil, err
	}
	out := make([]propkey.Key, 0, len(keys))
	for _, k := range keys {
		if k.IsSymbol() {
			continue
		}
		if desc, ok := p.describeOwn(k); ok && !desc.Enumerable {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

func (p *Proxy) describeOwn(key propkey.Key) (propkey.Descriptor, bool) {
	if ownObj, ok := p.target.(*Object); ok {
		return ownObj.GetOwn(key)
	}
	return propkey.Descriptor{}, false
}

func (p *Proxy) GetPrototype() Interface {
	if p.revoked {
		return nil
	}
	if p.handler.GetPrototypeOf != nil {
		proto, err := p.handler.GetPrototypeOf(p.target)
		if err != nil {
			return nil
		}
		return proto
	}
	return p.target.GetPrototype()
}

func (p *Proxy) SetPrototype(proto Interface) error {
	if p.revoked {
		return ErrRevokedProxy
	}
	if p.handler.SetPrototypeOf != nil {
		return p.handler.SetPrototypeOf(p.target, proto)
	}
	if ownObj, ok := p.target.(*Object); ok {
		return ownObj.SetPrototype(proto)
	}
	return p.target.SetPrototype(proto)
}
