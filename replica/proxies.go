package replica

import (
	"cmp"
	"slices"
	"sync"

	"github.com/aethiopicuschan/lanmesh/wire"
)

// Proxies is an in-memory ProxyStore keyed by owning peer.
// It is safe for concurrent use so readers outside the tick can inspect it.
type Proxies struct {
	mu    sync.RWMutex
	byKey map[uint32]wire.Position
}

// NewProxies returns an empty store.
func NewProxies() *Proxies {
	return &Proxies{byKey: make(map[uint32]wire.Position)}
}

// Spawn creates a proxy at the origin for owner. An existing proxy keeps its position.
func (p *Proxies) Spawn(owner wire.PeerID) {
	key, ok := owner.Value()
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byKey[key]; !exists {
		p.byKey[key] = wire.Position{}
	}
}

// Despawn removes owner's proxy, if any.
func (p *Proxies) Despawn(owner wire.PeerID) {
	key, ok := owner.Value()
	if !ok {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byKey, key)
}

// Move overwrites the position of owner's proxy and reports whether it exists.
func (p *Proxies) Move(owner wire.PeerID, pos wire.Position) bool {
	key, ok := owner.Value()
	if !ok {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byKey[key]; !exists {
		return false
	}
	p.byKey[key] = pos
	return true
}

// Position returns the last received position of owner's proxy.
func (p *Proxies) Position(owner wire.PeerID) (wire.Position, bool) {
	key, ok := owner.Value()
	if !ok {
		return wire.Position{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, exists := p.byKey[key]
	return pos, exists
}

// Owners lists the peers that currently have a proxy, in ascending id order.
func (p *Proxies) Owners() []wire.PeerID {
	p.mu.RLock()
	out := make([]wire.PeerID, 0, len(p.byKey))
	for key := range p.byKey {
		out = append(out, wire.Assign(key))
	}
	p.mu.RUnlock()

	slices.SortFunc(out, func(a, b wire.PeerID) int {
		av, _ := a.Value()
		bv, _ := b.Value()
		return cmp.Compare(av, bv)
	})
	return out
}

// Len reports the number of live proxies.
func (p *Proxies) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byKey)
}
