package replica

import (
	"errors"

	"github.com/aethiopicuschan/lanmesh/mesh"
	"github.com/aethiopicuschan/lanmesh/metrics"
	"github.com/aethiopicuschan/lanmesh/wire"
	"go.uber.org/zap"
)

// Broadcaster is the part of an endpoint the driver needs to push state out.
type Broadcaster interface {
	SelfID() wire.PeerID
	Broadcast(p wire.Packet) error
}

// ProxyStore holds the local stand-ins for remote peers' entities.
type ProxyStore interface {
	Spawn(owner wire.PeerID)
	Despawn(owner wire.PeerID)
	// Move overwrites the proxy position and reports whether one exists.
	Move(owner wire.PeerID, pos wire.Position) bool
}

// Driver replicates transforms between the local world and the mesh.
type Driver struct {
	out      Broadcaster
	proxies  ProxyStore
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// NewDriver returns a Driver. logger and recorder may be nil.
func NewDriver(out Broadcaster, proxies ProxyStore, logger *zap.Logger, recorder *metrics.Recorder) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		out:      out,
		proxies:  proxies,
		logger:   logger,
		recorder: recorder,
	}
}

// Apply folds one tick of network events into the proxy store.
// Positions are overwritten as received; nothing is smoothed.
func (d *Driver) Apply(events *mesh.Events) {
	for ev := range events.All() {
		switch ev.Kind {
		case mesh.EventPeerConnected:
			d.proxies.Spawn(ev.Peer)
			d.logger.Debug("proxy spawned", zap.Stringer("owner", ev.Peer))
		case mesh.EventPeerDisconnected:
			d.proxies.Despawn(ev.Peer)
			d.logger.Debug("proxy despawned", zap.Stringer("owner", ev.Peer))
		case mesh.EventPeerMoved:
			if !d.proxies.Move(ev.Peer, ev.Position) {
				// update raced ahead of the introduction, or came from a stranger
				d.recorder.RecordProxyMiss()
			}
		}
	}
}

// Publish broadcasts every locally authoritative transform, unconditionally.
// There is no delta suppression, acknowledgement or retry.
func (d *Driver) Publish(authoritative []wire.Position) error {
	self := d.out.SelfID()
	if !self.IsAssigned() {
		return nil
	}

	var errs []error
	for _, pos := range authoritative {
		if err := d.out.Broadcast(wire.Transform{Origin: self, Position: pos}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
