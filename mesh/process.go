package mesh

import (
	"net/netip"
	"slices"

	"github.com/aethiopicuschan/lanmesh/metrics"
	"github.com/aethiopicuschan/lanmesh/wire"
	"go.uber.org/zap"
)

// Process is the per-tick pump.
//
// It resets events, drains every pending datagram through the handshake
// rules, then runs the heartbeat and eviction sweep. With no socket bound it
// only delivers notifications left by Connect or Close.
func (e *Endpoint) Process(events *Events) {
	events.Reset()
	for _, ev := range e.pending {
		events.Push(ev)
	}
	e.pending = e.pending[:0]

	if e.conn == nil {
		return
	}
	e.drain(events)
	e.sweep(events)
	e.recorder.SetPeers(len(e.peers))
}

func (e *Endpoint) handle(pkt wire.Packet, from netip.AddrPort, events *Events) {
	switch p := pkt.(type) {
	case wire.ConnectionRequest:
		e.onRequest(from, events)
	case wire.ConnectionAcknowledge:
		e.onAcknowledge(p, from, events)
	case wire.ConnectionRedirect:
		e.onRedirect(p, from)
	case wire.ConnectionNew:
		e.onNew(p, from, events)
	case wire.ConnectionDelete:
		e.onDelete(p, from, events)
	case wire.ConnectionHeartbeat:
		if i := e.peerIndexByID(p.Origin); i >= 0 {
			e.peers[i].LastSeen = e.opts.now()
		}
	case wire.Transform:
		events.Push(Event{Kind: EventPeerMoved, Peer: p.Origin, Position: p.Position})
	}
}

// onRequest admits a joiner, or redirects it when we are not the host.
func (e *Endpoint) onRequest(from netip.AddrPort, events *Events) {
	if e.connecting || e.peerIndexByAddr(from) >= 0 {
		e.recorder.RecordDrop(metrics.DropRole)
		return
	}

	if e.hostID.IsAssigned() {
		host, ok := e.hostRecord()
		if !ok {
			return
		}
		_ = e.send(wire.ConnectionRedirect{Host: host.Addr}, from)
		e.recorder.RecordHandshake("redirected")
		e.logger.Debug("redirected joiner to host",
			zap.Stringer("joiner", from),
			zap.Stringer("host", host.Addr),
		)
		return
	}

	id := wire.Allocate(e.opts.nextID, e.taken)
	_ = e.send(wire.ConnectionAcknowledge{Origin: e.selfID, Assigned: id}, from)

	// introduce the newcomer and the existing members to each other
	for _, peer := range e.peers {
		_ = e.send(wire.ConnectionNew{Peer: peer.ID, Addr: peer.Addr}, from)
		_ = e.send(wire.ConnectionNew{Peer: id, Addr: from}, peer.Addr)
	}

	e.peers = append(e.peers, PeerRecord{ID: id, Addr: from, LastSeen: e.opts.now()})
	events.Push(Event{Kind: EventPeerConnected, Peer: id})
	e.recorder.RecordHandshake("admitted")
	e.logger.Info("peer admitted", zap.Stringer("peer", id), zap.Stringer("addr", from))
}

// onAcknowledge concludes our own join.
func (e *Endpoint) onAcknowledge(p wire.ConnectionAcknowledge, from netip.AddrPort, events *Events) {
	if e.hostID.IsAssigned() || !e.connecting {
		e.recorder.RecordDrop(metrics.DropRole)
		return
	}

	e.selfID = p.Assigned
	e.hostID = p.Origin
	e.connecting = false
	e.peers = append(e.peers, PeerRecord{ID: p.Origin, Addr: from, LastSeen: e.opts.now()})

	events.Push(Event{Kind: EventPeerConnected, Peer: p.Origin})
	e.recorder.RecordHandshake("joined")
	e.logger.Info("joined mesh",
		zap.Stringer("self", e.selfID),
		zap.Stringer("host", e.hostID),
		zap.Stringer("addr", from),
	)
}

func (e *Endpoint) onRedirect(p wire.ConnectionRedirect, from netip.AddrPort) {
	if e.hostID.IsAssigned() {
		e.recorder.RecordDrop(metrics.DropRole)
		return
	}
	e.logger.Debug("following redirect", zap.Stringer("via", from), zap.Stringer("host", p.Host))
	_ = e.send(wire.ConnectionRequest{}, p.Host)
}

// onNew accepts a mesh introduction from our host.
func (e *Endpoint) onNew(p wire.ConnectionNew, from netip.AddrPort, events *Events) {
	if !e.fromHost(from) {
		e.recorder.RecordDrop(metrics.DropRole)
		return
	}
	if e.taken(p.Peer) {
		return
	}

	e.peers = append(e.peers, PeerRecord{ID: p.Peer, Addr: p.Addr, LastSeen: e.opts.now()})
	events.Push(Event{Kind: EventPeerConnected, Peer: p.Peer})
	e.recorder.RecordHandshake("introduced")
	e.logger.Info("peer introduced", zap.Stringer("peer", p.Peer), zap.Stringer("addr", p.Addr))
}

// onDelete applies an eviction decided by our host.
func (e *Endpoint) onDelete(p wire.ConnectionDelete, from netip.AddrPort, events *Events) {
	if !e.fromHost(from) {
		e.recorder.RecordDrop(metrics.DropRole)
		return
	}
	i := e.peerIndexByID(p.Peer)
	if i < 0 {
		return
	}

	e.peers = slices.Delete(e.peers, i, i+1)
	events.Push(Event{Kind: EventPeerDisconnected, Peer: p.Peer})
	e.logger.Info("peer removed by host", zap.Stringer("peer", p.Peer))
}

// sweep evicts silent peers (host only) and heartbeats the rest.
func (e *Endpoint) sweep(events *Events) {
	now := e.opts.now()

	for i := 0; i < len(e.peers); {
		peer := e.peers[i]
		if now.Sub(peer.LastSeen) < e.opts.disconnectTimeout {
			_ = e.send(wire.ConnectionHeartbeat{Origin: e.selfID}, peer.Addr)
			i++
			continue
		}

		if e.hostID.IsAssigned() {
			// only the host may evict
			i++
			continue
		}

		e.peers = slices.Delete(e.peers, i, i+1)
		_ = e.Broadcast(wire.ConnectionDelete{Peer: peer.ID})
		events.Push(Event{Kind: EventPeerDisconnected, Peer: peer.ID})
		e.recorder.RecordEviction()
		e.logger.Info("peer evicted",
			zap.Stringer("peer", peer.ID),
			zap.Stringer("addr", peer.Addr),
			zap.Duration("silent_for", now.Sub(peer.LastSeen)),
		)
	}
}
