package mesh

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/aethiopicuschan/lanmesh/metrics"
	"github.com/aethiopicuschan/lanmesh/wire"
	"go.uber.org/zap"
)

// State is the connection lifecycle stage of an Endpoint.
type State uint8

const (
	StateClosed State = iota
	StateOpen
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Role is derived from the host id and the peer table; it is not stored.
type Role uint8

const (
	// RoleNone means no session: closed, or open with an empty table.
	RoleNone Role = iota
	// RoleHost owns admission and eviction for the mesh.
	RoleHost
	// RolePeer is a subordinate member that defers to its host.
	RolePeer
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleHost:
		return "host"
	case RolePeer:
		return "peer"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Endpoint owns the socket, the identities and the peer table of one node.
//
// An Endpoint is driven from a single goroutine: Open, Connect, Close and
// Process are not safe for concurrent use.
type Endpoint struct {
	conn       *net.UDPConn
	selfID     wire.PeerID
	hostID     wire.PeerID
	peers      []PeerRecord
	connecting bool

	// notifications for peers dropped by Connect or Close, flushed by Process
	pending []Event

	buf      []byte
	opts     options
	logger   *zap.Logger
	recorder *metrics.Recorder
}

// NewEndpoint returns a closed Endpoint.
func NewEndpoint(opts ...Option) *Endpoint {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Endpoint{
		// one spare byte so oversized datagrams are detectable
		buf:      make([]byte, wire.MaxPacketSize+1),
		opts:     o,
		logger:   o.logger,
		recorder: o.recorder,
	}
}

// Open binds the first free port of the range and takes a fresh identity.
func (e *Endpoint) Open() error {
	if e.conn != nil {
		return ErrAlreadyOpen
	}
	conn, err := e.bind()
	if err != nil {
		e.logger.Error("open failed",
			zap.Uint16("base_port", e.opts.basePort),
			zap.Int("port_range", e.opts.portRange),
			zap.Error(err),
		)
		return err
	}

	e.conn = conn
	e.selfID = wire.Assign(e.opts.nextID())
	e.hostID = wire.Unassigned()
	e.peers = nil
	e.connecting = false
	e.recorder.SetPeers(0)

	e.logger.Info("endpoint open", zap.Stringer("self", e.selfID), zap.Stringer("addr", e.LocalAddr()))
	return nil
}

// Connect starts joining the mesh reachable at target.
//
// The remote port is not known in advance, so a ConnectionRequest goes to
// every port of the range at target, except our own socket. Per-send errors
// are collected and returned together; one failure never stops the scan.
func (e *Endpoint) Connect(target netip.Addr) error {
	if e.conn == nil {
		return ErrClosed
	}
	target = target.Unmap()
	if !target.Is4() {
		return fmt.Errorf("connect %s: %w", target, wire.ErrNotIPv4)
	}

	e.dropPeers()
	e.hostID = wire.Unassigned()
	e.connecting = true

	e.logger.Info("connecting", zap.Stringer("self", e.selfID), zap.Stringer("target", target))

	var errs []error
	for port := range e.opts.ports() {
		to := netip.AddrPortFrom(target, port)
		if e.isSelf(to) {
			continue
		}
		if err := e.send(wire.ConnectionRequest{}, to); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close drops the socket and forgets identity and peers. It is safe to call
// in any state, any number of times.
func (e *Endpoint) Close() {
	if e.conn != nil {
		if err := e.conn.Close(); err != nil {
			e.logger.Warn("socket close failed", zap.Error(err))
		}
		e.conn = nil
		e.logger.Info("endpoint closed", zap.Stringer("self", e.selfID))
	}
	e.dropPeers()
	e.selfID = wire.Unassigned()
	e.hostID = wire.Unassigned()
	e.connecting = false
}

// Broadcast sends p to every peer. A failed send is logged and reported in
// the joined error but never stops the loop.
func (e *Endpoint) Broadcast(p wire.Packet) error {
	var errs []error
	for _, peer := range e.peers {
		if err := e.send(p, peer.Addr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SelfID is our identity: random after Open, host-assigned after a join.
func (e *Endpoint) SelfID() wire.PeerID { return e.selfID }

// HostID is the id of the host we joined, unassigned when we are the host.
func (e *Endpoint) HostID() wire.PeerID { return e.hostID }

// Connecting reports whether a join is in flight.
func (e *Endpoint) Connecting() bool { return e.connecting }

// Peers returns a copy of the peer table in insertion order.
func (e *Endpoint) Peers() []PeerRecord {
	out := make([]PeerRecord, len(e.peers))
	copy(out, e.peers)
	return out
}

// LocalAddr returns the bound address, or the zero AddrPort when closed.
func (e *Endpoint) LocalAddr() netip.AddrPort {
	if e.conn == nil {
		return netip.AddrPort{}
	}
	addr, ok := e.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	ap := addr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// State derives the lifecycle stage from the socket, the join flag and the table.
func (e *Endpoint) State() State {
	switch {
	case e.conn == nil:
		return StateClosed
	case e.connecting:
		return StateConnecting
	case len(e.peers) > 0:
		return StateConnected
	default:
		return StateOpen
	}
}

// Role reports whether we host the mesh, follow a host, or neither.
func (e *Endpoint) Role() Role {
	switch {
	case e.hostID.IsAssigned():
		return RolePeer
	case len(e.peers) > 0:
		return RoleHost
	default:
		return RoleNone
	}
}

// isSelf reports whether to addresses our own socket.
func (e *Endpoint) isSelf(to netip.AddrPort) bool {
	local := e.LocalAddr()
	if to.Port() != local.Port() {
		return false
	}
	ip := to.Addr()
	return ip == local.Addr() || ip.IsLoopback() || ip.IsUnspecified()
}

// dropPeers empties the table, queueing a disconnect notification per peer.
func (e *Endpoint) dropPeers() {
	for _, p := range e.peers {
		e.pending = append(e.pending, Event{Kind: EventPeerDisconnected, Peer: p.ID})
	}
	e.peers = nil
	e.recorder.SetPeers(0)
}
