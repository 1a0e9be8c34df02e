package wire

import "net/netip"

// Position is a 2D transform position as replicated on the wire.
type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Packet is one of the closed set of protocol variants.
// Packets are plain values; they are safe to copy and queue.
type Packet interface {
	Tag() Tag
	appendPayload(b []byte) ([]byte, error)
}

// Empty is what every unrecognized or malformed datagram decodes to.
type Empty struct{}

// ConnectionRequest asks the receiver to admit the sender into its mesh.
type ConnectionRequest struct{}

// ConnectionAcknowledge admits the receiver and hands it an identity.
type ConnectionAcknowledge struct {
	// Origin is the host's own id.
	Origin PeerID
	// Assigned is the id the host allocated for the receiver.
	Assigned PeerID
}

// ConnectionNew introduces a mesh member so the receiver can reach it directly.
type ConnectionNew struct {
	Peer PeerID
	Addr netip.AddrPort
}

// ConnectionDelete tells subordinates that the host evicted a member.
type ConnectionDelete struct {
	Peer PeerID
}

// ConnectionRedirect points a joiner at the host of the receiver's mesh.
type ConnectionRedirect struct {
	Host netip.AddrPort
}

// ConnectionHeartbeat is the keep-alive sent to every live peer each sweep.
type ConnectionHeartbeat struct {
	Origin PeerID
}

// Transform carries the authoritative position of one of Origin's entities.
//
// Coordinates travel bit for bit, so NaN payloads and negative zero survive a
// round trip; compare decoded positions with math.Float32bits, not ==.
type Transform struct {
	Origin   PeerID
	Position Position
}

var (
	_ Packet = Empty{}
	_ Packet = ConnectionRequest{}
	_ Packet = ConnectionAcknowledge{}
	_ Packet = ConnectionNew{}
	_ Packet = ConnectionDelete{}
	_ Packet = ConnectionRedirect{}
	_ Packet = ConnectionHeartbeat{}
	_ Packet = Transform{}
)

func (Empty) Tag() Tag                 { return TagEmpty }
func (ConnectionRequest) Tag() Tag     { return TagConnectionRequest }
func (ConnectionAcknowledge) Tag() Tag { return TagConnectionAcknowledge }
func (ConnectionNew) Tag() Tag         { return TagConnectionNew }
func (ConnectionDelete) Tag() Tag      { return TagConnectionDelete }
func (ConnectionRedirect) Tag() Tag    { return TagConnectionRedirect }
func (ConnectionHeartbeat) Tag() Tag   { return TagConnectionHeartbeat }
func (Transform) Tag() Tag             { return TagTransform }

func (Empty) appendPayload(b []byte) ([]byte, error) { return b, nil }

func (ConnectionRequest) appendPayload(b []byte) ([]byte, error) { return b, nil }

func (p ConnectionAcknowledge) appendPayload(b []byte) ([]byte, error) {
	b = p.Origin.AppendWire(b)
	b = p.Assigned.AppendWire(b)
	return b, nil
}

func (p ConnectionNew) appendPayload(b []byte) ([]byte, error) {
	b = p.Peer.AppendWire(b)
	return appendAddr(b, p.Addr)
}

func (p ConnectionDelete) appendPayload(b []byte) ([]byte, error) {
	return p.Peer.AppendWire(b), nil
}

func (p ConnectionRedirect) appendPayload(b []byte) ([]byte, error) {
	return appendAddr(b, p.Host)
}

func (p ConnectionHeartbeat) appendPayload(b []byte) ([]byte, error) {
	return p.Origin.AppendWire(b), nil
}

func (p Transform) appendPayload(b []byte) ([]byte, error) {
	b = p.Origin.AppendWire(b)
	b = appendF32(b, p.Position.X)
	b = appendF32(b, p.Position.Y)
	return b, nil
}

// appendAddr writes ipv4:4 followed by port:2 (little-endian).
func appendAddr(b []byte, addr netip.AddrPort) ([]byte, error) {
	ip := addr.Addr().Unmap()
	if !ip.Is4() {
		return nil, ErrNotIPv4
	}
	octets := ip.As4()
	b = append(b, octets[:]...)
	return appendU16(b, addr.Port()), nil
}

func readAddr(b []byte) netip.AddrPort {
	ip := netip.AddrFrom4([4]byte{b[0], b[1], b[2], b[3]})
	return netip.AddrPortFrom(ip, readU16(b[4:6]))
}
