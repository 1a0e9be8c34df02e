package wire

import "fmt"

// Encode serializes p into a datagram of at most MaxPacketSize bytes.
func Encode(p Packet) ([]byte, error) {
	if p == nil {
		return nil, ErrPacketIsNil
	}
	buf := make([]byte, 1, MaxPacketSize)
	buf[0] = byte(p.Tag())

	buf, err := p.appendPayload(buf)
	if err != nil {
		return nil, err
	}
	if len(buf) > MaxPacketSize {
		// Every variant is fixed-size; this can only be a broken variant.
		panic(fmt.Sprintf("wire: %s encodes to %d bytes, limit is %d", p.Tag(), len(buf), MaxPacketSize))
	}
	return buf, nil
}

// Decode parses a datagram.
//
// Decode never fails: an empty, oversized or truncated buffer, or one with an
// unknown tag, yields Empty. Bytes past the variant's payload are ignored.
func Decode(b []byte) Packet {
	if len(b) == 0 || len(b) > MaxPacketSize {
		return Empty{}
	}
	tag := Tag(b[0])
	if tag >= tagCount {
		return Empty{}
	}
	body := b[1:]
	if len(body) < payloadLen[tag] {
		return Empty{}
	}

	switch tag {
	case TagConnectionRequest:
		return ConnectionRequest{}
	case TagConnectionAcknowledge:
		return ConnectionAcknowledge{
			Origin:   PeerIDFromWire(body[0:4]),
			Assigned: PeerIDFromWire(body[4:8]),
		}
	case TagConnectionNew:
		return ConnectionNew{
			Peer: PeerIDFromWire(body[0:4]),
			Addr: readAddr(body[4:10]),
		}
	case TagConnectionDelete:
		return ConnectionDelete{Peer: PeerIDFromWire(body[0:4])}
	case TagConnectionRedirect:
		return ConnectionRedirect{Host: readAddr(body[0:6])}
	case TagConnectionHeartbeat:
		return ConnectionHeartbeat{Origin: PeerIDFromWire(body[0:4])}
	case TagTransform:
		return Transform{
			Origin: PeerIDFromWire(body[0:4]),
			Position: Position{
				X: readF32(body[4:8]),
				Y: readF32(body[8:12]),
			},
		}
	default:
		return Empty{}
	}
}
