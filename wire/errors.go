package wire

import "errors"

var (
	// ErrPacketIsNil is returned when trying to encode a nil packet.
	ErrPacketIsNil = errors.New("wire: packet is nil")

	// ErrNotIPv4 is returned when an address carried by a packet cannot be
	// represented as an IPv4 address on the wire.
	ErrNotIPv4 = errors.New("wire: address is not ipv4")
)
