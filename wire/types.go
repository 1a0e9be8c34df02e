package wire

import (
	"encoding/binary"
	"math"
)

// MaxPacketSize is the hard ceiling for an encoded datagram.
// The protocol never fragments; every variant fits into a single packet.
const MaxPacketSize = 32

// Tag is the leading byte of every datagram and selects the packet variant.
type Tag uint8

const (
	TagEmpty Tag = iota
	TagConnectionRequest
	TagConnectionAcknowledge
	TagConnectionNew
	TagConnectionDelete
	TagConnectionRedirect
	TagConnectionHeartbeat
	TagTransform

	tagCount
)

var tagNames = [...]string{
	TagEmpty:                 "empty",
	TagConnectionRequest:     "connection_request",
	TagConnectionAcknowledge: "connection_acknowledge",
	TagConnectionNew:         "connection_new",
	TagConnectionDelete:      "connection_delete",
	TagConnectionRedirect:    "connection_redirect",
	TagConnectionHeartbeat:   "connection_heartbeat",
	TagTransform:             "transform",
}

// String returns a stable snake_case name, suitable for metric labels.
func (t Tag) String() string {
	if t < tagCount {
		return tagNames[t]
	}
	return "unknown"
}

// payloadLen is the number of bytes following the tag for each variant.
var payloadLen = [...]int{
	TagEmpty:                 0,
	TagConnectionRequest:     0,
	TagConnectionAcknowledge: 8,
	TagConnectionNew:         10,
	TagConnectionDelete:      4,
	TagConnectionRedirect:    6,
	TagConnectionHeartbeat:   4,
	TagTransform:             12,
}

// little-endian helpers

func readU16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

func readU32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func readF32(b []byte) float32 { return math.Float32frombits(readU32(b)) }

func appendU16(b []byte, v uint16) []byte { return binary.LittleEndian.AppendUint16(b, v) }

func appendU32(b []byte, v uint32) []byte { return binary.LittleEndian.AppendUint32(b, v) }

func appendF32(b []byte, v float32) []byte { return appendU32(b, math.Float32bits(v)) }
