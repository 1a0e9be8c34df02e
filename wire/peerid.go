package wire

import "fmt"

// PeerID identifies a mesh member.
//
// The zero value is unassigned: the process has no identity yet, or the
// field refers to "nobody" (for example, no host). Unassigned is a tag of its
// own and never the number 0, even though 0 is its wire and display form.
type PeerID struct {
	value    uint32
	assigned bool
}

// Unassigned returns the unassigned PeerID.
func Unassigned() PeerID {
	return PeerID{}
}

// Assign returns an assigned PeerID carrying v.
func Assign(v uint32) PeerID {
	return PeerID{value: v, assigned: true}
}

// IsAssigned reports whether the id carries a value.
func (id PeerID) IsAssigned() bool {
	return id.assigned
}

// Value returns the numeric id and whether it is assigned.
func (id PeerID) Value() (uint32, bool) {
	return id.value, id.assigned
}

// Equal reports whether both ids are assigned and carry the same value.
// Unassigned ids never equal anything, including each other.
func (id PeerID) Equal(other PeerID) bool {
	return id.assigned && other.assigned && id.value == other.value
}

func (id PeerID) String() string {
	if !id.assigned {
		return fmt.Sprintf("%#010x", 0)
	}
	return fmt.Sprintf("%#010x", id.value)
}

// AppendWire appends the 4-byte little-endian wire form of id.
// Unassigned ids are written as 0.
func (id PeerID) AppendWire(b []byte) []byte {
	if !id.assigned {
		return appendU32(b, 0)
	}
	return appendU32(b, id.value)
}

// PeerIDFromWire decodes a 4-byte little-endian id.
// Ids read from the wire are always assigned.
func PeerIDFromWire(b []byte) PeerID {
	return Assign(readU32(b))
}

// Allocate draws candidates from next until taken reports the candidate as
// free. It never returns an id that taken rejects.
func Allocate(next func() uint32, taken func(PeerID) bool) PeerID {
	for {
		id := Assign(next())
		if taken == nil || !taken(id) {
			return id
		}
	}
}

// MarshalText renders the display form, so ids read naturally in JSON dumps.
func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}
