package mesh

import (
	"net/netip"
	"time"

	"github.com/aethiopicuschan/lanmesh/wire"
)

// PeerRecord is one entry of the endpoint's peer table.
type PeerRecord struct {
	ID       wire.PeerID    `json:"id"`
	Addr     netip.AddrPort `json:"addr"`
	LastSeen time.Time      `json:"last_seen"`
}

func (e *Endpoint) peerIndexByID(id wire.PeerID) int {
	for i := range e.peers {
		if e.peers[i].ID.Equal(id) {
			return i
		}
	}
	return -1
}

func (e *Endpoint) peerIndexByAddr(addr netip.AddrPort) int {
	for i := range e.peers {
		if e.peers[i].Addr == addr {
			return i
		}
	}
	return -1
}

// taken reports whether id collides with our own id or any known peer.
func (e *Endpoint) taken(id wire.PeerID) bool {
	return id.Equal(e.selfID) || e.peerIndexByID(id) >= 0
}

// hostRecord returns the peer entry of our host, if we are a subordinate.
func (e *Endpoint) hostRecord() (PeerRecord, bool) {
	if !e.hostID.IsAssigned() {
		return PeerRecord{}, false
	}
	i := e.peerIndexByID(e.hostID)
	if i < 0 {
		return PeerRecord{}, false
	}
	return e.peers[i], true
}

// fromHost reports whether addr is the address of our host.
func (e *Endpoint) fromHost(addr netip.AddrPort) bool {
	host, ok := e.hostRecord()
	return ok && host.Addr == addr
}
