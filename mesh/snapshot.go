package mesh

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/aethiopicuschan/lanmesh/wire"
)

// Snapshot is a point-in-time diagnostic view of an Endpoint.
// Its format carries no stability guarantee.
type Snapshot struct {
	SelfID     wire.PeerID    `json:"self_id"`
	HostID     wire.PeerID    `json:"host_id"`
	Bound      bool           `json:"bound"`
	LocalAddr  netip.AddrPort `json:"local_addr"`
	Connecting bool           `json:"connecting"`
	State      State          `json:"state"`
	Role       Role           `json:"role"`
	Peers      []PeerRecord   `json:"peers"`
	TakenAt    time.Time      `json:"taken_at"`
}

// Snapshot captures the endpoint state for debug dumps.
func (e *Endpoint) Snapshot() Snapshot {
	return Snapshot{
		SelfID:     e.selfID,
		HostID:     e.hostID,
		Bound:      e.conn != nil,
		LocalAddr:  e.LocalAddr(),
		Connecting: e.connecting,
		State:      e.State(),
		Role:       e.Role(),
		Peers:      e.Peers(),
		TakenAt:    e.opts.now(),
	}
}

func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "self=%s host=%s state=%s role=%s", s.SelfID, s.HostID, s.State, s.Role)
	if s.Bound {
		fmt.Fprintf(&b, " socket=%s", s.LocalAddr)
	} else {
		b.WriteString(" socket=none")
	}
	fmt.Fprintf(&b, " connecting=%t peers=%d", s.Connecting, len(s.Peers))
	for _, p := range s.Peers {
		fmt.Fprintf(&b, "\n  %s %s last_seen=%s ago", p.ID, p.Addr, s.TakenAt.Sub(p.LastSeen).Truncate(time.Millisecond))
	}
	return b.String()
}
