package mesh_test

import (
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/aethiopicuschan/lanmesh/mesh"
	"github.com/aethiopicuschan/lanmesh/wire"
	"github.com/stretchr/testify/require"
)

var loopback = netip.MustParseAddr("127.0.0.1")

// fakeClock is a manually advanced clock shared by one endpoint.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testNode accumulates the events of every Process call.
type testNode struct {
	ep     *mesh.Endpoint
	clock  *fakeClock
	events mesh.Events
	seen   []mesh.Event
}

func (n *testNode) pump() {
	n.ep.Process(&n.events)
	n.seen = append(n.seen, n.events.Slice()...)
}

func (n *testNode) count(kind mesh.EventKind, peer wire.PeerID) int {
	c := 0
	for _, ev := range n.seen {
		if ev.Kind == kind && ev.Peer.Equal(peer) {
			c++
		}
	}
	return c
}

func openNode(t *testing.T, base uint16, opts ...mesh.Option) *testNode {
	t.Helper()

	clk := newFakeClock()
	all := append([]mesh.Option{
		mesh.WithBasePort(base),
		mesh.WithBindAddr(loopback),
		mesh.WithClock(clk.Now),
	}, opts...)

	ep := mesh.NewEndpoint(all...)
	require.NoError(t, ep.Open())
	t.Cleanup(ep.Close)

	return &testNode{ep: ep, clock: clk}
}

// pumpUntil processes every node in turn until cond holds or time runs out.
func pumpUntil(t *testing.T, cond func() bool, nodes ...*testNode) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, n := range nodes {
			n.pump()
		}
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

// settle pumps nodes a few more rounds so late duplicates would show up.
func settle(nodes ...*testNode) {
	for range 5 {
		time.Sleep(5 * time.Millisecond)
		for _, n := range nodes {
			n.pump()
		}
	}
}

// rawPeer is a bare UDP socket speaking the wire protocol by hand.
type rawPeer struct {
	conn *net.UDPConn
}

func newRawPeer(t *testing.T, port int) *rawPeer {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &rawPeer{conn: conn}
}

func (r *rawPeer) addr() netip.AddrPort {
	return r.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (r *rawPeer) send(t *testing.T, to netip.AddrPort, p wire.Packet) {
	t.Helper()

	b, err := wire.Encode(p)
	require.NoError(t, err)
	r.sendRaw(t, to, b)
}

func (r *rawPeer) sendRaw(t *testing.T, to netip.AddrPort, b []byte) {
	t.Helper()

	_, err := r.conn.WriteToUDPAddrPort(b, to)
	require.NoError(t, err)
}

// recv waits for the next datagram whose tag matches.
func (r *rawPeer) recv(t *testing.T, tag wire.Tag) wire.Packet {
	t.Helper()

	buf := make([]byte, 64)
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, r.conn.SetReadDeadline(deadline))
		n, _, err := r.conn.ReadFromUDPAddrPort(buf)
		require.NoError(t, err)
		if p := wire.Decode(buf[:n]); p.Tag() == tag {
			return p
		}
	}
}

// scriptedIDs returns ids from seq in order, then counts upward.
func scriptedIDs(seq ...uint32) func() uint32 {
	var mu sync.Mutex
	next := uint32(1000)
	return func() uint32 {
		mu.Lock()
		defer mu.Unlock()
		if len(seq) > 0 {
			v := seq[0]
			seq = seq[1:]
			return v
		}
		next++
		return next
	}
}
