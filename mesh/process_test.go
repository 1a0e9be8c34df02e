package mesh_test

import (
	"testing"
	"time"

	"github.com/aethiopicuschan/lanmesh/mesh"
	"github.com/aethiopicuschan/lanmesh/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// formMesh builds A (host) with B and C as members. All three share
// loopback, so C's scan reaches A directly as well as through B.
func formMesh(t *testing.T, base uint16, hostOpts ...mesh.Option) (a, b, c *testNode) {
	t.Helper()

	a = openNode(t, base, hostOpts...)
	b = openNode(t, base)
	c = openNode(t, base)

	require.NoError(t, b.ep.Connect(loopback))
	pumpUntil(t, func() bool {
		return len(a.ep.Peers()) == 1 && len(b.ep.Peers()) == 1
	}, a, b)

	require.NoError(t, c.ep.Connect(loopback))
	pumpUntil(t, func() bool {
		return len(a.ep.Peers()) == 2 && len(b.ep.Peers()) == 2 && len(c.ep.Peers()) == 2
	}, a, b, c)
	return a, b, c
}

func TestHandshakeHostAndPeer(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30200)
	b := openNode(t, 30200)
	hostID := a.ep.SelfID()

	require.NoError(t, b.ep.Connect(loopback))
	pumpUntil(t, func() bool {
		return len(a.ep.Peers()) == 1 && len(b.ep.Peers()) == 1
	}, a, b)
	settle(a, b)

	// B adopted an identity from A and follows it
	assert.True(t, b.ep.HostID().Equal(hostID))
	assert.False(t, b.ep.Connecting())
	assert.Equal(t, mesh.RolePeer, b.ep.Role())
	assert.Equal(t, mesh.StateConnected, b.ep.State())
	assert.Equal(t, 1, b.count(mesh.EventPeerConnected, hostID))

	// A admitted B under the id it allocated
	assert.Equal(t, mesh.RoleHost, a.ep.Role())
	assert.False(t, a.ep.HostID().IsAssigned())
	peer := a.ep.Peers()[0]
	assert.True(t, peer.ID.Equal(b.ep.SelfID()))
	assert.Equal(t, b.ep.LocalAddr(), peer.Addr)
	assert.Equal(t, 1, a.count(mesh.EventPeerConnected, b.ep.SelfID()))
	assert.Len(t, a.seen, 1)
}

func TestHandshakeRedirectFormsFullMesh(t *testing.T) {
	t.Parallel()

	a, b, c := formMesh(t, 30220)
	settle(a, b, c)

	// exactly one host, everyone else points at it
	assert.Equal(t, mesh.RoleHost, a.ep.Role())
	assert.True(t, b.ep.HostID().Equal(a.ep.SelfID()))
	assert.True(t, c.ep.HostID().Equal(a.ep.SelfID()))

	// direct paths between every pair
	assert.Equal(t, 1, c.count(mesh.EventPeerConnected, a.ep.SelfID()))
	assert.Equal(t, 1, c.count(mesh.EventPeerConnected, b.ep.SelfID()))
	assert.Equal(t, 1, b.count(mesh.EventPeerConnected, c.ep.SelfID()))
	assert.Equal(t, 1, a.count(mesh.EventPeerConnected, c.ep.SelfID()))

	ids := []wire.PeerID{a.ep.SelfID(), b.ep.SelfID(), c.ep.SelfID()}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			assert.False(t, ids[i].Equal(ids[j]), "ids %s and %s collide", ids[i], ids[j])
		}
	}
}

func TestHostAllocatesUniqueIDs(t *testing.T) {
	t.Parallel()

	// self=1; then the allocator draws collisions with self and with B
	a, b, c := formMesh(t, 30240, mesh.WithIDSource(scriptedIDs(1, 1, 2, 2, 1, 3)))

	assert.True(t, a.ep.SelfID().Equal(wire.Assign(1)))
	assert.True(t, b.ep.SelfID().Equal(wire.Assign(2)))
	assert.True(t, c.ep.SelfID().Equal(wire.Assign(3)))
}

func TestDuplicateRequestAdmitsOnce(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30260)
	raw := newRawPeer(t, 0)

	raw.send(t, a.ep.LocalAddr(), wire.ConnectionRequest{})
	raw.send(t, a.ep.LocalAddr(), wire.ConnectionRequest{})

	pumpUntil(t, func() bool { return len(a.ep.Peers()) == 1 }, a)
	settle(a)

	ack := raw.recv(t, wire.TagConnectionAcknowledge).(wire.ConnectionAcknowledge)
	assert.True(t, ack.Origin.Equal(a.ep.SelfID()))

	require.Len(t, a.ep.Peers(), 1)
	assert.True(t, a.ep.Peers()[0].ID.Equal(ack.Assigned))
	assert.Equal(t, 1, a.count(mesh.EventPeerConnected, ack.Assigned))
	assert.Len(t, a.seen, 1)
}

func TestConnectingIgnoresRequests(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30280, mesh.WithPortRange(2))
	raw := newRawPeer(t, 0)

	// nobody listens on the other port of the range, so the attempt stays outstanding
	require.NoError(t, a.ep.Connect(loopback))
	raw.send(t, a.ep.LocalAddr(), wire.ConnectionRequest{})
	settle(a)

	assert.True(t, a.ep.Connecting())
	assert.Empty(t, a.ep.Peers())
	assert.Empty(t, a.seen)
}

func TestUnsolicitedAcknowledgeIgnored(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30300)
	self := a.ep.SelfID()
	raw := newRawPeer(t, 0)

	raw.send(t, a.ep.LocalAddr(), wire.ConnectionAcknowledge{Origin: wire.Assign(9), Assigned: wire.Assign(10)})
	settle(a)

	assert.True(t, a.ep.SelfID().Equal(self))
	assert.False(t, a.ep.HostID().IsAssigned())
	assert.Empty(t, a.seen)
}

func TestHostIgnoresMeshMaintenance(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30320)
	raw := newRawPeer(t, 0)

	raw.send(t, a.ep.LocalAddr(), wire.ConnectionRequest{})
	pumpUntil(t, func() bool { return len(a.ep.Peers()) == 1 }, a)
	joined := a.ep.Peers()[0].ID

	// a host already knows the membership; introductions and deletions
	// from anyone are not authoritative for it
	raw.send(t, a.ep.LocalAddr(), wire.ConnectionNew{Peer: wire.Assign(77), Addr: raw.addr()})
	raw.send(t, a.ep.LocalAddr(), wire.ConnectionDelete{Peer: joined})
	settle(a)

	require.Len(t, a.ep.Peers(), 1)
	assert.True(t, a.ep.Peers()[0].ID.Equal(joined))
	assert.Len(t, a.seen, 1)
}

func TestPeerIgnoresDeleteFromNonHost(t *testing.T) {
	t.Parallel()

	a, b, c := formMesh(t, 30340)
	stranger := newRawPeer(t, 0)

	stranger.send(t, c.ep.LocalAddr(), wire.ConnectionDelete{Peer: b.ep.SelfID()})
	// a member that is not the host has no say either
	require.NoError(t, b.ep.Broadcast(wire.ConnectionDelete{Peer: a.ep.SelfID()}))
	settle(a, b, c)

	assert.Len(t, a.ep.Peers(), 2)
	assert.Len(t, c.ep.Peers(), 2)
	assert.Zero(t, c.count(mesh.EventPeerDisconnected, b.ep.SelfID()))
	assert.Zero(t, c.count(mesh.EventPeerDisconnected, a.ep.SelfID()))
}

func TestMalformedDatagramsAreDropped(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30360)
	raw := newRawPeer(t, 0)

	raw.sendRaw(t, a.ep.LocalAddr(), []byte{})
	raw.sendRaw(t, a.ep.LocalAddr(), []byte{0xEE, 1, 2})
	raw.sendRaw(t, a.ep.LocalAddr(), []byte{2, 1})
	raw.sendRaw(t, a.ep.LocalAddr(), make([]byte, 200))

	assert.NotPanics(t, func() { settle(a) })
	assert.Empty(t, a.ep.Peers())
	assert.Empty(t, a.seen)
}

func TestTransformEmitsMove(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30380)
	raw := newRawPeer(t, 0)

	raw.send(t, a.ep.LocalAddr(), wire.Transform{Origin: wire.Assign(5), Position: wire.Position{X: 3, Y: 4}})
	pumpUntil(t, func() bool { return len(a.seen) > 0 }, a)

	assert.Equal(t, mesh.Event{
		Kind:     mesh.EventPeerMoved,
		Peer:     wire.Assign(5),
		Position: wire.Position{X: 3, Y: 4},
	}, a.seen[0])
	// movement never touches the table
	assert.Empty(t, a.ep.Peers())
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	t.Parallel()

	a, b, c := formMesh(t, 30400)
	origin := a.ep.SelfID()

	require.NoError(t, a.ep.Broadcast(wire.Transform{Origin: origin, Position: wire.Position{X: 3, Y: 4}}))

	moved := func(n *testNode) bool {
		for _, ev := range n.seen {
			if ev.Kind == mesh.EventPeerMoved && ev.Peer.Equal(origin) {
				return ev.Position == wire.Position{X: 3, Y: 4}
			}
		}
		return false
	}
	pumpUntil(t, func() bool { return moved(b) && moved(c) }, b, c)
}

func TestHostEvictsSilentPeer(t *testing.T) {
	t.Parallel()

	a, b, c := formMesh(t, 30420)
	evicted := b.ep.SelfID()

	// B goes silent; let its last datagrams land before time moves on
	time.Sleep(20 * time.Millisecond)
	a.pump()
	c.pump()

	a.clock.Advance(2500 * time.Millisecond)
	c.pump() // C keeps heartbeating A
	time.Sleep(20 * time.Millisecond)
	a.pump()

	require.Len(t, a.ep.Peers(), 1)
	assert.True(t, a.ep.Peers()[0].ID.Equal(c.ep.SelfID()))
	assert.Equal(t, 1, a.count(mesh.EventPeerDisconnected, evicted))

	pumpUntil(t, func() bool { return c.count(mesh.EventPeerDisconnected, evicted) == 1 }, c)
	require.Len(t, c.ep.Peers(), 1)
	assert.True(t, c.ep.Peers()[0].ID.Equal(a.ep.SelfID()))
}

func TestPeerNeverEvictsOnItsOwn(t *testing.T) {
	t.Parallel()

	_, _, c := formMesh(t, 30440)

	before := len(c.seen)
	c.clock.Advance(10 * time.Second)
	c.pump()
	c.pump()

	assert.Len(t, c.ep.Peers(), 2)
	for _, ev := range c.seen[before:] {
		assert.NotEqual(t, mesh.EventPeerDisconnected, ev.Kind)
	}
}

func TestReconnectAfterJoin(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30460)
	b := openNode(t, 30460)

	require.NoError(t, b.ep.Connect(loopback))
	pumpUntil(t, func() bool { return len(b.ep.Peers()) == 1 }, a, b)

	// a second attempt must not wedge behind the first handshake
	hostID := a.ep.SelfID()
	a.ep.Close()
	require.NoError(t, a.ep.Open())

	require.NoError(t, b.ep.Connect(loopback))
	b.pump()
	assert.Equal(t, 1, b.count(mesh.EventPeerDisconnected, hostID))

	pumpUntil(t, func() bool {
		return len(b.ep.Peers()) == 1 && b.ep.HostID().Equal(a.ep.SelfID())
	}, a, b)
	assert.False(t, b.ep.Connecting())
}

func TestCloseNotifiesDroppedPeers(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30480)
	b := openNode(t, 30480)

	require.NoError(t, b.ep.Connect(loopback))
	pumpUntil(t, func() bool { return len(b.ep.Peers()) == 1 }, a, b)
	hostID := a.ep.SelfID()

	b.ep.Close()
	b.pump()
	assert.Equal(t, []mesh.Event{{Kind: mesh.EventPeerDisconnected, Peer: hostID}}, b.events.Slice())

	b.pump()
	assert.Zero(t, b.events.Len())
}

func TestSubordinateRedirectsJoinerToHost(t *testing.T) {
	t.Parallel()

	a := openNode(t, 30500)
	b := openNode(t, 30500)
	require.NoError(t, b.ep.Connect(loopback))
	pumpUntil(t, func() bool {
		return len(a.ep.Peers()) == 1 && len(b.ep.Peers()) == 1
	}, a, b)

	joiner := newRawPeer(t, 30515)
	joiner.send(t, b.ep.LocalAddr(), wire.ConnectionRequest{})
	settle(a, b)

	got := joiner.recv(t, wire.TagConnectionRedirect)
	assert.Equal(t, wire.ConnectionRedirect{Host: a.ep.LocalAddr()}, got)

	// B never admits anyone itself
	assert.Len(t, b.ep.Peers(), 1)
	assert.True(t, b.ep.HostID().Equal(a.ep.SelfID()))
	assert.Len(t, a.ep.Peers(), 1)
}

func TestJoinerFollowsRedirect(t *testing.T) {
	t.Parallel()

	// a single-port range: the scan has nobody to reach but ourselves
	c := openNode(t, 30520, mesh.WithPortRange(1))
	require.NoError(t, c.ep.Connect(loopback))
	assert.True(t, c.ep.Connecting())

	host := newRawPeer(t, 30525)
	member := newRawPeer(t, 30526)

	member.send(t, c.ep.LocalAddr(), wire.ConnectionRedirect{Host: host.addr()})
	settle(c)
	host.recv(t, wire.TagConnectionRequest)

	hostID, assigned := wire.Assign(77), wire.Assign(5)
	host.send(t, c.ep.LocalAddr(), wire.ConnectionAcknowledge{Origin: hostID, Assigned: assigned})
	pumpUntil(t, func() bool { return c.ep.HostID().IsAssigned() }, c)

	assert.True(t, c.ep.HostID().Equal(hostID))
	assert.True(t, c.ep.SelfID().Equal(assigned))
	assert.False(t, c.ep.Connecting())
	require.Len(t, c.ep.Peers(), 1)
	assert.Equal(t, host.addr(), c.ep.Peers()[0].Addr)
	assert.Equal(t, 1, c.count(mesh.EventPeerConnected, hostID))

	// once joined, further redirects are ignored
	member.send(t, c.ep.LocalAddr(), wire.ConnectionRedirect{Host: member.addr()})
	settle(c)
	require.NoError(t, member.conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := member.conn.ReadFromUDPAddrPort(make([]byte, 64))
	assert.Error(t, err)
}
