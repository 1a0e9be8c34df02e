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

// maxReadFailures bounds how many socket errors one drain tolerates
// before giving up until the next tick.
const maxReadFailures = 16

// bind opens a UDP socket on the first free port of the range.
func (e *Endpoint) bind() (*net.UDPConn, error) {
	for port := range e.opts.ports() {
		addr := netip.AddrPortFrom(e.opts.bindAddr, port)
		conn, err := net.ListenUDP("udp4", net.UDPAddrFromAddrPort(addr))
		if err != nil {
			e.logger.Debug("port unavailable", zap.Stringer("addr", addr), zap.Error(err))
			continue
		}
		return conn, nil
	}
	return nil, ErrNoAvailablePorts
}

// send encodes p and writes it to addr. Failures are logged and counted
// here; callers may ignore the returned error.
func (e *Endpoint) send(p wire.Packet, to netip.AddrPort) error {
	if e.conn == nil {
		return ErrClosed
	}
	b, err := wire.Encode(p)
	if err != nil {
		e.logger.Warn("encode failed", zap.Stringer("type", p.Tag()), zap.Stringer("to", to), zap.Error(err))
		return fmt.Errorf("encode %s: %w", p.Tag(), err)
	}
	if _, err := e.conn.WriteToUDPAddrPort(b, to); err != nil {
		e.recorder.RecordSendError()
		e.logger.Warn("send failed", zap.Stringer("type", p.Tag()), zap.Stringer("to", to), zap.Error(err))
		return fmt.Errorf("send %s to %s: %w", p.Tag(), to, err)
	}
	e.recorder.RecordSent(p.Tag().String())
	return nil
}

// drain reads every pending datagram without blocking and dispatches it.
func (e *Endpoint) drain(events *Events) {
	failures := 0
	for e.conn != nil {
		n, from, err := recvNonBlocking(e.conn, e.buf)
		if errors.Is(err, errWouldBlock) {
			return
		}
		if err != nil {
			failures++
			e.logger.Debug("receive failed", zap.Error(err))
			if failures >= maxReadFailures {
				return
			}
			continue
		}
		if n > wire.MaxPacketSize {
			e.recorder.RecordDrop(metrics.DropOversized)
			continue
		}

		pkt := wire.Decode(e.buf[:n])
		if pkt.Tag() == wire.TagEmpty {
			e.recorder.RecordDrop(metrics.DropMalformed)
			continue
		}
		e.recorder.RecordReceived(pkt.Tag().String())

		if i := e.peerIndexByAddr(from); i >= 0 {
			e.peers[i].LastSeen = e.opts.now()
		}
		e.handle(pkt, from, events)
	}
}
