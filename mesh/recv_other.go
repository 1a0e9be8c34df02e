//go:build !unix

package mesh

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"time"
)

// pollWindow is how long a read may wait on platforms without MSG_DONTWAIT.
const pollWindow = time.Millisecond

func recvNonBlocking(conn *net.UDPConn, buf []byte) (int, netip.AddrPort, error) {
	if err := conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, netip.AddrPort{}, err
	}
	n, from, err := conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, netip.AddrPort{}, errWouldBlock
		}
		return 0, netip.AddrPort{}, err
	}
	return n, netip.AddrPortFrom(from.Addr().Unmap(), from.Port()), nil
}
