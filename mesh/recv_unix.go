//go:build unix

package mesh

import (
	"errors"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"
)

// recvNonBlocking reads one datagram if one is pending and returns
// errWouldBlock otherwise. It never parks the goroutine.
func recvNonBlocking(conn *net.UDPConn, buf []byte) (int, netip.AddrPort, error) {
	rc, err := conn.SyscallConn()
	if err != nil {
		return 0, netip.AddrPort{}, err
	}

	var (
		n    int
		from unix.Sockaddr
		rerr error
	)
	err = rc.Read(func(fd uintptr) bool {
		n, from, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		// report done either way; waiting for readability is exactly what we avoid
		return true
	})
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	if rerr != nil {
		if errors.Is(rerr, unix.EAGAIN) || errors.Is(rerr, unix.EWOULDBLOCK) {
			return 0, netip.AddrPort{}, errWouldBlock
		}
		return 0, netip.AddrPort{}, rerr
	}

	switch sa := from.(type) {
	case *unix.SockaddrInet4:
		return n, netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port)), nil
	case *unix.SockaddrInet6:
		return n, netip.AddrPortFrom(netip.AddrFrom16(sa.Addr).Unmap(), uint16(sa.Port)), nil
	default:
		return 0, netip.AddrPort{}, unix.EAFNOSUPPORT
	}
}
