package mesh

import "errors"

var (
	// ErrAlreadyOpen is returned by Open when the endpoint already owns a socket.
	ErrAlreadyOpen = errors.New("mesh: endpoint is already open")

	// ErrNoAvailablePorts is returned by Open when every port in the range is taken.
	ErrNoAvailablePorts = errors.New("mesh: no available ports")

	// ErrClosed is returned by operations that need a bound socket.
	ErrClosed = errors.New("mesh: endpoint is closed")

	// errWouldBlock signals that no datagram is pending on the socket.
	errWouldBlock = errors.New("mesh: no pending datagram")
)
