package datagram

import (
	"errors"
	"net"

	"netstream/internal/transport"
)

// Socket is one bound datagram socket.  WriteTo and ReadFrom may be
// called concurrently with each other.
type Socket interface {
	// WriteTo sends p as a single datagram.  Networks without a
	// protocol type field drop protocolType.
	WriteTo(p []byte, to transport.PeerAddress, protocolType uint8) error

	// ReadFrom blocks for the next datagram.  After Close it returns an
	// error wrapping net.ErrClosed.
	ReadFrom(p []byte) (n int, from transport.PeerAddress, protocolType uint8, err error)

	LocalPort() uint16
	Close() error
}

// Network opens datagram sockets.
type Network interface {
	Name() string

	// Listen binds a socket to port; 0 picks a free one.
	Listen(port uint16) (Socket, error)

	// Available reports whether sockets can be bound, without binding.
	Available() bool
}

// isClosed reports whether err means the socket was closed under us.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
