package transport

import (
	"context"
	"io"
)

// Backend is one transport implementation.  Establish allocates a fresh
// Endpoint; the Backend itself holds only configuration and may be
// shared by several connections.
type Backend interface {
	Kind() Kind

	// Available reports whether the backend can be used on this
	// machine right now.  It must not allocate resources.
	Available() bool

	// Establish allocates the local resources (socket, listener, line)
	// for one connection end.
	Establish(ctx context.Context) (Endpoint, error)
}

// Endpoint is the backend-specific handle behind one connection end.
// It is owned by exactly one stream connection and released by
// Dispose.
//
// Read and Write form the connected byte stream; one reader and one
// writer may run concurrently.  Close unblocks both, as well as a
// pending Wait.
type Endpoint interface {
	io.Reader
	io.Writer

	// Open actively connects to peer.
	Open(ctx context.Context, peer Peer) (PeerAddress, error)

	// Wait blocks until a remote peer attaches or ctx is done.
	Wait(ctx context.Context) (PeerAddress, error)

	// Poll reports, without blocking, whether a remote peer has
	// attached.  A true result completes a passive connect.
	Poll() (PeerAddress, bool)

	// Close tears down the connection.  abort discards unsent data;
	// otherwise the write side is shut down and pending input drained
	// for a grace period.  The endpoint stays allocated.
	Close(abort bool) error

	// Dispose releases the endpoint's local resources.
	Dispose() error

	// SocketID identifies the local socket (normally its port).
	SocketID() uint16
}
