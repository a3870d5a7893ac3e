// Package transport defines the backend contract shared by every way of
// carrying a reliable packet stream between two peers (addressed stream
// over TCP, datagrams, or a point-to-point modem line) and the Registry
// that selects one of them.  Backends live in sub-packages; this package
// never touches the network itself except through a Dialer.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations include
// a plain TCP dialer and an SSH-tunnelled dialer that routes traffic
// through an encrypted gateway.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
