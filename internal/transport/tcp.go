package transport

import (
	"context"
	"net"
	"time"

	nserr "netstream/internal/errors"
	"netstream/util"
)

// TCPDialer opens the direct LAN connection from the joining side.  The
// source address can be pinned with BindHost and LocalPort so peers
// behind strict firewalls see a predictable origin.
type TCPDialer struct {
	Timeout   time.Duration
	BindHost  string        // source interface, empty for any
	LocalPort uint16        // source port, 0 for ephemeral
	KeepAlive time.Duration // 0 keeps the OS default, negative disables
}

// Dial connects to address.  Only stream networks are accepted: the
// datagram and modem transports never go through a Dialer.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, nserr.New("dial "+network, nserr.ErrUnsupportedTransportKind)
	}

	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	if d.BindHost != "" || d.LocalPort > 0 {
		local, err := net.ResolveTCPAddr(network, util.FormatAddr(d.BindHost, d.LocalPort))
		if err != nil {
			return nil, nserr.Wrap("resolve source", d.BindHost, nserr.ErrEndpointAllocationFailed, err)
		}
		dialer.LocalAddr = local
	}
	return dialer.DialContext(ctx, network, address)
}

// Close is a no-op: a TCPDialer holds no state between dials.
func (d *TCPDialer) Close() error { return nil }
