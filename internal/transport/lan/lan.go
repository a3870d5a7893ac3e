// Package lan implements the addressed-stream transport over TCP.  Each
// endpoint owns a listener so it can be reached passively, and dials
// through a transport.Dialer when it connects actively.
package lan

import (
	"context"
	"net"
	"strconv"
	"time"

	nserr "netstream/internal/errors"
	"netstream/internal/metrics"
	"netstream/internal/transport"
	"netstream/util"
)

// DefaultGrace bounds how long a graceful close drains input.
const DefaultGrace = 2 * time.Second

// Options configures a Backend.
type Options struct {
	ListenHost string           // "" listens on all interfaces
	Port       uint16           // listen port; 0 picks a free one
	Dialer     transport.Dialer // TCPDialer when nil
	Tunneled   bool             // Dialer reaches peers through a tunnel
	Grace      time.Duration    // graceful close drain limit
	KeepAlive  time.Duration    // TCP keepalive period; 0 keeps the OS default
	Logger     *util.Logger
	Metrics    *metrics.Collector
}

// Backend is the TCP transport.
type Backend struct {
	opts Options
}

// New returns a Backend with defaults filled in.
func New(opts Options) *Backend {
	if opts.Dialer == nil {
		opts.Dialer = &transport.TCPDialer{Timeout: 10 * time.Second}
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Logger == nil {
		opts.Logger = util.NopLogger()
	}
	return &Backend{opts: opts}
}

func (b *Backend) Kind() transport.Kind { return transport.AddressedStream }

// Available reports whether a network interface is up, or a tunnel
// is configured to reach peers.
func (b *Backend) Available() bool {
	return b.opts.Tunneled || util.HasUsableInterface()
}

// Establish binds the endpoint's listener.
func (b *Backend) Establish(ctx context.Context) (transport.Endpoint, error) {
	addr := net.JoinHostPort(b.opts.ListenHost, strconv.Itoa(int(b.opts.Port)))

	var lc net.ListenConfig
	if b.opts.KeepAlive > 0 {
		lc.KeepAlive = b.opts.KeepAlive
	}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, nserr.Wrap("listen", addr, nserr.ErrEndpointAllocationFailed, err)
	}

	e := newEndpoint(ln, b.opts)
	b.opts.Logger.Verbose("listening on %s", ln.Addr())
	return e, nil
}

// Dialer returns the dialer used for active connects.
func (b *Backend) Dialer() transport.Dialer { return b.opts.Dialer }
