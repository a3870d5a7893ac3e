package datagram

import (
	"context"
	"net"
	"sync"

	nserr "netstream/internal/errors"
	"netstream/internal/transport"
)

// StreamBackend carries a byte stream over datagrams so the datagram
// transport can back a stream connection.  Delivery is best-effort:
// there is no retransmission and no ordering beyond the network's.
//
// The active side announces itself with an empty datagram; the passive
// side binds to whichever peer sends first and ignores everyone else.
type StreamBackend struct {
	opts Options
}

// NewStreamBackend returns a transport.Backend for the datagram kind.
func NewStreamBackend(opts Options) *StreamBackend {
	return &StreamBackend{opts: opts.withDefaults()}
}

func (s *StreamBackend) Kind() transport.Kind { return transport.Datagram }

func (s *StreamBackend) Available() bool { return s.opts.Network.Available() }

// Establish binds a fresh frame service for one connection end.
func (s *StreamBackend) Establish(ctx context.Context) (transport.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := New(s.opts)
	if err := b.Open(); err != nil {
		return nil, err
	}
	life, cancel := context.WithCancel(context.Background())
	return &streamEndpoint{b: b, life: life, cancel: cancel}, nil
}

type streamEndpoint struct {
	b      *Backend
	life   context.Context // done once Close is called
	cancel context.CancelFunc

	mu        sync.Mutex
	peer      transport.PeerAddress
	connected bool

	rmu     sync.Mutex
	pending []byte

	wmu sync.Mutex
}

func (e *streamEndpoint) SocketID() uint16 { return e.b.LocalPort() }

func (e *streamEndpoint) Open(ctx context.Context, peer transport.Peer) (transport.PeerAddress, error) {
	addr := peer.Addr
	if addr.IsZero() || addr.Port == 0 {
		return transport.PeerAddress{}, nserr.New("open", nserr.ErrConnectionRefused)
	}
	if err := ctx.Err(); err != nil {
		return transport.PeerAddress{}, nserr.Wrap("open", addr.String(), nserr.ErrIO, err)
	}

	f, err := e.b.NewFrame()
	if err != nil {
		return transport.PeerAddress{}, err
	}
	defer e.b.DisposeFrame(f)
	if err := e.b.SendFrame(f, addr, 0, 0); err != nil {
		return transport.PeerAddress{}, err
	}

	e.mu.Lock()
	e.peer = addr
	e.connected = true
	e.mu.Unlock()
	return addr, nil
}

func (e *streamEndpoint) Wait(ctx context.Context) (transport.PeerAddress, error) {
	if addr, ok := e.attached(); ok {
		return addr, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.life, cancel)
	defer stop()

	f, err := e.b.NewFrame()
	if err != nil {
		return transport.PeerAddress{}, err
	}
	defer e.b.DisposeFrame(f)

	if err := e.b.ReceiveFrame(ctx, f); err != nil {
		return transport.PeerAddress{}, err
	}
	return e.attach(f), nil
}

func (e *streamEndpoint) Poll() (transport.PeerAddress, bool) {
	if addr, ok := e.attached(); ok {
		return addr, true
	}
	f, err := e.b.NewFrame()
	if err != nil {
		return transport.PeerAddress{}, false
	}
	defer e.b.DisposeFrame(f)

	ok, err := e.b.PollFrame(f)
	if err != nil || !ok {
		return transport.PeerAddress{}, false
	}
	return e.attach(f), true
}

func (e *streamEndpoint) attached() (transport.PeerAddress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peer, e.connected
}

// attach binds the endpoint to f's sender and keeps its payload for the
// first Read.
func (e *streamEndpoint) attach(f *Frame) transport.PeerAddress {
	e.mu.Lock()
	e.peer = f.Address
	e.connected = true
	e.mu.Unlock()

	e.rmu.Lock()
	e.pending = append(e.pending, f.Payload()...)
	e.rmu.Unlock()
	return f.Address
}

// Read returns buffered stream bytes, receiving frames from the bound
// peer as needed.
func (e *streamEndpoint) Read(p []byte) (int, error) {
	e.rmu.Lock()
	defer e.rmu.Unlock()

	for len(e.pending) == 0 {
		peer, ok := e.attached()
		if !ok {
			return 0, net.ErrClosed
		}

		f, err := e.b.NewFrame()
		if err != nil {
			return 0, err
		}
		err = e.b.ReceiveFrame(e.life, f)
		if err == nil && samePeer(peer, f.Address) {
			e.pending = append(e.pending, f.Payload()...)
		}
		e.b.DisposeFrame(f)
		if err != nil {
			return 0, err
		}
	}

	n := copy(p, e.pending)
	e.pending = e.pending[n:]
	return n, nil
}

// Write sends p as one frame, or as consecutive full frames when p is
// larger than MaxFrameBytes.
func (e *streamEndpoint) Write(p []byte) (int, error) {
	e.wmu.Lock()
	defer e.wmu.Unlock()

	if e.life.Err() != nil {
		return 0, net.ErrClosed
	}
	peer, ok := e.attached()
	if !ok {
		return 0, net.ErrClosed
	}

	f, err := e.b.NewFrame()
	if err != nil {
		return 0, err
	}
	defer e.b.DisposeFrame(f)

	written := 0
	for written < len(p) {
		chunk := p[written:]
		if len(chunk) > MaxFrameBytes {
			chunk = chunk[:MaxFrameBytes]
		}
		f.SetPayload(chunk) //nolint:errcheck // chunk is bounded above
		if err := e.b.SendFrame(f, peer, 0, 0); err != nil {
			return written, err
		}
		written += len(chunk)
	}
	return written, nil
}

// Close detaches from the peer and unblocks pending reads and waits.
// Datagrams have no send queue, so abort and graceful close coincide.
func (e *streamEndpoint) Close(bool) error {
	e.cancel()
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
	return nil
}

func (e *streamEndpoint) Dispose() error {
	e.cancel()
	return e.b.Close()
}

// samePeer compares ports, and hosts when both are literal IPs.
func samePeer(want, got transport.PeerAddress) bool {
	if want.Port != got.Port {
		return false
	}
	if want.Host == got.Host {
		return true
	}
	a, b := net.ParseIP(want.Host), net.ParseIP(got.Host)
	if a == nil || b == nil {
		return a == nil
	}
	return a.Equal(b)
}
