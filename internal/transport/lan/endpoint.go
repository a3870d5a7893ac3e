package lan

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	nserr "netstream/internal/errors"
	"netstream/internal/transport"
)

// endpoint is one TCP connection end.  A background accept loop hands
// the first inbound connection to Wait or Poll; later ones are refused
// by closing them.
type endpoint struct {
	opts Options
	ln   net.Listener

	accepted chan net.Conn // capacity 1
	closing  chan struct{} // closed by Close and Dispose
	acceptWG sync.WaitGroup

	mu         sync.Mutex
	conn       net.Conn
	closeOnce  sync.Once
	disposeErr error
	disposed   bool
}

func newEndpoint(ln net.Listener, opts Options) *endpoint {
	e := &endpoint{
		opts:     opts,
		ln:       ln,
		accepted: make(chan net.Conn, 1),
		closing:  make(chan struct{}),
	}
	e.acceptWG.Add(1)
	go e.acceptLoop()
	return e
}

func (e *endpoint) acceptLoop() {
	defer e.acceptWG.Done()
	for {
		c, err := e.ln.Accept()
		if err != nil {
			select {
			case <-e.closing:
				return
			default:
			}
			if nserr.Is(err, net.ErrClosed) {
				return
			}
			e.opts.Logger.Debug("accept: %v", err)
			continue
		}

		e.mu.Lock()
		busy := e.conn != nil
		e.mu.Unlock()
		if busy {
			e.opts.Logger.Verbose("refusing %s: already connected", c.RemoteAddr())
			c.Close()
			continue
		}

		select {
		case e.accepted <- c:
			e.opts.Logger.Debug("accepted %s", c.RemoteAddr())
		default:
			e.opts.Logger.Verbose("refusing %s: a peer is already waiting", c.RemoteAddr())
			c.Close()
		}
	}
}

func (e *endpoint) SocketID() uint16 {
	return transport.AddressOf(e.ln.Addr()).Port
}

func (e *endpoint) Open(ctx context.Context, peer transport.Peer) (transport.PeerAddress, error) {
	addr := peer.Addr
	if addr.Host == "" || addr.Port == 0 {
		return transport.PeerAddress{}, nserr.New("open "+addr.String(), nserr.ErrConnectionRefused)
	}

	e.opts.Metrics.OpenAttempt()
	c, err := e.opts.Dialer.Dial(ctx, "tcp", addr.HostPort())
	if err != nil {
		return transport.PeerAddress{}, nserr.WrapDial("open", addr.HostPort(), err)
	}

	e.mu.Lock()
	if e.conn != nil {
		e.mu.Unlock()
		c.Close()
		return transport.PeerAddress{}, nserr.New("open", nserr.ErrInvalidConnectionState)
	}
	e.conn = c
	e.mu.Unlock()

	e.opts.Logger.Verbose("connected to %s", c.RemoteAddr())
	return remoteOf(c, addr), nil
}

func (e *endpoint) Wait(ctx context.Context) (transport.PeerAddress, error) {
	select {
	case c := <-e.accepted:
		return e.adopt(c)
	case <-ctx.Done():
		return transport.PeerAddress{}, nserr.Wrap("wait", e.ln.Addr().String(), nserr.ErrIO, ctx.Err())
	case <-e.closing:
		return transport.PeerAddress{}, nserr.Wrap("wait", e.ln.Addr().String(), nserr.ErrIO, net.ErrClosed)
	}
}

func (e *endpoint) Poll() (transport.PeerAddress, bool) {
	e.mu.Lock()
	c := e.conn
	e.mu.Unlock()
	if c != nil {
		return transport.AddressOf(c.RemoteAddr()), true
	}

	select {
	case c := <-e.accepted:
		addr, err := e.adopt(c)
		return addr, err == nil
	default:
		return transport.PeerAddress{}, false
	}
}

// adopt makes c the endpoint's connection.
func (e *endpoint) adopt(c net.Conn) (transport.PeerAddress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		c.Close()
		return transport.PeerAddress{}, nserr.New("wait", nserr.ErrInvalidConnectionState)
	}
	e.conn = c
	e.opts.Logger.Verbose("connection from %s", c.RemoteAddr())
	return transport.AddressOf(c.RemoteAddr()), nil
}

func (e *endpoint) current() net.Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn
}

func (e *endpoint) Read(p []byte) (int, error) {
	c := e.current()
	if c == nil {
		return 0, net.ErrClosed
	}
	return c.Read(p)
}

func (e *endpoint) Write(p []byte) (int, error) {
	c := e.current()
	if c == nil {
		return 0, net.ErrClosed
	}
	return c.Write(p)
}

// Close tears down the connection.  abort resets it (unsent data is
// discarded); otherwise the write side is shut down and input drained
// until EOF or the grace period ends.  The listener stays open.
func (e *endpoint) Close(abort bool) error {
	e.closeOnce.Do(func() { close(e.closing) })

	e.mu.Lock()
	c := e.conn
	e.mu.Unlock()
	if c == nil {
		return nil
	}

	if abort {
		if tc, ok := c.(*net.TCPConn); ok {
			tc.SetLinger(0) //nolint:errcheck // best effort
		}
		return c.Close()
	}

	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err == nil {
			c.SetReadDeadline(time.Now().Add(e.opts.Grace)) //nolint:errcheck
			io.Copy(io.Discard, c)                          //nolint:errcheck // drain until EOF or deadline
		}
	}
	return c.Close()
}

// Dispose closes the connection, if any, and the listener.
func (e *endpoint) Dispose() error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return e.disposeErr
	}
	e.disposed = true
	c := e.conn
	e.conn = nil
	e.mu.Unlock()

	e.closeOnce.Do(func() { close(e.closing) })
	if c != nil {
		c.Close()
	}
	err := e.ln.Close()
	e.acceptWG.Wait()

	// A connection accepted but never claimed.
	select {
	case c := <-e.accepted:
		c.Close()
	default:
	}

	if err != nil {
		e.disposeErr = nserr.Wrap("dispose", e.ln.Addr().String(), nserr.ErrIO, err)
	}
	return e.disposeErr
}

// remoteOf prefers the socket's view of the peer, falling back to the
// address that was dialed (tunnelled connections report none).
func remoteOf(c net.Conn, dialed transport.PeerAddress) transport.PeerAddress {
	if a := transport.AddressOf(c.RemoteAddr()); a.Port != 0 {
		return a
	}
	dialed.Network = "tcp"
	return dialed
}
