// Package modem implements the point-to-point line transport.  A line
// joins exactly two players and has no addressing: the active side
// dials the line device and the passive side answers it.
//
// On POSIX systems the device is a unix domain socket path; on Windows
// it is a named pipe such as \\.\pipe\netstream.
package modem

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	nserr "netstream/internal/errors"
	"netstream/internal/metrics"
	"netstream/internal/transport"
	"netstream/util"
)

// MaxPlayers is the number of peers a line can join.
const MaxPlayers = 2

// Options configures a Backend.
type Options struct {
	Device  string        // line device path or pipe name
	Grace   time.Duration // graceful close drain limit
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Backend is the modem transport.
type Backend struct {
	opts Options
}

// New returns a Backend for the given line.
func New(opts Options) *Backend {
	if opts.Grace <= 0 {
		opts.Grace = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = util.NopLogger()
	}
	return &Backend{opts: opts}
}

func (b *Backend) Kind() transport.Kind { return transport.Modem }

// Available reports whether a line device is configured and reachable.
func (b *Backend) Available() bool {
	return b.opts.Device != "" && lineAvailable(b.opts.Device)
}

// Establish prepares an endpoint.  The line itself is only touched when
// the endpoint dials or answers.
func (b *Backend) Establish(ctx context.Context) (transport.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, nserr.Wrap("establish", b.opts.Device, nserr.ErrEndpointAllocationFailed, err)
	}
	if b.opts.Device == "" {
		return nil, nserr.New("establish", nserr.ErrEndpointAllocationFailed)
	}
	return &endpoint{
		opts:     b.opts,
		accepted: make(chan net.Conn, 1),
		closing:  make(chan struct{}),
	}, nil
}

type endpoint struct {
	opts Options

	mu        sync.Mutex
	ln        net.Listener
	conn      net.Conn
	accepted  chan net.Conn
	closing   chan struct{}
	closeOnce sync.Once
	answering sync.WaitGroup
}

func (e *endpoint) lineAddress() transport.PeerAddress {
	return transport.PeerAddress{Network: lineNetwork, Host: e.opts.Device}
}

func (e *endpoint) SocketID() uint16 { return 0 }

func (e *endpoint) Open(ctx context.Context, peer transport.Peer) (transport.PeerAddress, error) {
	if peer.Index < 0 || peer.Index >= MaxPlayers {
		return transport.PeerAddress{}, nserr.New("open player "+strconv.Itoa(peer.Index), nserr.ErrUnsupportedTransportKind)
	}

	e.opts.Metrics.OpenAttempt()
	c, err := dialLine(ctx, e.opts.Device)
	if err != nil {
		return transport.PeerAddress{}, nserr.WrapDial("open", e.opts.Device, err)
	}

	e.mu.Lock()
	if e.conn != nil {
		e.mu.Unlock()
		c.Close()
		return transport.PeerAddress{}, nserr.New("open", nserr.ErrInvalidConnectionState)
	}
	e.conn = c
	e.mu.Unlock()

	e.opts.Logger.Verbose("dialed line %s", e.opts.Device)
	return e.lineAddress(), nil
}

// answer starts listening on the line if nobody is yet.  The first
// caller is handed to Wait; later callers are hung up on while the line
// is busy.
func (e *endpoint) answer() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln != nil || e.conn != nil {
		return nil
	}

	ln, err := listenLine(e.opts.Device)
	if err != nil {
		return nserr.Wrap("answer", e.opts.Device, nserr.ErrIO, err)
	}
	e.ln = ln
	e.opts.Logger.Verbose("answering line %s", e.opts.Device)

	e.answering.Add(1)
	go e.answerLoop(ln)
	return nil
}

func (e *endpoint) answerLoop(ln net.Listener) {
	defer e.answering.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-e.closing:
				return
			default:
			}
			if nserr.Is(err, net.ErrClosed) {
				return
			}
			e.opts.Logger.Debug("answer: %v", err)
			continue
		}

		e.mu.Lock()
		busy := e.conn != nil
		e.mu.Unlock()
		if busy {
			e.opts.Logger.Verbose("hanging up on caller: line busy")
			c.Close()
			continue
		}

		select {
		case e.accepted <- c:
		default:
			e.opts.Logger.Verbose("hanging up on caller: a call is already pending")
			c.Close()
		}
	}
}

func (e *endpoint) Wait(ctx context.Context) (transport.PeerAddress, error) {
	if err := e.answer(); err != nil {
		return transport.PeerAddress{}, err
	}
	select {
	case c := <-e.accepted:
		return e.adopt(c)
	case <-ctx.Done():
		return transport.PeerAddress{}, nserr.Wrap("wait", e.opts.Device, nserr.ErrIO, ctx.Err())
	case <-e.closing:
		return transport.PeerAddress{}, nserr.Wrap("wait", e.opts.Device, nserr.ErrIO, net.ErrClosed)
	}
}

// Poll reports an established line.  It never starts answering: a
// line has no status to query short of picking up.
func (e *endpoint) Poll() (transport.PeerAddress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return transport.PeerAddress{}, false
	}
	return e.lineAddress(), true
}

func (e *endpoint) adopt(c net.Conn) (transport.PeerAddress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		c.Close()
		return transport.PeerAddress{}, nserr.New("wait", nserr.ErrInvalidConnectionState)
	}
	e.conn = c
	e.opts.Logger.Verbose("line %s answered", e.opts.Device)
	return e.lineAddress(), nil
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

// Close hangs up.  A graceful close half-closes where the line supports
// it and drains input for the grace period.
func (e *endpoint) Close(abort bool) error {
	e.closeOnce.Do(func() { close(e.closing) })

	e.mu.Lock()
	c, ln := e.conn, e.ln
	e.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
	if c == nil {
		return nil
	}

	if !abort {
		if cw, ok := c.(interface{ CloseWrite() error }); ok && cw.CloseWrite() == nil {
			c.SetReadDeadline(time.Now().Add(e.opts.Grace)) //nolint:errcheck
			io.Copy(io.Discard, c)                          //nolint:errcheck // drain until EOF or deadline
		}
	}
	return c.Close()
}

func (e *endpoint) Dispose() error {
	e.closeOnce.Do(func() { close(e.closing) })

	e.mu.Lock()
	c, ln := e.conn, e.ln
	e.conn, e.ln = nil, nil
	e.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	e.answering.Wait()
	select {
	case c := <-e.accepted:
		c.Close()
	default:
	}
	if c != nil {
		c.Close()
	}
	return nil
}
