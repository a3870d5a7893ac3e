// Package stream implements the reliable packet stream: a connection
// lifecycle state machine over whichever transport the Registry has
// selected, carrying packets framed by a 2-byte type tag whose payload
// length comes from a shared protocol.Table.
//
// Each packet is a big-endian uint16 type followed by exactly
// Table.Length(type) payload bytes.  No length travels on the wire, so
// both peers must use tables with the same Fingerprint.
package stream

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"

	"netstream/config"
	nserr "netstream/internal/errors"
	"netstream/internal/metrics"
	"netstream/internal/protocol"
	"netstream/internal/transport"
	"netstream/util"
)

// Options configures a Conn.
type Options struct {
	Table     *protocol.Table // protocol.Default() when nil
	Directory Directory       // resolves player indexes for OpenConnection
	Logger    *util.Logger
	Metrics   *metrics.Collector
}

// Conn is one end of a packet stream.
//
// Lifecycle operations are serialised by an internal lock.  SendPacket
// and ReceivePacket each take their own lock, so one sender and one
// receiver may run concurrently with each other and with
// CheckConnectionStatus or CloseConnection.
type Conn struct {
	registry *transport.Registry
	table    *protocol.Table
	dir      Directory
	logger   *util.Logger
	metrics  *metrics.Collector

	mu      sync.Mutex
	state   State
	kind    transport.Kind
	ep      transport.Endpoint
	peer    transport.PeerAddress
	pending context.CancelFunc // cancels an in-flight open or wait

	rmu sync.Mutex
	wmu sync.Mutex
}

// New returns an Uninitialized connection that will use whatever
// transport reg has selected when EstablishConnectionEnd runs.
func New(reg *transport.Registry, opts Options) *Conn {
	if opts.Table == nil {
		opts.Table = protocol.Default()
	}
	if opts.Logger == nil {
		opts.Logger = util.NopLogger()
	}
	return &Conn{
		registry: reg,
		table:    opts.Table,
		dir:      opts.Directory,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Kind returns the transport the endpoint was established on, or the
// registry's current kind before that.
func (c *Conn) Kind() transport.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ep == nil {
		return c.registry.Kind()
	}
	return c.kind
}

// Table returns the packet table.
func (c *Conn) Table() *protocol.Table { return c.table }

func (c *Conn) invalid(op string) error {
	return nserr.New(op+" ("+c.state.String()+")", nserr.ErrInvalidConnectionState)
}

// ── Lifecycle ────────────────────────────────────────────────────────

// EstablishConnectionEnd allocates a local endpoint on the active
// transport.
func (c *Conn) EstablishConnectionEnd(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Uninitialized {
		return c.invalid("establish")
	}

	backend, err := c.registry.Backend()
	if err != nil {
		return nserr.Wrap("establish", "", nserr.ErrEndpointAllocationFailed, err)
	}
	ep, err := backend.Establish(ctx)
	if err != nil {
		c.metrics.RecordError(err.Error())
		if nserr.Is(err, nserr.ErrEndpointAllocationFailed) {
			return err
		}
		return nserr.Wrap("establish", backend.Kind().String(), nserr.ErrEndpointAllocationFailed, err)
	}

	c.ep = ep
	c.kind = backend.Kind()
	c.state = EndpointReady
	c.logger.Verbose("%s endpoint ready on socket %d, packet table %016x",
		c.kind, ep.SocketID(), c.table.Fingerprint())
	return nil
}

// DisposeConnectionEnd releases the endpoint of a closed connection.
func (c *Conn) DisposeConnectionEnd() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Closed {
		return c.invalid("dispose")
	}

	err := c.ep.Dispose()
	c.ep = nil
	c.peer = transport.PeerAddress{}
	c.state = Uninitialized
	if err != nil {
		return nserr.Wrap("dispose", "", nserr.ErrIO, err)
	}
	return nil
}

// OpenConnection actively connects to the player at index, resolving
// its address through the Directory.  Modem lines need no address.
func (c *Conn) OpenConnection(ctx context.Context, index int) error {
	peer := transport.Peer{Index: index}
	if c.dir != nil {
		addr, err := c.dir.PeerAddress(index)
		switch {
		case err == nil:
			peer.Addr = addr
		case c.Kind() != transport.Modem:
			return nserr.Wrap("open", "player "+strconv.Itoa(index), nserr.ErrConnectionRefused, err)
		}
	}
	return c.open(ctx, peer)
}

// OpenConnectionTo actively connects to addr.
func (c *Conn) OpenConnectionTo(ctx context.Context, addr transport.PeerAddress) error {
	return c.open(ctx, transport.Peer{Addr: addr})
}

func (c *Conn) open(ctx context.Context, peer transport.Peer) error {
	ep, ctx, done, err := c.begin(ctx, "open")
	if err != nil {
		return err
	}
	defer done()

	addr, err := ep.Open(ctx, peer)
	return c.finish("open", addr, err)
}

// WaitForConnection blocks until a peer attaches, ctx is done, or the
// connection is closed from another goroutine.
func (c *Conn) WaitForConnection(ctx context.Context) error {
	ep, ctx, done, err := c.begin(ctx, "wait")
	if err != nil {
		return err
	}
	defer done()

	addr, err := ep.Wait(ctx)
	return c.finish("wait", addr, err)
}

// begin moves EndpointReady → Connecting and returns a context that
// CloseConnection can cancel.
func (c *Conn) begin(ctx context.Context, op string) (transport.Endpoint, context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != EndpointReady {
		return nil, nil, nil, c.invalid(op)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.pending = cancel
	c.state = Connecting
	return c.ep, ctx, cancel, nil
}

// finish settles a Connecting connection.  If it was closed meanwhile
// the close wins.
func (c *Conn) finish(op string, addr transport.PeerAddress, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = nil
	if c.state != Connecting {
		if err == nil {
			err = net.ErrClosed
		}
		return nserr.Wrap(op, addr.String(), nserr.ErrIO, err)
	}

	if err != nil {
		c.state = EndpointReady
		c.metrics.RecordError(err.Error())
		if !nserr.Is(err, nserr.ErrConnectionRefused) && !nserr.Is(err, nserr.ErrIO) &&
			!nserr.Is(err, nserr.ErrUnsupportedTransportKind) {
			err = nserr.Wrap(op, addr.String(), nserr.ErrIO, err)
		}
		return err
	}

	c.peer = addr
	c.state = Connected
	c.metrics.ConnectionOpened()
	c.logger.Info("%s connection with %s", c.kind, addr)
	return nil
}

// CheckConnectionStatus reports whether a peer is attached.  On an
// endpoint with no wait in progress it also polls the backend, so a
// passive end can connect without ever calling WaitForConnection.
func (c *Conn) CheckConnectionStatus() (bool, transport.PeerAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Connected:
		return true, c.peer
	case EndpointReady:
		addr, ok := c.ep.Poll()
		if !ok {
			return false, transport.PeerAddress{}
		}
		c.peer = addr
		c.state = Connected
		c.metrics.ConnectionOpened()
		c.logger.Info("%s connection with %s", c.kind, addr)
		return true, addr
	default:
		return false, transport.PeerAddress{}
	}
}

// CloseConnection tears the connection down.  abort discards unsent
// data; otherwise the backend drains for its grace period.  A pending
// open, wait, or receive is unblocked.  The endpoint stays allocated
// until DisposeConnectionEnd.
func (c *Conn) CloseConnection(abort bool) error {
	c.mu.Lock()
	switch c.state {
	case Connected, Connecting, EndpointReady:
	default:
		err := c.invalid("close")
		c.mu.Unlock()
		return err
	}
	wasConnected := c.state == Connected
	c.state = Closing
	if c.pending != nil {
		c.pending()
	}
	ep := c.ep
	c.mu.Unlock()

	err := ep.Close(abort)

	c.mu.Lock()
	c.state = Closed
	c.mu.Unlock()

	if wasConnected {
		c.metrics.ConnectionClosed()
	}
	c.logger.Verbose("%s connection closed (abort=%v)", c.kind, abort)
	if err != nil {
		return nserr.Wrap("close", "", nserr.ErrIO, err)
	}
	return nil
}

// ── Addressing ───────────────────────────────────────────────────────

// GetStreamAddress returns the connected peer's address.
func (c *Conn) GetStreamAddress() (transport.PeerAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected {
		return transport.PeerAddress{}, c.invalid("address")
	}
	return c.peer, nil
}

// GetStreamSocketIdentifier returns the endpoint's local socket id, or
// the default port when no endpoint exists.
func (c *Conn) GetStreamSocketIdentifier() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ep == nil {
		return config.DefaultPort
	}
	return c.ep.SocketID()
}

// ── Packets ──────────────────────────────────────────────────────────

// connected returns the endpoint if the connection is Connected.
func (c *Conn) connected(op string) (transport.Endpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected {
		return nil, c.invalid(op)
	}
	return c.ep, nil
}

// SendPacket writes one packet.  The type must be in the table and the
// payload exactly its registered length; both are checked before any
// I/O.  A failed or short write is an IOError and leaves the
// connection Connected.
func (c *Conn) SendPacket(typ uint16, payload []byte) error {
	ep, err := c.connected("send")
	if err != nil {
		return err
	}

	n, ok := c.table.Length(typ)
	if !ok {
		return nserr.New("send type "+strconv.Itoa(int(typ)), nserr.ErrUnknownPacketType)
	}
	if len(payload) != n {
		return nserr.New("send "+c.table.Name(typ)+": "+strconv.Itoa(len(payload))+" bytes, want "+strconv.Itoa(n),
			nserr.ErrPayloadLengthMismatch)
	}

	buf := make([]byte, protocol.HeaderSize+n)
	protocol.PutHeader(buf, typ)
	copy(buf[protocol.HeaderSize:], payload)

	c.wmu.Lock()
	defer c.wmu.Unlock()

	written, err := ep.Write(buf)
	if err == nil && written != len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.metrics.RecordError(err.Error())
		return nserr.Wrap("send "+c.table.Name(typ), c.peerString(), nserr.ErrIO, err)
	}
	c.metrics.PacketSent(len(buf))
	c.logger.Debug("sent %s (%d bytes)", c.table.Name(typ), n)
	return nil
}

// ReceivePacket blocks for the next packet.  A type missing from the
// table fails with UnknownPacketType; the stream is then misframed and
// should be closed.
func (c *Conn) ReceivePacket() (uint16, []byte, error) {
	ep, err := c.connected("receive")
	if err != nil {
		return 0, nil, err
	}

	c.rmu.Lock()
	defer c.rmu.Unlock()

	var hdr [protocol.HeaderSize]byte
	if _, err := io.ReadFull(ep, hdr[:]); err != nil {
		return 0, nil, c.readFailed("receive header", err)
	}
	typ := protocol.Header(hdr[:])

	n, ok := c.table.Length(typ)
	if !ok {
		c.metrics.RecordError("unknown packet type " + strconv.Itoa(int(typ)))
		return typ, nil, nserr.New("receive type "+strconv.Itoa(int(typ)), nserr.ErrUnknownPacketType)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(ep, payload); err != nil {
		return typ, nil, c.readFailed("receive "+c.table.Name(typ), err)
	}
	c.metrics.PacketReceived(protocol.HeaderSize + n)
	c.logger.Debug("received %s (%d bytes)", c.table.Name(typ), n)
	return typ, payload, nil
}

func (c *Conn) readFailed(op string, err error) error {
	if err != io.EOF {
		c.metrics.RecordError(err.Error())
	}
	return nserr.Wrap(op, c.peerString(), nserr.ErrIO, err)
}

func (c *Conn) peerString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer.String()
}
