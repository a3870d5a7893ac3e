package datagram

import (
	"context"
	"sync"

	nserr "netstream/internal/errors"
	"netstream/internal/metrics"
	"netstream/internal/transport"
	"netstream/util"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxFrames = 64
	DefaultQueueLen  = 128
)

// Options configures a Backend.
type Options struct {
	Network   Network // UDPNetwork{} when nil
	Port      uint16  // local port; 0 binds a free one
	MaxFrames int     // frames outstanding at once
	QueueLen  int     // received datagrams buffered before drops
	Logger    *util.Logger
	Metrics   *metrics.Collector
}

func (o Options) withDefaults() Options {
	if o.Network == nil {
		o.Network = UDPNetwork{}
	}
	if o.MaxFrames <= 0 {
		o.MaxFrames = DefaultMaxFrames
	}
	if o.QueueLen <= 0 {
		o.QueueLen = DefaultQueueLen
	}
	if o.Logger == nil {
		o.Logger = util.NopLogger()
	}
	return o
}

type inbound struct {
	data  []byte
	from  transport.PeerAddress
	ptype uint8
}

// Backend is the frame service: one bound socket, a bounded pool of
// frames and a background reader feeding a bounded receive queue.
type Backend struct {
	opts Options

	mu       sync.Mutex
	sock     Socket
	frames   *framePool
	sendBufs *util.BufPool
	queue    chan inbound
	done     chan struct{} // closed by Close
	stopped  chan struct{} // closed when the read loop exits
}

// New returns a closed Backend.
func New(opts Options) *Backend {
	return &Backend{opts: opts.withDefaults()}
}

// Available reports whether the configured network can bind sockets.
func (b *Backend) Available() bool { return b.opts.Network.Available() }

// Open allocates the frame pool and binds the socket.  Opening an open
// backend is a no-op.
func (b *Backend) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sock != nil {
		return nil
	}

	frames := newFramePool(b.opts.MaxFrames)
	sendBufs := util.NewBufPool(MaxFrameBytes, b.opts.MaxFrames)

	sock, err := b.opts.Network.Listen(b.opts.Port)
	if err != nil {
		addr := transport.PeerAddress{Network: b.opts.Network.Name(), Port: b.opts.Port}
		return nserr.Wrap("open datagram socket", addr.String(), nserr.ErrSocketOpenFailed, err)
	}

	b.sock = sock
	b.frames = frames
	b.sendBufs = sendBufs
	b.queue = make(chan inbound, b.opts.QueueLen)
	b.done = make(chan struct{})
	b.stopped = make(chan struct{})

	go b.readLoop(sock, b.queue, b.done, b.stopped)

	b.opts.Logger.Verbose("datagram socket bound on %s port %d", b.opts.Network.Name(), sock.LocalPort())
	return nil
}

// Close releases the socket and frame pool.  It is idempotent.  Frames
// still held by callers stay valid memory but can no longer be sent.
func (b *Backend) Close() error {
	b.mu.Lock()
	sock, done, stopped := b.sock, b.done, b.stopped
	b.sock = nil
	b.frames = nil
	b.sendBufs = nil
	b.mu.Unlock()

	if sock == nil {
		return nil
	}
	close(done)
	err := sock.Close()
	<-stopped
	if err != nil {
		return nserr.Wrap("close datagram socket", "", nserr.ErrIO, err)
	}
	return nil
}

// LocalPort returns the bound port, or 0 when closed.
func (b *Backend) LocalPort() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sock == nil {
		return 0
	}
	return b.sock.LocalPort()
}

// NewFrame returns a zeroed frame stamped with the socket id.
func (b *Backend) NewFrame() (*Frame, error) {
	b.mu.Lock()
	frames, sock := b.frames, b.sock
	b.mu.Unlock()

	if frames == nil {
		return nil, nserr.New("new frame", nserr.ErrInvalidConnectionState)
	}
	f, ok := frames.get()
	if !ok {
		return nil, nserr.New("new frame", nserr.ErrOutOfMemory)
	}
	f.reset(sock.LocalPort())
	return f, nil
}

// DisposeFrame returns f to the pool.  nil and already disposed frames
// are ignored.
func (b *Backend) DisposeFrame(f *Frame) {
	if f == nil || f.disposed {
		return
	}
	f.disposed = true

	b.mu.Lock()
	frames := b.frames
	b.mu.Unlock()
	if frames != nil {
		frames.put(f)
	}
}

// OutstandingFrames returns how many frames are currently allocated.
func (b *Backend) OutstandingFrames() int {
	b.mu.Lock()
	frames := b.frames
	b.mu.Unlock()
	if frames == nil {
		return 0
	}
	return frames.outstanding()
}

// SendFrame transmits f's payload to addr.  A non-zero port overrides
// the address port.  The payload is copied into a buffer owned by this
// call, so concurrent sends are safe and f may be reused on return.
func (b *Backend) SendFrame(f *Frame, addr transport.PeerAddress, protocolType uint8, port uint16) error {
	if f == nil {
		return nserr.New("send frame", nserr.ErrInvalidConnectionState)
	}
	if f.Length > MaxFrameBytes || f.Length < 0 {
		return nserr.New("send frame", nserr.ErrPayloadTooLarge)
	}

	b.mu.Lock()
	sock, bufs := b.sock, b.sendBufs
	b.mu.Unlock()
	if sock == nil {
		return nserr.New("send frame", nserr.ErrInvalidConnectionState)
	}

	if port != 0 {
		addr.Port = port
	}

	buf, ok := bufs.Get()
	if !ok {
		return nserr.New("send frame", nserr.ErrOutOfMemory)
	}
	defer bufs.Put(buf)

	n := copy(*buf, f.Data[:f.Length])
	if err := sock.WriteTo((*buf)[:n], addr, protocolType); err != nil {
		b.opts.Metrics.RecordError(err.Error())
		return nserr.Wrap("send frame", addr.String(), nserr.ErrIO, err)
	}
	b.opts.Metrics.FrameSent()
	return nil
}

// ReceiveFrame blocks until a datagram arrives, ctx is done, or the
// backend closes, and copies it into f.
func (b *Backend) ReceiveFrame(ctx context.Context, f *Frame) error {
	b.mu.Lock()
	queue, done, sock := b.queue, b.done, b.sock
	b.mu.Unlock()

	if sock == nil {
		return nserr.New("receive frame", nserr.ErrInvalidConnectionState)
	}

	select {
	case in := <-queue:
		b.fill(f, in, sock.LocalPort())
		return nil
	case <-ctx.Done():
		return nserr.Wrap("receive frame", "", nserr.ErrIO, ctx.Err())
	case <-done:
		return nserr.New("receive frame", nserr.ErrIO)
	}
}

// PollFrame copies a queued datagram into f without blocking.  It
// reports false when none is waiting.
func (b *Backend) PollFrame(f *Frame) (bool, error) {
	b.mu.Lock()
	queue, sock := b.queue, b.sock
	b.mu.Unlock()

	if sock == nil {
		return false, nserr.New("poll frame", nserr.ErrInvalidConnectionState)
	}

	select {
	case in := <-queue:
		b.fill(f, in, sock.LocalPort())
		return true, nil
	default:
		return false, nil
	}
}

func (b *Backend) fill(f *Frame, in inbound, socket uint16) {
	f.Length = copy(f.Data[:], in.data)
	f.ProtocolType = in.ptype
	f.Address = in.from
	f.Socket = socket
	b.opts.Metrics.FrameReceived()
}

// readLoop moves datagrams from the socket into queue until the socket
// closes.  A full queue drops the datagram.
func (b *Backend) readLoop(sock Socket, queue chan<- inbound, done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	buf := make([]byte, MaxFrameBytes+1)
	for {
		n, from, ptype, err := sock.ReadFrom(buf)
		if err != nil {
			select {
			case <-done:
				return
			default:
			}
			if isClosed(err) {
				return
			}
			b.opts.Logger.Debug("datagram read: %v", err)
			continue
		}
		if n > MaxFrameBytes {
			b.opts.Logger.Debug("datagram from %s exceeds %d bytes, dropped", from, MaxFrameBytes)
			b.opts.Metrics.FrameDropped()
			continue
		}

		in := inbound{data: append([]byte(nil), buf[:n]...), from: from, ptype: ptype}
		select {
		case queue <- in:
		default:
			b.opts.Metrics.FrameDropped()
			b.opts.Logger.Debug("datagram queue full, dropped %d bytes from %s", n, from)
		}
	}
}
