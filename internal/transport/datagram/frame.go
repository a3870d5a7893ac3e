// Package datagram implements the datagram transport: unreliable,
// bounded-size frames exchanged over one bound socket, plus a stream
// adapter that lets the frame service back a stream connection.
package datagram

import (
	"sync"

	nserr "netstream/internal/errors"
	"netstream/internal/transport"
)

// MaxFrameBytes is the largest payload a frame can carry.
const MaxFrameBytes = 768

// Frame is one datagram.  Frames come from Backend.NewFrame and go back
// through Backend.DisposeFrame.
type Frame struct {
	Data         [MaxFrameBytes]byte
	Length       int
	ProtocolType uint8
	Address      transport.PeerAddress
	Socket       uint16

	disposed bool
}

// Payload returns the valid part of Data.
func (f *Frame) Payload() []byte {
	n := f.Length
	if n < 0 {
		n = 0
	}
	if n > MaxFrameBytes {
		n = MaxFrameBytes
	}
	return f.Data[:n]
}

// SetPayload copies p into the frame.
func (f *Frame) SetPayload(p []byte) error {
	if len(p) > MaxFrameBytes {
		return nserr.New("set payload", nserr.ErrPayloadTooLarge)
	}
	f.Length = copy(f.Data[:], p)
	return nil
}

func (f *Frame) reset(socket uint16) {
	*f = Frame{Socket: socket}
}

// framePool bounds the number of frames handed out at once.
type framePool struct {
	limit int

	mu   sync.Mutex
	out  int
	free sync.Pool
}

func newFramePool(limit int) *framePool {
	p := &framePool{limit: limit}
	p.free.New = func() interface{} { return new(Frame) }
	return p
}

func (p *framePool) get() (*Frame, bool) {
	p.mu.Lock()
	if p.limit > 0 && p.out >= p.limit {
		p.mu.Unlock()
		return nil, false
	}
	p.out++
	p.mu.Unlock()
	return p.free.Get().(*Frame), true
}

func (p *framePool) put(f *Frame) {
	p.mu.Lock()
	if p.out > 0 {
		p.out--
	}
	p.mu.Unlock()
	p.free.Put(f)
}

func (p *framePool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}
