package datagram

import (
	"fmt"
	"net"
	"sync"

	"netstream/internal/transport"
)

// LoopbackHost is the host reported for loopback peers.
const LoopbackHost = "loopback"

// firstEphemeral is where automatic loopback port numbers start.
const firstEphemeral = 49152

// Loopback is an in-process datagram network.  Unlike UDP it carries the
// protocol type with each datagram.  Delivery is best-effort: a full
// inbox drops the datagram, as does an unbound destination port.
type Loopback struct {
	mu      sync.Mutex
	sockets map[uint16]*loopSocket
	next    uint16
	inbox   int
}

// NewLoopback returns an empty loopback network whose sockets queue up
// to inbox datagrams each.
func NewLoopback(inbox int) *Loopback {
	if inbox <= 0 {
		inbox = 64
	}
	return &Loopback{sockets: make(map[uint16]*loopSocket), next: firstEphemeral, inbox: inbox}
}

func (l *Loopback) Name() string    { return "loop" }
func (l *Loopback) Available() bool { return true }

// Address returns the loopback address of port.
func (l *Loopback) Address(port uint16) transport.PeerAddress {
	return transport.PeerAddress{Network: "loop", Host: LoopbackHost, Port: port}
}

// Listen binds port, or the next free port when port is 0.
func (l *Loopback) Listen(port uint16) (Socket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if port == 0 {
		for i := 0; i < 1<<16; i++ {
			p := l.next
			l.next++
			if l.next == 0 {
				l.next = firstEphemeral
			}
			if _, used := l.sockets[p]; !used && p != 0 {
				port = p
				break
			}
		}
		if port == 0 {
			return nil, fmt.Errorf("loopback: no free ports")
		}
	} else if _, used := l.sockets[port]; used {
		return nil, fmt.Errorf("loopback: port %d already bound", port)
	}

	s := &loopSocket{
		net:   l,
		port:  port,
		inbox: make(chan loopDatagram, l.inbox),
		done:  make(chan struct{}),
	}
	l.sockets[port] = s
	return s, nil
}

func (l *Loopback) lookup(port uint16) *loopSocket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sockets[port]
}

func (l *Loopback) release(s *loopSocket) {
	l.mu.Lock()
	if l.sockets[s.port] == s {
		delete(l.sockets, s.port)
	}
	l.mu.Unlock()
}

type loopDatagram struct {
	data  []byte
	from  uint16
	ptype uint8
}

type loopSocket struct {
	net   *Loopback
	port  uint16
	inbox chan loopDatagram
	done  chan struct{}
	once  sync.Once
}

func (s *loopSocket) WriteTo(p []byte, to transport.PeerAddress, protocolType uint8) error {
	select {
	case <-s.done:
		return net.ErrClosed
	default:
	}

	dst := s.net.lookup(to.Port)
	if dst == nil {
		return nil
	}
	d := loopDatagram{data: append([]byte(nil), p...), from: s.port, ptype: protocolType}
	select {
	case dst.inbox <- d:
	case <-dst.done:
	default:
	}
	return nil
}

func (s *loopSocket) ReadFrom(p []byte) (int, transport.PeerAddress, uint8, error) {
	select {
	case d := <-s.inbox:
		n := copy(p, d.data)
		return n, s.net.Address(d.from), d.ptype, nil
	case <-s.done:
		return 0, transport.PeerAddress{}, 0, net.ErrClosed
	}
}

func (s *loopSocket) LocalPort() uint16 { return s.port }

func (s *loopSocket) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.net.release(s)
	})
	return nil
}
