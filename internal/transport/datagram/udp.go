package datagram

import (
	"fmt"
	"net"
	"strconv"

	"netstream/internal/transport"
)

// UDPNetwork binds UDP sockets on BindHost ("" for all interfaces).
// UDP has no protocol type field, so types are dropped on send and
// reported as 0 on receive.
type UDPNetwork struct {
	BindHost string
}

func (n UDPNetwork) Name() string { return "udp" }

// Available reports whether the bind address resolves.
func (n UDPNetwork) Available() bool {
	_, err := net.ResolveUDPAddr("udp", net.JoinHostPort(n.BindHost, "0"))
	return err == nil
}

// Listen binds a UDP socket.
func (n UDPNetwork) Listen(port uint16) (Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(n.BindHost, strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}
	pc, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &udpSocket{pc: pc}, nil
}

type udpSocket struct {
	pc *net.UDPConn
}

func (s *udpSocket) WriteTo(p []byte, to transport.PeerAddress, _ uint8) error {
	addr, err := net.ResolveUDPAddr("udp", to.HostPort())
	if err != nil {
		return err
	}
	n, err := s.pc.WriteToUDP(p, addr)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("short datagram write: %d of %d bytes", n, len(p))
	}
	return nil
}

func (s *udpSocket) ReadFrom(p []byte) (int, transport.PeerAddress, uint8, error) {
	n, addr, err := s.pc.ReadFromUDP(p)
	if err != nil {
		return 0, transport.PeerAddress{}, 0, err
	}
	return n, transport.AddressOf(addr), 0, nil
}

func (s *udpSocket) LocalPort() uint16 {
	return uint16(s.pc.LocalAddr().(*net.UDPAddr).Port)
}

func (s *udpSocket) Close() error { return s.pc.Close() }
