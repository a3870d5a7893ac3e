package transport

import (
	"net"

	"netstream/util"
)

// PeerAddress is a backend-neutral peer location: a network id, a
// sub-address within it and a port.  Modem peers leave Host empty.
type PeerAddress struct {
	Network string // "tcp", "udp", "loop", "unix", "pipe"
	Host    string
	Port    uint16
}

// IsZero reports whether a is the empty address.
func (a PeerAddress) IsZero() bool { return a == PeerAddress{} }

func (a PeerAddress) String() string {
	if a.IsZero() {
		return "<none>"
	}
	if a.Port == 0 {
		if a.Host == "" {
			return a.Network
		}
		return a.Network + ":" + a.Host
	}
	return util.FormatAddr(a.Host, a.Port)
}

// HostPort returns "host:port" for dialing.
func (a PeerAddress) HostPort() string {
	return util.FormatAddr(a.Host, a.Port)
}

// WithPort returns a copy of a with its port replaced.
func (a PeerAddress) WithPort(port uint16) PeerAddress {
	a.Port = port
	return a
}

// AddressOf converts a net.Addr into a PeerAddress.  Addresses without
// a numeric port keep the whole string as Host.
func AddressOf(addr net.Addr) PeerAddress {
	if addr == nil {
		return PeerAddress{}
	}
	host, port, err := util.SplitAddr(addr.String())
	if err != nil {
		return PeerAddress{Network: addr.Network(), Host: addr.String()}
	}
	return PeerAddress{Network: addr.Network(), Host: host, Port: port}
}

// Peer names the remote side of a connection.  Index is the session
// layer's player index; backends that have no addressing (modem) use
// only the index.
type Peer struct {
	Index int
	Addr  PeerAddress
}
