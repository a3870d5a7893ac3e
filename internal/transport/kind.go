package transport

import (
	"fmt"
	"strings"
)

// Kind identifies a transport backend.
type Kind int

const (
	AddressedStream Kind = iota // TCP-like, addressed by host and port
	Datagram                    // UDP-like frames, made stream-shaped by an adapter
	Modem                       // point-to-point line, at most two peers

	numKinds
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{AddressedStream, Datagram, Modem}

func (k Kind) String() string {
	switch k {
	case AddressedStream:
		return "lan"
	case Datagram:
		return "datagram"
	case Modem:
		return "modem"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return k >= 0 && k < numKinds }

// ParseKind maps a configuration name to a Kind.  "tcp" and "udp" are
// accepted as aliases.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lan", "tcp", "stream", "":
		return AddressedStream, nil
	case "datagram", "udp":
		return Datagram, nil
	case "modem", "line":
		return Modem, nil
	default:
		return -1, fmt.Errorf("unknown transport %q", name)
	}
}
