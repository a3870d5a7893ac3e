package transport

// Capabilities decides at runtime which backends a process links into
// its Registry.
type Capabilities struct {
	AddressedStream bool
	Datagram        bool
	Modem           bool
}

// DefaultCapabilities links the stream and datagram backends; the modem
// backend must be enabled explicitly.
func DefaultCapabilities() Capabilities {
	return Capabilities{AddressedStream: true, Datagram: true}
}

// Has reports whether k is enabled.
func (c Capabilities) Has(k Kind) bool {
	switch k {
	case AddressedStream:
		return c.AddressedStream
	case Datagram:
		return c.Datagram
	case Modem:
		return c.Modem
	default:
		return false
	}
}
