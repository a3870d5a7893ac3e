// Package session represents a single connection lifecycle, binding a
// packet connection with I/O endpoints.
//
// Sessions decouple capabilities from concrete I/O sources: a
// capability doesn't need to know whether it's reading from os.Stdin
// or a test buffer, it just uses the session's Reader/Writer.
package session

import (
	"io"

	"netstream/internal/transport"
	"netstream/util"
)

// PacketConn is the packet surface of an open stream connection.
type PacketConn interface {
	SendPacket(typ uint16, payload []byte) error
	ReceivePacket() (uint16, []byte, error)
}

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Conn   PacketConn
	Peer   transport.PeerAddress
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger
}

// New creates a Session bound to the given connection and I/O pair.
func New(conn PacketConn, peer transport.PeerAddress, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	if logger == nil {
		logger = util.NopLogger()
	}
	return &Session{
		Conn:   conn,
		Peer:   peer,
		Stdin:  stdin,
		Stdout: stdout,
		Logger: logger,
	}
}
