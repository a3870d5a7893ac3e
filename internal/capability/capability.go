// Package capability defines what happens over an established
// connection.  Each Capability encapsulates a single behaviour
// (relay chat, measure round trips) and operates on a Session rather
// than a raw stream connection, which keeps capabilities testable and
// decoupled from transport details.
package capability

import (
	"context"
	"encoding/binary"
	"io"

	nserr "netstream/internal/errors"
	"netstream/internal/protocol"
	"netstream/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.
type Capability interface {
	// Handle runs the capability against the given session.  It blocks
	// until the peer says goodbye, the stream fails, or the context is
	// cancelled.  Closing the connection is the caller's job.
	Handle(ctx context.Context, sess *session.Session) error
}

// sendHello announces the local protocol revision.
func sendHello(sess *session.Session) error {
	var p [2]byte
	binary.BigEndian.PutUint16(p[:], protocol.Revision)
	return sess.Conn.SendPacket(protocol.TypeHello, p[:])
}

// dispatch reads packets until goodbye or end of stream, answering
// pings and checking hellos.  Every other packet goes to fn.  A peer
// that hangs up without a goodbye ends the loop cleanly.
func dispatch(sess *session.Session, fn func(typ uint16, payload []byte) error) error {
	for {
		typ, payload, err := sess.Conn.ReceivePacket()
		if err != nil {
			if nserr.Is(err, io.EOF) {
				sess.Logger.Verbose("%s hung up", sess.Peer)
				return nil
			}
			return err
		}

		switch typ {
		case protocol.TypeHello:
			rev := binary.BigEndian.Uint16(payload)
			if rev != protocol.Revision {
				sess.Logger.Warn("peer speaks revision %d, this side %d", rev, protocol.Revision)
			} else {
				sess.Logger.Verbose("hello from %s (revision %d)", sess.Peer, rev)
			}
		case protocol.TypePing:
			if err := sess.Conn.SendPacket(protocol.TypePong, payload); err != nil {
				return err
			}
		case protocol.TypeGoodbye:
			sess.Logger.Verbose("%s said goodbye", sess.Peer)
			return nil
		default:
			if err := fn(typ, payload); err != nil {
				return err
			}
		}
	}
}

// waitFor returns the first result from done, or the context error.
func waitFor(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
