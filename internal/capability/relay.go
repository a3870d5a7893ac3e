package capability

import (
	"bufio"
	"bytes"
	"context"
	"sync"

	"netstream/internal/protocol"
	"netstream/internal/session"
)

// Relay sends each stdin line as chat packets and prints the peer's
// chat on stdout.  Local EOF sends a goodbye.  A goodbye from the peer
// is answered with one and ends the session.
type Relay struct{}

// Handle runs the chat relay.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	if err := sendHello(sess); err != nil {
		return err
	}

	var once sync.Once
	var byeErr error
	goodbye := func() error {
		once.Do(func() { byeErr = sess.Conn.SendPacket(protocol.TypeGoodbye, nil) })
		return byeErr
	}

	done := make(chan error, 2)
	go func() {
		err := dispatch(sess, func(typ uint16, payload []byte) error {
			if typ != protocol.TypeChat {
				sess.Logger.Debug("ignoring packet type %d", typ)
				return nil
			}
			text := bytes.TrimRight(payload, "\x00")
			_, err := sess.Stdout.Write(append(text, '\n'))
			return err
		})
		if err == nil {
			goodbye() //nolint:errcheck // the peer may already be gone
		}
		done <- err
	}()
	go func() {
		if err := r.pump(sess, goodbye); err != nil {
			done <- err
		}
	}()

	return waitFor(ctx, done)
}

// pump turns stdin lines into chat packets, splitting lines longer than
// one payload.
func (r *Relay) pump(sess *session.Session, goodbye func() error) error {
	sc := bufio.NewScanner(sess.Stdin)
	for sc.Scan() {
		for _, chunk := range ChatChunks(sc.Text()) {
			if err := sess.Conn.SendPacket(protocol.TypeChat, chunk); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		sess.Logger.Warn("stdin: %v", err)
	}
	return goodbye()
}

// ChatChunks splits a line into NUL-padded chat payloads.  An empty
// line yields one empty payload.
func ChatChunks(line string) [][]byte {
	var out [][]byte
	for {
		p := make([]byte, protocol.ChatLength)
		n := copy(p, line)
		out = append(out, p)
		line = line[n:]
		if line == "" {
			return out
		}
	}
}
