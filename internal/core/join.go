package core

import (
	"context"
	"time"

	"netstream/internal/capability"
	"netstream/internal/retry"
)

// JoinMode allocates an endpoint, connects to a hosted session, and runs
// a capability on the resulting stream.  Refused connects are retried
// with backoff.
type JoinMode struct {
	*Runtime
	Capability capability.Capability
	PeerIndex  int
	Backoff    *retry.Backoff
	Timeout    time.Duration // bounds the whole connect phase, 0 for none
}

// Run joins a single session.  Everything is released when Run returns.
func (m *JoinMode) Run(ctx context.Context) error {
	defer m.shutdown()

	if err := m.Conn.EstablishConnectionEnd(ctx); err != nil {
		return err
	}

	openCtx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	m.Logger.Verbose("opening player %d over %s", m.PeerIndex, m.Conn.Kind())
	open := func(int) error {
		return m.Conn.OpenConnection(openCtx, m.PeerIndex)
	}
	var err error
	if m.Backoff != nil {
		err = m.Backoff.Do(openCtx, open)
	} else {
		err = open(1)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	return m.serve(ctx, m.Capability)
}
