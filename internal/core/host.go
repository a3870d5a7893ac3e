package core

import (
	"context"
	"time"

	"netstream/internal/capability"
)

// HostMode allocates an endpoint, waits for one peer to attach, and runs
// a capability on the resulting stream.
type HostMode struct {
	*Runtime
	Capability capability.Capability
	Timeout    time.Duration // 0 waits forever
}

// Run hosts a single session.  Everything is released when Run returns.
func (m *HostMode) Run(ctx context.Context) error {
	defer m.shutdown()

	if err := m.Conn.EstablishConnectionEnd(ctx); err != nil {
		return err
	}
	m.Logger.Info("waiting for a peer on %s socket %d", m.Conn.Kind(), m.Conn.GetStreamSocketIdentifier())

	waitCtx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	if err := m.Conn.WaitForConnection(waitCtx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	return m.serve(ctx, m.Capability)
}
