// Package core is the orchestration layer.  It composes the transport
// registry, a stream connection and a capability into complete
// operational modes, and provides a builder that selects the right
// mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  stream  →  session/capability  →  core  →  cmd (CLI)
package core

import (
	"context"
	"io"
	"os"

	"netstream/internal/capability"
	"netstream/internal/metrics"
	"netstream/internal/session"
	"netstream/internal/stream"
	"netstream/internal/transport"
	"netstream/util"
)

// Mode represents a complete operational mode of netstream (host,
// join, or list).  Each mode owns its full lifecycle from endpoint
// allocation to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// Runtime is the per-process state shared by the connection modes.
type Runtime struct {
	Registry *transport.Registry
	Conn     *stream.Conn
	Metrics  *metrics.Collector
	Logger   *util.Logger

	// Dialer is closed when the mode ends; may be nil.
	Dialer transport.Dialer

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	Stdin  io.Reader
	Stdout io.Writer
}

func (r *Runtime) stdin() io.Reader {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runtime) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

// serve runs c on the connected stream, then closes and disposes the
// connection end.  Cancelling ctx aborts the connection so a blocked
// receive returns.
func (r *Runtime) serve(ctx context.Context, c capability.Capability) error {
	peer, err := r.Conn.GetStreamAddress()
	if err != nil {
		return err
	}
	r.Logger.Info("connected to %s over %s", peer, r.Conn.Kind())

	sess := session.New(r.Conn, peer, r.stdin(), r.stdout(), r.Logger)
	runErr := c.Handle(ctx, sess)

	abort := runErr != nil || ctx.Err() != nil
	if err := r.Conn.CloseConnection(abort); err != nil {
		r.Logger.Debug("close: %v", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return runErr
}

// shutdown releases the endpoint and the dialer, whatever state the
// connection is in, and logs the session counters.
func (r *Runtime) shutdown() {
	switch r.Conn.State() {
	case stream.EndpointReady, stream.Connecting, stream.Connected:
		r.Conn.CloseConnection(true) //nolint:errcheck
	}
	if r.Conn.State() == stream.Closed {
		if err := r.Conn.DisposeConnectionEnd(); err != nil {
			r.Logger.Debug("dispose: %v", err)
		}
	}
	if r.Dialer != nil {
		r.Dialer.Close() //nolint:errcheck
	}
	if r.Metrics != nil {
		r.Logger.Verbose("metrics %s", r.Metrics.JSON())
	}
}
