package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"netstream/tunnel"
	"netstream/util"
)

// SSHDialer routes connections through an SSH tunnel.  The tunnel is
// connected lazily on the first Dial call, watched by a tunnel.Manager,
// and torn down on Close.
type SSHDialer struct {
	manager *tunnel.Manager
	config  *tunnel.SSHConfig
	logger  *util.Logger
}

// NewSSHDialer creates a dialer that forwards connections through an
// SSH tunnel.  The tunnel is not connected until the first Dial.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger) *SSHDialer {
	t := tunnel.NewSSHTunnel(cfg, logger)
	return &SSHDialer{
		manager: tunnel.NewManager(t, cfg.KeepAlive, logger),
		config:  cfg,
		logger:  logger,
	}
}

// Dial connects to address through the SSH tunnel, lazily establishing
// the tunnel on the first call.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if !d.manager.Tunnel().IsAlive() {
		start := time.Now()
		d.logger.Verbose("establishing SSH tunnel to %s@%s:%d",
			d.config.User, d.config.Host, d.config.Port)
		if err := d.manager.Start(ctx); err != nil {
			return nil, fmt.Errorf("tunnel: %w", err)
		}
		d.logger.Verbose("SSH tunnel established in %v", time.Since(start).Round(time.Millisecond))
	}
	return d.manager.Tunnel().Dial(ctx, network, address)
}

// Close tears down the underlying SSH tunnel.
func (d *SSHDialer) Close() error {
	return d.manager.Stop()
}
