package core

import (
	"time"

	"netstream/config"
	"netstream/internal/capability"
	"netstream/internal/metrics"
	"netstream/internal/protocol"
	"netstream/internal/retry"
	"netstream/internal/stream"
	"netstream/internal/transport"
	"netstream/internal/transport/datagram"
	"netstream/internal/transport/lan"
	"netstream/internal/transport/modem"
	"netstream/tunnel"
	"netstream/util"
)

// Build constructs the appropriate Mode from the given configuration.
// cfg must already be validated.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	m := metrics.New()
	dialer := buildDialer(cfg, logger)
	reg := BuildRegistry(cfg, dialer, logger, m)

	if cfg.ListTransports {
		return &ListMode{Registry: reg}, nil
	}

	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}
	if err := reg.SetKind(kind); err != nil {
		return nil, err
	}

	table, err := buildTable(cfg, logger)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Registry: reg,
		Metrics:  m,
		Logger:   logger,
		Dialer:   dialer,
	}

	if cfg.Listen {
		rt.Conn = stream.New(reg, stream.Options{Table: table, Logger: logger, Metrics: m})
		return &HostMode{
			Runtime:    rt,
			Capability: buildCapability(cfg),
			Timeout:    cfg.Timeout,
		}, nil
	}

	var dir *stream.StaticDirectory
	if kind != transport.Modem {
		target, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS)
		if err != nil {
			return nil, err
		}
		logger.Verbose("joining %s", target)
		dir = stream.NewStaticDirectory(map[int]transport.PeerAddress{
			cfg.Player: cfg.PeerAddress(),
		})
	}

	opts := stream.Options{Table: table, Logger: logger, Metrics: m}
	if dir != nil {
		opts.Directory = dir
	}
	rt.Conn = stream.New(reg, opts)

	backoff := retry.DefaultBackoff(cfg.Retries+1, cfg.MaxBackoff)
	backoff.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("attempt %d: %v; retrying in %s", attempt, err, wait.Round(time.Millisecond))
	}

	return &JoinMode{
		Runtime:    rt,
		Capability: buildCapability(cfg),
		PeerIndex:  cfg.Player,
		Backoff:    backoff,
		Timeout:    cfg.Timeout,
	}, nil
}

// BuildRegistry links one backend per enabled capability.  dialer may be
// nil, in which case the LAN backend dials plain TCP.
func BuildRegistry(cfg *config.Config, dialer transport.Dialer, logger *util.Logger, m *metrics.Collector) *transport.Registry {
	caps := cfg.Capabilities()
	var backends []transport.Backend

	// The join side listens on an ephemeral port so a second process on
	// the same machine can host on the well-known one.
	port := cfg.LocalPort
	if !cfg.Listen {
		port = 0
	}

	if caps.AddressedStream {
		backends = append(backends, lan.New(lan.Options{
			ListenHost: cfg.ListenHost,
			Port:       port,
			Dialer:     dialer,
			Tunneled:   cfg.TunnelEnabled,
			Grace:      cfg.Grace,
			Logger:     logger,
			Metrics:    m,
		}))
	}
	if caps.Datagram {
		backends = append(backends, datagram.NewStreamBackend(datagram.Options{
			Network:   datagram.UDPNetwork{BindHost: cfg.ListenHost},
			Port:      port,
			MaxFrames: cfg.MaxFrames,
			QueueLen:  cfg.QueueLen,
			Logger:    logger,
			Metrics:   m,
		}))
	}
	if caps.Modem {
		backends = append(backends, modem.New(modem.Options{
			Device:  cfg.ModemDevice,
			Grace:   cfg.Grace,
			Logger:  logger,
			Metrics: m,
		}))
	}
	return transport.NewRegistry(backends...)
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the dialer the LAN backend uses to reach peers.
func buildDialer(cfg *config.Config, logger *util.Logger) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.ConnTimeout,
			KeepAlive:     time.Duration(cfg.KeepAlive) * time.Second,
		}, logger)
	}
	return &transport.TCPDialer{Timeout: cfg.ConnTimeout, BindHost: cfg.ListenHost}
}

// buildTable loads the packet table file, or the built-in table.
func buildTable(cfg *config.Config, logger *util.Logger) (*protocol.Table, error) {
	if cfg.PacketsFile == "" {
		return protocol.Default(), nil
	}
	t, err := protocol.LoadFile(cfg.PacketsFile)
	if err != nil {
		return nil, err
	}
	logger.Verbose("loaded %d packet types from %s", len(t.Entries()), cfg.PacketsFile)
	return t, nil
}

// buildCapability selects the per-connection behaviour.
func buildCapability(cfg *config.Config) capability.Capability {
	if cfg.Ping > 0 {
		return &capability.Ping{Count: cfg.Ping}
	}
	return &capability.Relay{}
}
