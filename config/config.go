// Package config defines the runtime configuration for netstream and
// provides helpers for parsing tunnel specifications and ports.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	nserr "netstream/internal/errors"
	"netstream/internal/transport"
)

// Config holds every tuneable for a single netstream session.
type Config struct {
	// ── Transport ────────────────────────────────────────────────────
	Transport   string // lan, datagram or modem
	Host        string // peer host (join mode)
	Port        uint16 // peer port (join mode)
	ListenHost  string // local bind address, "" for all interfaces
	LocalPort   uint16 // -p: local stream/datagram port
	Listen      bool
	NoDNS       bool
	Timeout     time.Duration // -w: wait/connect deadline, 0 waits forever
	ConnTimeout time.Duration // per-attempt dial timeout
	Grace       time.Duration // graceful close drain limit
	MaxFrames   int
	QueueLen    int

	// ── Modem line ───────────────────────────────────────────────────
	ModemEnabled bool
	ModemDevice  string
	Player       int // player index join mode opens

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string
	KeepAlive      int // seconds between SSH keepalives

	// ── Session ──────────────────────────────────────────────────────
	PacketsFile string // YAML packet table, built-in table when empty
	Ping        int    // send N pings instead of relaying stdin
	Retries     int
	MaxBackoff  time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Verbose        int
	LogFile        string
	LogFormat      string
	LogMaxSizeMB   int
	LogMaxBackups  int
	LogMaxAgeDays  int
	LogCompress    bool
	DryRun         bool
	ListTransports bool
	ConfigFile     string
}

// Kind returns the configured transport kind.
func (c *Config) Kind() (transport.Kind, error) {
	return transport.ParseKind(c.Transport)
}

// Capabilities returns the backends this configuration links in.
func (c *Config) Capabilities() transport.Capabilities {
	caps := transport.DefaultCapabilities()
	caps.Modem = c.ModemEnabled
	return caps
}

// PeerAddress returns the join target.
func (c *Config) PeerAddress() transport.PeerAddress {
	network := "tcp"
	if k, err := c.Kind(); err == nil && k == transport.Datagram {
		network = "udp"
	}
	return transport.PeerAddress{Network: network, Host: c.Host, Port: c.Port}
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(spec string) (uint16, error) {
	port, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return uint16(port), nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^@:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q: expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec into the tunnel fields.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &nserr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error()}
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	kind, err := c.Kind()
	if err != nil {
		return &nserr.ConfigError{
			Field:   "transport",
			Value:   c.Transport,
			Message: "unknown transport",
			Hint:    "use lan, datagram or modem",
		}
	}

	if c.ListTransports {
		return nil
	}

	switch kind {
	case transport.Modem:
		if !c.ModemEnabled {
			return &nserr.ConfigError{
				Field:   "transport",
				Value:   c.Transport,
				Message: "modem backend is not enabled",
				Hint:    "add --modem",
			}
		}
		if c.ModemDevice == "" {
			return &nserr.ConfigError{
				Field:   "modem-device",
				Message: "required with the modem transport",
				Hint:    "a unix socket path, or a pipe name on Windows",
			}
		}
		if c.Player < 0 || c.Player > 1 {
			return &nserr.ConfigError{
				Field:   "player",
				Value:   c.Player,
				Message: "a modem line joins players 0 and 1 only",
			}
		}
	default:
		if !c.Listen {
			if c.Host == "" {
				return &nserr.ConfigError{
					Field:   "host",
					Message: "hostname is required to join",
					Hint:    "netstream <host> <port>, or -l to host",
				}
			}
			if c.Port == 0 {
				return &nserr.ConfigError{Field: "port", Message: "destination port is required"}
			}
		}
	}

	if c.TunnelEnabled {
		if c.TunnelHost == "" {
			return &nserr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: "tunnel host is required"}
		}
		if kind != transport.AddressedStream {
			return &nserr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "SSH tunnels carry the lan transport only",
				Hint:    "drop -T or use --transport lan",
			}
		}
		if c.Listen {
			return &nserr.ConfigError{
				Field:   "tunnel",
				Value:   c.TunnelSpec,
				Message: "hosting through an SSH tunnel is not supported",
				Hint:    "run the host on the far side of the tunnel",
			}
		}
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return &nserr.ConfigError{Field: "log-format", Value: c.LogFormat, Message: "unknown format", Hint: "use console or json"}
	}
	if c.Ping < 0 {
		return &nserr.ConfigError{Field: "ping", Value: c.Ping, Message: "must not be negative"}
	}
	if c.Retries < 0 {
		return &nserr.ConfigError{Field: "retries", Value: c.Retries, Message: "must not be negative"}
	}
	if c.MaxFrames < 1 {
		return &nserr.ConfigError{Field: "max-frames", Value: c.MaxFrames, Message: "must be at least 1"}
	}
	return nil
}
