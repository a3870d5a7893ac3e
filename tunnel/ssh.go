package tunnel

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"

	nserr "netstream/internal/errors"
	"netstream/util"
)

// keepAliveRequest is the global request OpenSSH answers without side
// effects.
const keepAliveRequest = "keepalive@openssh.com"

// SSHConfig describes the gateway a LAN join is forwarded through.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string

	// ConnTimeout bounds the TCP dial and the SSH handshake together.
	ConnTimeout time.Duration

	// KeepAlive is the interval between keepalive requests sent by a
	// Manager.  Zero disables them.
	KeepAlive time.Duration

	// Prompt reads a secret (password or key passphrase).  nil reads
	// from the terminal.
	Prompt Prompter
}

func (c *SSHConfig) gateway() string { return util.FormatAddr(c.Host, uint16(c.Port)) }

// SSHTunnel forwards the joining side's stream connection through an
// SSH gateway with direct-tcpip channels.
type SSHTunnel struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client
	alive  bool

	forwarded atomic.Int64
}

// NewSSHTunnel returns an unconnected tunnel.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = util.NopLogger()
	}
	return &SSHTunnel{config: cfg, logger: logger}
}

// Connect dials the gateway and completes the handshake.  Cancelling
// ctx aborts a handshake in progress.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	auth, err := BuildAuthMethods(t.config)
	if err != nil {
		return nserr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}
	hostKey, err := hostKeyCallback(t.config)
	if err != nil {
		return nserr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.config.ConnTimeout)
	defer cancel()

	addr := t.config.gateway()
	t.logger.Debug("ssh: dialing %s as %s", addr, t.config.User)

	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nserr.WrapDial("ssh dial", addr, err)
	}

	// ssh.NewClientConn takes no context; closing the socket is the only
	// way to interrupt it.
	stop := context.AfterFunc(ctx, func() { raw.Close() })
	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         t.config.ConnTimeout,
	})
	if !stop() {
		if conn != nil {
			conn.Close()
		}
		return nserr.WrapSSH("handshake", t.config.Host, t.config.Port, ctx.Err())
	}
	if err != nil {
		raw.Close()
		return nserr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}

	client := ssh.NewClient(conn, chans, reqs)
	t.mu.Lock()
	t.client = client
	t.alive = true
	t.mu.Unlock()

	t.logger.Verbose("ssh: connected to %s (server %s)", addr, conn.ServerVersion())
	go t.monitor(client)
	return nil
}

// Dial opens a forwarded stream connection to address.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	default:
		return nil, nserr.New("tunnel dial "+network, nserr.ErrUnsupportedTransportKind)
	}

	t.mu.RLock()
	client, alive := t.client, t.alive
	t.mu.RUnlock()
	if !alive || client == nil {
		return nil, nserr.New("tunnel dial", nserr.ErrTransportUnavailable)
	}

	t.logger.Debug("tunnel: forwarding to %s", address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, nserr.WrapDial("tunnel dial", address, err)
	}
	t.forwarded.Add(1)
	return conn, nil
}

// Forwarded returns how many connections went through the tunnel.
func (t *SSHTunnel) Forwarded() int64 { return t.forwarded.Load() }

// Close hangs up on the gateway.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	client := t.client
	t.client, t.alive = nil, false
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Ping sends one keepalive request and waits for the reply.
func (t *SSHTunnel) Ping() error {
	t.mu.RLock()
	client := t.client
	t.mu.RUnlock()
	if client == nil {
		return nserr.New("tunnel ping", nserr.ErrTransportUnavailable)
	}
	_, _, err := client.SendRequest(keepAliveRequest, true, nil)
	return err
}

// Endpoint returns the gateway as user@host:port.
func (t *SSHTunnel) Endpoint() string {
	return t.config.User + "@" + t.config.gateway()
}

// IsAlive reports whether the gateway connection is up.
func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

// monitor marks the tunnel dead once client's connection ends.  A
// client replaced by a later Connect does not touch the new one.
func (t *SSHTunnel) monitor(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Debug("ssh: gateway connection closed: %v", err)
	} else {
		t.logger.Debug("ssh: gateway connection closed")
	}
}
