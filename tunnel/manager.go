package tunnel

import (
	"context"
	"sync"
	"time"

	"netstream/util"
)

// Manager owns an SSHTunnel for the lifetime of a session and probes it
// with keepalive requests so a dead gateway is noticed before the next
// dial rather than at it.
type Manager struct {
	tunnel   *SSHTunnel
	logger   *util.Logger
	interval time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	lost    chan struct{}
}

// NewManager returns a Manager for the given tunnel.  interval ≤ 0
// disables keepalives.
func NewManager(t *SSHTunnel, interval time.Duration, logger *util.Logger) *Manager {
	return &Manager{
		tunnel:   t,
		logger:   logger,
		interval: interval,
		lost:     make(chan struct{}),
	}
}

// Start connects the tunnel once and begins background health checks.
// Subsequent calls are no-ops while the tunnel is alive.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started && m.tunnel.IsAlive() {
		return nil
	}
	if err := m.tunnel.Connect(ctx); err != nil {
		return err
	}
	m.started = true

	if m.interval > 0 {
		hctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.done = make(chan struct{})
		go m.healthLoop(hctx, m.done)
	}
	return nil
}

// Tunnel returns the managed tunnel.
func (m *Manager) Tunnel() *SSHTunnel { return m.tunnel }

// Lost is closed when a keepalive fails.
func (m *Manager) Lost() <-chan struct{} { return m.lost }

// Stop ends health checks and closes the tunnel.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.started = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return m.tunnel.Close()
}

func (m *Manager) healthLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	tick := time.NewTicker(m.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if !m.tunnel.IsAlive() {
				m.markLost("SSH tunnel to %s closed", m.tunnel.Endpoint())
				return
			}
			if err := m.tunnel.Ping(); err != nil {
				m.markLost("SSH tunnel keepalive failed: %v", err)
				return
			}
			m.logger.Debug("tunnel: keepalive ok")
		}
	}
}

func (m *Manager) markLost(format string, args ...interface{}) {
	m.logger.Error(format, args...)
	select {
	case <-m.lost:
	default:
		close(m.lost)
	}
}
