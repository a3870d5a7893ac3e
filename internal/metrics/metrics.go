// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of a netstream session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for a netstream session.
// A nil Collector is safe to use: all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	openAttempts      atomic.Int64
	packetsIn         atomic.Int64
	packetsOut        atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	framesIn          atomic.Int64
	framesOut         atomic.Int64
	framesDropped     atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// OpenAttempt records one active connect attempt, successful or not.
func (c *Collector) OpenAttempt() {
	if c == nil {
		return
	}
	c.openAttempts.Add(1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// ── Packet metrics ───────────────────────────────────────────────────

// PacketSent records one framed packet of n wire bytes.
func (c *Collector) PacketSent(n int) {
	if c == nil {
		return
	}
	c.packetsOut.Add(1)
	c.bytesOut.Add(int64(n))
}

// PacketReceived records one framed packet of n wire bytes.
func (c *Collector) PacketReceived(n int) {
	if c == nil {
		return
	}
	c.packetsIn.Add(1)
	c.bytesIn.Add(int64(n))
}

// PacketsSent returns the number of packets written.
func (c *Collector) PacketsSent() int64 {
	if c == nil {
		return 0
	}
	return c.packetsOut.Load()
}

// PacketsReceived returns the number of packets read.
func (c *Collector) PacketsReceived() int64 {
	if c == nil {
		return 0
	}
	return c.packetsIn.Load()
}

// TotalBytesIn returns total packet bytes received, headers included.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total packet bytes sent, headers included.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Frame metrics ────────────────────────────────────────────────────

// FrameSent records one datagram handed to the network.
func (c *Collector) FrameSent() {
	if c == nil {
		return
	}
	c.framesOut.Add(1)
}

// FrameReceived records one datagram delivered to a caller.
func (c *Collector) FrameReceived() {
	if c == nil {
		return
	}
	c.framesIn.Add(1)
}

// FrameDropped records a datagram discarded because the receive queue
// was full.
func (c *Collector) FrameDropped() {
	if c == nil {
		return
	}
	c.framesDropped.Add(1)
}

// FramesDropped returns the number of discarded datagrams.
func (c *Collector) FramesDropped() int64 {
	if c == nil {
		return 0
	}
	return c.framesDropped.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	OpenAttempts      int64  `json:"open_attempts"`
	PacketsIn         int64  `json:"packets_in"`
	PacketsOut        int64  `json:"packets_out"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	FramesIn          int64  `json:"frames_in"`
	FramesOut         int64  `json:"frames_out"`
	FramesDropped     int64  `json:"frames_dropped"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		OpenAttempts:      c.openAttempts.Load(),
		PacketsIn:         c.packetsIn.Load(),
		PacketsOut:        c.packetsOut.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		FramesIn:          c.framesIn.Load(),
		FramesOut:         c.framesOut.Load(),
		FramesDropped:     c.framesDropped.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
