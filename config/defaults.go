package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is the stream and datagram port when none is given.
	DefaultPort uint16 = 4226

	// DefaultTransport is the transport selected when none is given.
	DefaultTransport = "lan"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultKeepAliveInterval is the SSH keepalive interval in seconds.
	DefaultKeepAliveInterval = 30

	// DefaultConnTimeout bounds each active connect attempt.
	DefaultConnTimeout = 10 * time.Second

	// DefaultRetries is how many times join mode retries a refused
	// connect before giving up.
	DefaultRetries = 5

	// DefaultMaxBackoff caps the exponential backoff between connect
	// attempts.
	DefaultMaxBackoff = 10 * time.Second

	// DefaultGracePeriod is how long a graceful close drains input.
	DefaultGracePeriod = 2 * time.Second

	// DefaultMaxFrames bounds datagram frames outstanding at once.
	DefaultMaxFrames = 64

	// DefaultQueueLen is how many received datagrams are buffered
	// before new ones are dropped.
	DefaultQueueLen = 128

	// DefaultLogFormat is the log encoder used for --log-file.
	DefaultLogFormat = "console"

	// Log rotation defaults for --log-file.
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 28
)

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		Transport:     DefaultTransport,
		LocalPort:     DefaultPort,
		ConnTimeout:   DefaultConnTimeout,
		Grace:         DefaultGracePeriod,
		MaxFrames:     DefaultMaxFrames,
		QueueLen:      DefaultQueueLen,
		Retries:       DefaultRetries,
		MaxBackoff:    DefaultMaxBackoff,
		KeepAlive:     DefaultKeepAliveInterval,
		Verbose:       1,
		LogFormat:     DefaultLogFormat,
		LogMaxSizeMB:  DefaultLogMaxSizeMB,
		LogMaxBackups: DefaultLogMaxBackups,
		LogMaxAgeDays: DefaultLogMaxAgeDays,
	}
}
