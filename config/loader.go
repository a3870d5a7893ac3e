package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NETSTREAM_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NETSTREAM_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("NETSTREAM_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envPort("NETSTREAM_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if v := os.Getenv("NETSTREAM_LISTEN_HOST"); v != "" {
		cfg.ListenHost = v
	}
	if envBool("NETSTREAM_LISTEN") {
		cfg.Listen = true
	}
	if envBool("NETSTREAM_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("NETSTREAM_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := envInt("NETSTREAM_MAX_FRAMES"); v > 0 {
		cfg.MaxFrames = v
	}

	// Modem line
	if envBool("NETSTREAM_MODEM") {
		cfg.ModemEnabled = true
	}
	if v := os.Getenv("NETSTREAM_MODEM_DEVICE"); v != "" {
		cfg.ModemDevice = v
	}

	// SSH tunnel
	if v := os.Getenv("NETSTREAM_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("NETSTREAM_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("NETSTREAM_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("NETSTREAM_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("NETSTREAM_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("NETSTREAM_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}
	if v := envInt("NETSTREAM_KEEP_ALIVE"); v > 0 {
		cfg.KeepAlive = v
	}

	// Session
	if v := os.Getenv("NETSTREAM_PACKETS"); v != "" {
		cfg.PacketsFile = v
	}
	if v := envInt("NETSTREAM_RETRIES"); v > 0 {
		cfg.Retries = v
	}

	// Output
	if v := envInt("NETSTREAM_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if v := os.Getenv("NETSTREAM_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("NETSTREAM_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envPort(key string) uint16 {
	n := envInt(key)
	if n < 1 || n > 65535 {
		return 0
	}
	return uint16(n)
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
