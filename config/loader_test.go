package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv_Host(t *testing.T) {
	t.Setenv("NETSTREAM_HOST", "test.example.com")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Host != "test.example.com" {
		t.Errorf("Host = %q, want %q", cfg.Host, "test.example.com")
	}
}

func TestLoadFromEnv_Port(t *testing.T) {
	t.Setenv("NETSTREAM_PORT", "8080")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.LocalPort != 8080 {
		t.Errorf("LocalPort = %d, want 8080", cfg.LocalPort)
	}

	t.Setenv("NETSTREAM_PORT", "99999")
	cfg = &Config{LocalPort: 4226}
	LoadFromEnv(cfg)
	if cfg.LocalPort != 4226 {
		t.Errorf("out of range port should be ignored, got %d", cfg.LocalPort)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
		get    func(*Config) bool
	}{
		{"NETSTREAM_LISTEN", []string{"1", "true", "yes", "TRUE", "Yes"}, func(c *Config) bool { return c.Listen }},
		{"NETSTREAM_MODEM", []string{"1", "true"}, func(c *Config) bool { return c.ModemEnabled }},
		{"NETSTREAM_NO_DNS", []string{"true"}, func(c *Config) bool { return c.NoDNS }},
		{"NETSTREAM_SSH_AGENT", []string{"yes"}, func(c *Config) bool { return c.UseSSHAgent }},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := &Config{}
				LoadFromEnv(cfg)
				if !tt.get(cfg) {
					t.Errorf("%s=%s should set the flag", tt.key, v)
				}
			})
		}
	}
}

func TestLoadFromEnv_FalseValues(t *testing.T) {
	for _, v := range []string{"0", "false", "no", ""} {
		t.Run("v="+v, func(t *testing.T) {
			t.Setenv("NETSTREAM_LISTEN", v)
			cfg := &Config{}
			LoadFromEnv(cfg)
			if cfg.Listen {
				t.Errorf("NETSTREAM_LISTEN=%q should not enable listen", v)
			}
		})
	}
}

func TestLoadFromEnv_Transport(t *testing.T) {
	t.Setenv("NETSTREAM_TRANSPORT", "datagram")
	t.Setenv("NETSTREAM_MODEM_DEVICE", "/tmp/line.sock")
	t.Setenv("NETSTREAM_TIMEOUT", "30")
	t.Setenv("NETSTREAM_PACKETS", "packets.yaml")
	cfg := Defaults()
	LoadFromEnv(cfg)
	if cfg.Transport != "datagram" {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.ModemDevice != "/tmp/line.sock" {
		t.Errorf("ModemDevice = %q", cfg.ModemDevice)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.PacketsFile != "packets.yaml" {
		t.Errorf("PacketsFile = %q", cfg.PacketsFile)
	}
}

func TestLoadFromEnv_InvalidInt(t *testing.T) {
	t.Setenv("NETSTREAM_TIMEOUT", "notanumber")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Timeout != 0 {
		t.Errorf("invalid int should be ignored, got %v", cfg.Timeout)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	os.Unsetenv("NETSTREAM_HOST")
	cfg := &Config{Host: "original"}
	LoadFromEnv(cfg)
	if cfg.Host != "original" {
		t.Errorf("Host should remain %q, got %q", "original", cfg.Host)
	}
}

// ── Config file ──────────────────────────────────────────────────────

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "netstream.yaml", `
transport: datagram
host: 192.168.1.20
port: 4300
timeout: 15s
datagram:
  max_frames: 16
modem:
  enabled: true
  device: /tmp/modem.sock
  player: 1
log:
  format: json
  verbose: 2
`)
	cfg := Defaults()
	used, err := LoadFile(cfg, path)
	if err != nil {
		t.Fatal(err)
	}
	if used != path {
		t.Errorf("used = %q, want %q", used, path)
	}
	if cfg.Transport != "datagram" || cfg.Host != "192.168.1.20" || cfg.Port != 4300 {
		t.Errorf("transport fields = %q %q %d", cfg.Transport, cfg.Host, cfg.Port)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.MaxFrames != 16 {
		t.Errorf("MaxFrames = %d", cfg.MaxFrames)
	}
	if !cfg.ModemEnabled || cfg.ModemDevice != "/tmp/modem.sock" || cfg.Player != 1 {
		t.Errorf("modem fields = %v %q %d", cfg.ModemEnabled, cfg.ModemDevice, cfg.Player)
	}
	if cfg.LogFormat != "json" || cfg.Verbose != 2 {
		t.Errorf("log fields = %q %d", cfg.LogFormat, cfg.Verbose)
	}
	// untouched keys keep their defaults
	if cfg.QueueLen != DefaultQueueLen || cfg.LocalPort != DefaultPort {
		t.Errorf("defaults lost: queue %d port %d", cfg.QueueLen, cfg.LocalPort)
	}
}

func TestLoadFile_TypeAlias(t *testing.T) {
	path := writeFile(t, "prefs.json", `{"type": "modem"}`)
	cfg := Defaults()
	if _, err := LoadFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	if cfg.Transport != "modem" {
		t.Errorf("Transport = %q, want modem", cfg.Transport)
	}
}

func TestLoadFile_Env(t *testing.T) {
	path := writeFile(t, "netstream.toml", "retries = 9\n")
	t.Setenv(ConfigEnv, path)
	cfg := Defaults()
	if _, err := LoadFile(cfg, ""); err != nil {
		t.Fatal(err)
	}
	if cfg.Retries != 9 {
		t.Errorf("Retries = %d, want 9", cfg.Retries)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := Defaults()
	if _, err := LoadFile(cfg, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing file should fail")
	}

	t.Setenv(ConfigEnv, "")
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	used, err := LoadFile(cfg, "")
	if err != nil {
		t.Errorf("search miss should not fail: %v", err)
	}
	if used != "" {
		t.Errorf("used = %q, want empty", used)
	}
}
