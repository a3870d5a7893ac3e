package config

// file.go - configuration loading from a YAML, TOML or JSON file.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ConfigEnv names the environment variable that points at a config file.
const ConfigEnv = "NETSTREAM_CONFIG"

// LoadFile overlays a config file onto cfg.  With an empty path it uses
// $NETSTREAM_CONFIG, then searches for netstream.{yaml,toml,json} in the
// working directory and ~/.netstream.  A missing file is not an error
// unless the path was given explicitly.  It returns the file used, if
// any.
func LoadFile(cfg *Config, path string) (string, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("netstream")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".netstream"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}

	apply(v, cfg)
	return v.ConfigFileUsed(), nil
}

// apply copies every key present in v onto cfg.
func apply(v *viper.Viper, cfg *Config) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	setPort := func(key string, dst *uint16) {
		if v.IsSet(key) {
			if p := v.GetInt(key); p > 0 && p <= 65535 {
				*dst = uint16(p)
			}
		}
	}

	// "type" is the older name of the transport key.
	setString("type", &cfg.Transport)
	setString("transport", &cfg.Transport)
	setString("host", &cfg.Host)
	setPort("port", &cfg.Port)
	setString("listen_host", &cfg.ListenHost)
	setPort("local_port", &cfg.LocalPort)
	setBool("no_dns", &cfg.NoDNS)
	if v.IsSet("timeout") {
		cfg.Timeout = v.GetDuration("timeout")
	}
	if v.IsSet("grace") {
		cfg.Grace = v.GetDuration("grace")
	}
	setInt("datagram.max_frames", &cfg.MaxFrames)
	setInt("datagram.queue_len", &cfg.QueueLen)

	setBool("modem.enabled", &cfg.ModemEnabled)
	setString("modem.device", &cfg.ModemDevice)
	setInt("modem.player", &cfg.Player)

	setString("tunnel.spec", &cfg.TunnelSpec)
	setString("tunnel.key", &cfg.SSHKeyPath)
	setBool("tunnel.agent", &cfg.UseSSHAgent)
	setBool("tunnel.strict_hostkey", &cfg.StrictHostKey)
	setString("tunnel.known_hosts", &cfg.KnownHostsPath)
	setInt("tunnel.keep_alive", &cfg.KeepAlive)

	setString("packets", &cfg.PacketsFile)
	setInt("retries", &cfg.Retries)
	if v.IsSet("max_backoff") {
		cfg.MaxBackoff = v.GetDuration("max_backoff")
	}

	setInt("log.verbose", &cfg.Verbose)
	setString("log.file", &cfg.LogFile)
	setString("log.format", &cfg.LogFormat)
	setInt("log.max_size_mb", &cfg.LogMaxSizeMB)
	setInt("log.max_backups", &cfg.LogMaxBackups)
	setInt("log.max_age_days", &cfg.LogMaxAgeDays)
	setBool("log.compress", &cfg.LogCompress)
}
