// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"netstream/config"
	"netstream/internal/core"
	"netstream/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X netstream/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected netstream mode.  Settings
// are layered defaults < config file < environment < flags.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	cfg := config.Defaults()
	if _, err := config.LoadFile(cfg, configFlag(args)); err != nil {
		return err
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("netstream", flag.ContinueOnError)

	// ── transport ────────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Host a session and wait for one peer")
	fs.Uint16VarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local port to host on")
	fs.StringVarP(&cfg.Transport, "transport", "t", cfg.Transport, "Transport: lan, datagram or modem")
	fs.StringVarP(&cfg.ListenHost, "bind", "b", cfg.ListenHost, "Local address to bind")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.DurationVar(&cfg.ConnTimeout, "connect-timeout", cfg.ConnTimeout, "Per-attempt connect timeout")
	fs.DurationVar(&cfg.Grace, "grace", cfg.Grace, "How long a graceful close drains input")
	fs.IntVar(&cfg.MaxFrames, "max-frames", cfg.MaxFrames, "Datagram frames outstanding at once")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Wait/connect timeout in seconds (0 = forever)")

	// ── modem line ───────────────────────────────────────────────
	fs.BoolVar(&cfg.ModemEnabled, "modem", cfg.ModemEnabled, "Link in the modem line backend")
	fs.StringVar(&cfg.ModemDevice, "modem-device", cfg.ModemDevice, "Modem line socket path or pipe name")
	fs.IntVar(&cfg.Player, "player", cfg.Player, "Player index to open when joining")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "SSH tunnel via [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")
	fs.IntVar(&cfg.KeepAlive, "keep-alive", cfg.KeepAlive, "SSH keepalive interval in seconds (0 = off)")

	// ── session ──────────────────────────────────────────────────
	fs.StringVar(&cfg.PacketsFile, "packets", cfg.PacketsFile, "YAML packet table (built-in table if empty)")
	fs.IntVar(&cfg.Ping, "ping", cfg.Ping, "Send N pings instead of relaying stdin")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Retries for a refused connect")

	// ── output ───────────────────────────────────────────────────
	var verbosity int
	var quiet bool
	fs.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to a rotating file")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log file format: console or json")
	fs.StringVar(&cfg.ConfigFile, "config", "", "Config file (YAML, TOML or JSON)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&cfg.ListTransports, "list-transports", false, "Print transport availability and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "netstream %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second
	cfg.Verbose += verbosity
	if quiet {
		cfg.Verbose = 0
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DryRun {
		printSummary(stdout, cfg)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := newLogger(cfg)
	defer logger.Sync() //nolint:errcheck

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	if lm, ok := mode.(*core.ListMode); ok {
		lm.Out = stdout
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// configFlag finds --config before the full flag set exists, so the
// file can seed the flag defaults.
func configFlag(args []string) string {
	for i, a := range args {
		if a == "--" {
			break
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // netstream -l [-p PORT]
		case 1:
			port, err := config.ParsePort(remaining[0])
			if err != nil {
				return fmt.Errorf("port: %w", err)
			}
			cfg.LocalPort = port
		default:
			return fmt.Errorf("too many arguments for host mode")
		}
		return nil
	}

	switch len(remaining) {
	case 0: // modem join, or --list-transports; Validate reports the rest
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments: want <host> <port>")
	}
	return nil
}

func newLogger(cfg *config.Config) *util.Logger {
	if cfg.LogFile == "" {
		return util.NewLogger(cfg.Verbose)
	}
	return util.NewFileLogger(cfg.Verbose, cfg.LogFormat, util.LogFile{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
}

func printSummary(w io.Writer, cfg *config.Config) {
	mode := "join"
	target := cfg.PeerAddress().String()
	if cfg.Listen {
		mode = "host"
		target = fmt.Sprintf("port %d", cfg.LocalPort)
	}
	fmt.Fprintf(w, "mode:      %s\n", mode)
	fmt.Fprintf(w, "transport: %s\n", cfg.Transport)
	fmt.Fprintf(w, "target:    %s\n", target)
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel:    %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
	if cfg.PacketsFile != "" {
		fmt.Fprintf(w, "packets:   %s\n", cfg.PacketsFile)
	}
	fmt.Fprintln(w, "configuration OK")
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `netstream: peer-to-peer packet streams v%s

Usage:
  netstream [options] <host> <port>           Join a hosted session
  netstream -l [-p port] [options]            Host and wait for one peer
  netstream --modem --modem-device PATH       Play over a modem line
  netstream --list-transports                 Show transport availability

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  netstream -l                                Host on port %d
  netstream 192.168.1.20 %d                   Join over the LAN
  netstream -t datagram -l -p 5000            Host over datagrams
  netstream -T admin@bastion game-host %d     Join through an SSH tunnel
  netstream --ping 5 192.168.1.20 %d          Measure round trips
`, config.DefaultPort, config.DefaultPort, config.DefaultPort, config.DefaultPort)
}
