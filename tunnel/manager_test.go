package tunnel

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	nserr "netstream/internal/errors"
	"netstream/util"
)

// TestManager_StartFailure verifies that a gateway that refuses the TCP
// connection surfaces an error and leaves the manager stopped.
func TestManager_StartFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	dir := t.TempDir()
	key := dir + "/id_test"
	writeTestKey(t, key)

	logger := util.NewLogger(0)
	logger.SetOutput(io.Discard)

	tun := NewSSHTunnel(&SSHConfig{
		User:        "nobody",
		Host:        "127.0.0.1",
		Port:        port,
		KeyPath:     key,
		ConnTimeout: time.Second,
	}, logger)
	m := NewManager(tun, 10*time.Millisecond, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.Start(ctx); err == nil {
		t.Fatal("expected error connecting to a closed port")
	}
	if tun.IsAlive() {
		t.Error("tunnel should not be alive")
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

// TestSSHTunnel_DialNotConnected verifies Dial before Connect fails.
func TestSSHTunnel_DialNotConnected(t *testing.T) {
	logger := util.NewLogger(0)
	tun := NewSSHTunnel(&SSHConfig{Host: "example.invalid"}, logger)
	if _, err := tun.Dial(context.Background(), "tcp", "127.0.0.1:1"); err == nil {
		t.Fatal("expected error")
	}
	if err := tun.Ping(); err == nil {
		t.Fatal("expected ping error")
	}
	if got := tun.Endpoint(); got != "@example.invalid:22" {
		t.Errorf("Endpoint = %q", got)
	}
}

// TestSSHTunnel_SilentGateway verifies that a gateway which accepts the
// TCP connection but never speaks SSH cannot stall Connect past ctx.
func TestSSHTunnel_SilentGateway(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		var held []net.Conn
		defer func() {
			for _, c := range held {
				c.Close()
			}
		}()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, c)
		}
	}()

	key := t.TempDir() + "/id_test"
	writeTestKey(t, key)
	tun := NewSSHTunnel(&SSHConfig{
		User:        "nobody",
		Host:        "127.0.0.1",
		Port:        ln.Addr().(*net.TCPAddr).Port,
		KeyPath:     key,
		ConnTimeout: 10 * time.Second,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := tun.Connect(ctx); err == nil {
		t.Fatal("expected handshake error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Connect took %v after ctx expired", elapsed)
	}
	if tun.IsAlive() {
		t.Error("tunnel should not be alive")
	}
}

// TestSSHTunnel_DialStreamOnly verifies datagram networks are refused.
func TestSSHTunnel_DialStreamOnly(t *testing.T) {
	tun := NewSSHTunnel(&SSHConfig{Host: "example.invalid"}, nil)
	_, err := tun.Dial(context.Background(), "udp", "127.0.0.1:4226")
	if !nserr.Is(err, nserr.ErrUnsupportedTransportKind) {
		t.Errorf("Dial(udp) = %v, want UnsupportedTransportKind", err)
	}
	if tun.Forwarded() != 0 {
		t.Errorf("Forwarded = %d", tun.Forwarded())
	}
}
