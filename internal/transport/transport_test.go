package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	nserr "netstream/internal/errors"
	"netstream/tunnel"
	"netstream/util"
)

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	// Server: accept, send greeting, close.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{Timeout: 2 * time.Second}
	ctx := context.Background()

	conn, err := d.Dial(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	d := &TCPDialer{Timeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := d.Dial(ctx, "tcp", "127.0.0.1:1")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// TestTCPDialer_LocalPort verifies the source-port binding.
func TestTCPDialer_LocalPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	spare, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	local := uint16(spare.Addr().(*net.TCPAddr).Port)
	spare.Close()

	accepted := make(chan net.Addr, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn.RemoteAddr()
		conn.Close()
	}()

	d := &TCPDialer{Timeout: 2 * time.Second, LocalPort: local}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	select {
	case ra := <-accepted:
		if got := AddressOf(ra).Port; got != local {
			t.Errorf("source port = %d, want %d", got, local)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted")
	}
}

// TestTCPDialer_BindHost verifies the source interface binding.
func TestTCPDialer_BindHost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		if c, err := ln.Accept(); err == nil {
			c.Close()
		}
	}()

	d := &TCPDialer{Timeout: 2 * time.Second, BindHost: "127.0.0.1"}
	conn, err := d.Dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if got := AddressOf(conn.LocalAddr()).Host; got != "127.0.0.1" {
		t.Errorf("source host = %q, want 127.0.0.1", got)
	}

	d.BindHost = "[bad"
	if _, err := d.Dial(context.Background(), "tcp", ln.Addr().String()); !nserr.Is(err, nserr.ErrEndpointAllocationFailed) {
		t.Errorf("bad bind host = %v, want EndpointAllocationFailed", err)
	}
}

// TestTCPDialer_RejectsDatagram verifies only stream networks are dialed.
func TestTCPDialer_RejectsDatagram(t *testing.T) {
	d := &TCPDialer{Timeout: time.Second}
	if _, err := d.Dial(context.Background(), "udp", "127.0.0.1:4226"); !nserr.Is(err, nserr.ErrUnsupportedTransportKind) {
		t.Errorf("Dial(udp) = %v, want UnsupportedTransportKind", err)
	}
}

// TestTCPDialer_Close verifies Close is a no-op and returns nil.
func TestTCPDialer_Close(t *testing.T) {
	d := &TCPDialer{}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestSSHDialer_GatewayDown verifies that a refused gateway surfaces on
// Dial and that Close is safe afterwards.
func TestSSHDialer_GatewayDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := NewSSHDialer(&tunnel.SSHConfig{
		User:        "nobody",
		Host:        "127.0.0.1",
		Port:        port,
		PromptPass:  true,
		Prompt:      func(string) ([]byte, error) { return []byte("x"), nil },
		ConnTimeout: time.Second,
	}, util.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := d.Dial(ctx, "tcp", "10.0.0.1:4226"); err == nil {
		t.Fatal("expected an error from a closed gateway")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
