package errors

import (
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestTransportError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  TransportError
		want string
	}{
		{
			name: "retryable",
			err:  TransportError{Op: "open", Addr: "10.0.0.1:4226", Kind: ErrConnectionRefused, Err: io.EOF, Retryable: true},
			want: "open 10.0.0.1:4226: connection refused: EOF (retryable)",
		},
		{
			name: "no cause",
			err:  TransportError{Op: "send", Kind: ErrInvalidConnectionState},
			want: "send: invalid connection state",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransportError_Is(t *testing.T) {
	err := Wrap("receive", "peer", ErrIO, io.ErrUnexpectedEOF)
	if !Is(err, ErrIO) {
		t.Error("should match its kind")
	}
	if !Is(err, io.ErrUnexpectedEOF) {
		t.Error("should unwrap to the cause")
	}
	if Is(err, ErrConnectionRefused) {
		t.Error("should not match another kind")
	}

	wrapped := fmt.Errorf("session: %w", err)
	if !Is(wrapped, ErrIO) {
		t.Error("kind should survive further wrapping")
	}
}

func TestWrapDial(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	err := WrapDial("open", "127.0.0.1:1", refused)
	if !Is(err, ErrConnectionRefused) {
		t.Errorf("refused dial should be ConnectionRefused, got %v", err)
	}
	if !err.Retryable {
		t.Error("ConnectionRefused should be retryable")
	}

	err = WrapDial("open", "x", fmt.Errorf("no route"))
	if !Is(err, ErrIO) {
		t.Errorf("other dial failures should be IOError, got %v", err)
	}
}

func TestIsProgrammerError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"state", New("send", ErrInvalidConnectionState), true},
		{"kind", New("set", ErrInvalidTransportKind), true},
		{"io", Wrap("read", "", ErrIO, io.EOF), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProgrammerError(tt.err); got != tt.want {
				t.Errorf("IsProgrammerError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSSHError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("auth fail")
	err := WrapSSH("auth", "host", 22, inner)
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "transport",
				Value:   "ipx",
				Message: "unknown transport",
				Hint:    "use lan, datagram or modem",
			},
			want: "config: --transport=ipx: unknown transport\n  hint: use lan, datagram or modem",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "modem-device",
				Message: "required with --modem",
			},
			want: "config: --modem-device: required with --modem",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", Wrap("open", "x", ErrConnectionRefused, io.EOF), true},
		{"io", Wrap("read", "x", ErrIO, io.EOF), false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyRetryable_NetOpError(t *testing.T) {
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	if !classifyRetryable(opErr) {
		t.Error("temporary OpError should be retryable")
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrInvalidTransportKind, ErrUnsupportedTransportKind, ErrTransportUnavailable,
		ErrInvalidConnectionState, ErrEndpointAllocationFailed, ErrConnectionRefused,
		ErrIO, ErrPayloadLengthMismatch, ErrUnknownPacketType, ErrPayloadTooLarge,
		ErrOutOfMemory, ErrSocketOpenFailed,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
