// Package errors provides the error kinds surfaced by netstream.
//
// Every backend or OS failure reaches the caller as a *TransportError
// whose Kind is one of the sentinels below, so callers can branch with
// errors.Is without caring which backend produced the failure.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ── Sentinel kinds ───────────────────────────────────────────────────

var (
	ErrInvalidTransportKind     = errors.New("invalid transport kind")
	ErrUnsupportedTransportKind = errors.New("unsupported transport kind")
	ErrTransportUnavailable     = errors.New("transport unavailable")
	ErrInvalidConnectionState   = errors.New("invalid connection state")
	ErrEndpointAllocationFailed = errors.New("endpoint allocation failed")
	ErrConnectionRefused        = errors.New("connection refused")
	ErrIO                       = errors.New("i/o error")
	ErrPayloadLengthMismatch    = errors.New("payload length mismatch")
	ErrUnknownPacketType        = errors.New("unknown packet type")
	ErrPayloadTooLarge          = errors.New("payload too large")
	ErrOutOfMemory              = errors.New("out of memory")
	ErrSocketOpenFailed         = errors.New("socket open failed")
)

// ── Structured error types ───────────────────────────────────────────

// TransportError attaches an operation and address to one of the
// sentinel kinds.  errors.Is matches both the kind and the underlying
// error.
type TransportError struct {
	Op        string // "establish", "open", "wait", "send", "receive", ...
	Addr      string // peer or local address, may be empty
	Kind      error  // one of the Err* sentinels
	Err       error  // underlying cause, may be nil
	Retryable bool
}

func (e *TransportError) Error() string {
	s := e.Op
	if e.Addr != "" {
		s += " " + e.Addr
	}
	s += ": " + e.Kind.Error()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// New returns a TransportError of the given kind with no underlying
// cause.
func New(op string, kind error) *TransportError {
	return &TransportError{Op: op, Kind: kind}
}

// Wrap creates a TransportError, detecting retryability from the
// underlying error.
func Wrap(op, addr string, kind, err error) *TransportError {
	return &TransportError{
		Op:        op,
		Addr:      addr,
		Kind:      kind,
		Err:       err,
		Retryable: kind == ErrConnectionRefused || classifyRetryable(err),
	}
}

// WrapDial classifies a failed connect attempt as ConnectionRefused
// when the peer actively refused, and IOError otherwise.
func WrapDial(op, addr string, err error) *TransportError {
	if isRefused(err) {
		return Wrap(op, addr, ErrConnectionRefused, err)
	}
	return Wrap(op, addr, ErrIO, err)
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsProgrammerError reports whether err is a misuse of the API (wrong
// connection state or an out-of-range transport kind).  Retrying will
// never help.
func IsProgrammerError(err error) bool {
	return errors.Is(err, ErrInvalidConnectionState) ||
		errors.Is(err, ErrInvalidTransportKind)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, ErrConnectionRefused)
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
