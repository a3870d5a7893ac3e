package datagram

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	nserr "netstream/internal/errors"
	"netstream/internal/metrics"
	"netstream/internal/transport"
)

func openPair(t *testing.T, network Network) (*Backend, *Backend) {
	t.Helper()
	a := New(Options{Network: network})
	b := New(Options{Network: network})
	if err := a.Open(); err != nil {
		t.Fatalf("open a: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	if err := b.Open(); err != nil {
		t.Fatalf("open b: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return a, b
}

func recvWithin(t *testing.T, b *Backend, d time.Duration) *Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	f, err := b.NewFrame()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.ReceiveFrame(ctx, f); err != nil {
		t.Fatalf("ReceiveFrame: %v", err)
	}
	return f
}

func TestBackend_LoopbackCarriesProtocolType(t *testing.T) {
	lo := NewLoopback(0)
	a, b := openPair(t, lo)

	f, err := a.NewFrame()
	if err != nil {
		t.Fatal(err)
	}
	if f.Socket != a.LocalPort() {
		t.Errorf("frame socket = %d, want %d", f.Socket, a.LocalPort())
	}
	f.SetPayload([]byte("hello"))

	if err := a.SendFrame(f, lo.Address(b.LocalPort()), 7, 0); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	a.DisposeFrame(f)

	got := recvWithin(t, b, 2*time.Second)
	if !bytes.Equal(got.Payload(), []byte("hello")) {
		t.Errorf("payload = %q", got.Payload())
	}
	if got.ProtocolType != 7 {
		t.Errorf("protocol type = %d, want 7", got.ProtocolType)
	}
	if got.Address != lo.Address(a.LocalPort()) {
		t.Errorf("sender = %v, want %v", got.Address, lo.Address(a.LocalPort()))
	}
	if got.Socket != b.LocalPort() {
		t.Errorf("socket = %d, want %d", got.Socket, b.LocalPort())
	}
}

func TestBackend_UDPDropsProtocolType(t *testing.T) {
	a, b := openPair(t, UDPNetwork{BindHost: "127.0.0.1"})

	f, _ := a.NewFrame()
	f.SetPayload([]byte{0xde, 0xad})
	to := transport.PeerAddress{Network: "udp", Host: "127.0.0.1", Port: b.LocalPort()}
	if err := a.SendFrame(f, to, 9, 0); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}

	got := recvWithin(t, b, 2*time.Second)
	if !bytes.Equal(got.Payload(), []byte{0xde, 0xad}) {
		t.Errorf("payload = % x", got.Payload())
	}
	if got.ProtocolType != 0 {
		t.Errorf("UDP should report protocol type 0, got %d", got.ProtocolType)
	}
	if got.Address.Port != a.LocalPort() {
		t.Errorf("sender port = %d, want %d", got.Address.Port, a.LocalPort())
	}
}

func TestBackend_PortOverride(t *testing.T) {
	lo := NewLoopback(0)
	a, b := openPair(t, lo)

	f, _ := a.NewFrame()
	f.SetPayload([]byte("x"))
	wrong := lo.Address(1)
	if err := a.SendFrame(f, wrong, 0, b.LocalPort()); err != nil {
		t.Fatal(err)
	}
	got := recvWithin(t, b, 2*time.Second)
	if string(got.Payload()) != "x" {
		t.Errorf("payload = %q", got.Payload())
	}
}

func TestBackend_SendTooLarge(t *testing.T) {
	lo := NewLoopback(0)
	a, b := openPair(t, lo)

	f, _ := a.NewFrame()
	f.Length = MaxFrameBytes + 1
	err := a.SendFrame(f, lo.Address(b.LocalPort()), 0, 0)
	if !nserr.Is(err, nserr.ErrPayloadTooLarge) {
		t.Fatalf("SendFrame oversize = %v, want PayloadTooLarge", err)
	}

	empty, _ := b.NewFrame()
	if ok, err := b.PollFrame(empty); ok || err != nil {
		t.Errorf("nothing should have been sent: ok=%v err=%v", ok, err)
	}

	if err := f.SetPayload(make([]byte, MaxFrameBytes+1)); !nserr.Is(err, nserr.ErrPayloadTooLarge) {
		t.Errorf("SetPayload oversize = %v", err)
	}
}

func TestBackend_FramePoolBounded(t *testing.T) {
	b := New(Options{Network: NewLoopback(0), MaxFrames: 2})
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	f1, err := b.NewFrame()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.NewFrame(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.NewFrame(); !nserr.Is(err, nserr.ErrOutOfMemory) {
		t.Fatalf("third NewFrame = %v, want OutOfMemory", err)
	}

	b.DisposeFrame(f1)
	b.DisposeFrame(f1) // double dispose is a no-op
	b.DisposeFrame(nil)
	if got := b.OutstandingFrames(); got != 1 {
		t.Errorf("outstanding = %d, want 1", got)
	}

	f3, err := b.NewFrame()
	if err != nil {
		t.Fatalf("NewFrame after dispose: %v", err)
	}
	if f3.Length != 0 || f3.ProtocolType != 0 || !f3.Address.IsZero() {
		t.Errorf("recycled frame not zeroed: %+v", f3)
	}
}

func TestBackend_OpenFailureReleases(t *testing.T) {
	lo := NewLoopback(0)
	first := New(Options{Network: lo, Port: 5000})
	if err := first.Open(); err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	second := New(Options{Network: lo, Port: 5000})
	err := second.Open()
	if !nserr.Is(err, nserr.ErrSocketOpenFailed) {
		t.Fatalf("Open on bound port = %v, want SocketOpenFailed", err)
	}
	if _, err := second.NewFrame(); err == nil {
		t.Error("frame pool should not exist after failed open")
	}
	if err := second.Close(); err != nil {
		t.Errorf("Close after failed open: %v", err)
	}
}

func TestBackend_CloseIdempotent(t *testing.T) {
	b := New(Options{Network: NewLoopback(0)})
	if err := b.Close(); err != nil {
		t.Fatalf("Close before Open: %v", err)
	}
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if b.LocalPort() != 0 {
		t.Error("closed backend should report port 0")
	}
}

func TestBackend_ReceiveUnblocksOnClose(t *testing.T) {
	b := New(Options{Network: NewLoopback(0)})
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	f, _ := b.NewFrame()

	errc := make(chan error, 1)
	go func() { errc <- b.ReceiveFrame(context.Background(), f) }()

	time.Sleep(20 * time.Millisecond)
	b.Close()

	select {
	case err := <-errc:
		if !nserr.Is(err, nserr.ErrIO) {
			t.Errorf("ReceiveFrame after Close = %v, want IOError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ReceiveFrame did not unblock")
	}
}

func TestBackend_ReceiveContext(t *testing.T) {
	b := New(Options{Network: NewLoopback(0)})
	if err := b.Open(); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	f, _ := b.NewFrame()
	if err := b.ReceiveFrame(ctx, f); !nserr.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReceiveFrame = %v, want deadline exceeded", err)
	}
}

func TestBackend_QueueOverflowDrops(t *testing.T) {
	lo := NewLoopback(256)
	m := metrics.New()
	a := New(Options{Network: lo})
	b := New(Options{Network: lo, QueueLen: 2, Metrics: m})
	for _, x := range []*Backend{a, b} {
		if err := x.Open(); err != nil {
			t.Fatal(err)
		}
		defer x.Close()
	}

	f, _ := a.NewFrame()
	f.SetPayload([]byte("z"))
	for i := 0; i < 20; i++ {
		if err := a.SendFrame(f, lo.Address(b.LocalPort()), 0, 0); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.FramesDropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.FramesDropped() == 0 {
		t.Error("expected dropped frames with a full queue")
	}
}

func TestBackend_ConcurrentSend(t *testing.T) {
	lo := NewLoopback(512)
	a, b := openPair(t, lo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := a.NewFrame()
			if err != nil {
				t.Error(err)
				return
			}
			defer a.DisposeFrame(f)
			f.SetPayload(bytes.Repeat([]byte{byte(i)}, 100))
			for j := 0; j < 10; j++ {
				if err := a.SendFrame(f, lo.Address(b.LocalPort()), 0, 0); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 80; i++ {
		got := recvWithin(t, b, 2*time.Second)
		p := got.Payload()
		if len(p) != 100 || !bytes.Equal(p, bytes.Repeat(p[:1], 100)) {
			t.Fatalf("frame %d corrupted: % x", i, p[:8])
		}
		b.DisposeFrame(got)
	}
}
