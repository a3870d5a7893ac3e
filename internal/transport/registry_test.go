package transport

import (
	"context"
	"testing"

	nserr "netstream/internal/errors"
)

// fakeBackend is a Backend whose availability is set by the test.
type fakeBackend struct {
	kind      Kind
	available bool
}

func (f *fakeBackend) Kind() Kind      { return f.kind }
func (f *fakeBackend) Available() bool { return f.available }
func (f *fakeBackend) Establish(context.Context) (Endpoint, error) {
	return nil, nserr.New("establish", nserr.ErrEndpointAllocationFailed)
}

func TestNewRegistry_InitialKind(t *testing.T) {
	tests := []struct {
		name     string
		backends []Backend
		want     Kind
	}{
		{"stream preferred", []Backend{&fakeBackend{kind: Datagram}, &fakeBackend{kind: AddressedStream}}, AddressedStream},
		{"first linked", []Backend{&fakeBackend{kind: Modem}, &fakeBackend{kind: Datagram}}, Modem},
		{"empty", nil, AddressedStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRegistry(tt.backends...).Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistry_SetKind(t *testing.T) {
	r := NewRegistry(
		&fakeBackend{kind: AddressedStream, available: true},
		&fakeBackend{kind: Datagram, available: false},
	)

	tests := []struct {
		name    string
		kind    Kind
		wantErr error
	}{
		{"out of range", Kind(7), nserr.ErrInvalidTransportKind},
		{"negative", Kind(-1), nserr.ErrInvalidTransportKind},
		{"not linked", Modem, nserr.ErrUnsupportedTransportKind},
		{"unavailable", Datagram, nserr.ErrTransportUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.SetKind(tt.kind)
			if !nserr.Is(err, tt.wantErr) {
				t.Fatalf("SetKind(%v) = %v, want %v", tt.kind, err, tt.wantErr)
			}
			if got := r.Kind(); got != AddressedStream {
				t.Errorf("failed SetKind changed active kind to %v", got)
			}
		})
	}

	if err := r.SetKind(AddressedStream); err != nil {
		t.Fatalf("SetKind(AddressedStream): %v", err)
	}
}

func TestRegistry_SetKindUnlinkedIsUnavailable(t *testing.T) {
	r := NewRegistry(&fakeBackend{kind: AddressedStream, available: true})
	err := r.SetKind(Modem)
	if !nserr.Is(err, nserr.ErrUnsupportedTransportKind) {
		t.Errorf("SetKind(Modem) = %v, want UnsupportedTransportKind", err)
	}
	if !nserr.Is(err, nserr.ErrTransportUnavailable) {
		t.Errorf("SetKind(Modem) = %v, want TransportUnavailable too", err)
	}
	if nserr.IsRetryable(err) {
		t.Error("an unlinked kind should not be retryable")
	}
}

func TestRegistry_SetKindSucceeds(t *testing.T) {
	r := NewRegistry(
		&fakeBackend{kind: AddressedStream, available: true},
		&fakeBackend{kind: Datagram, available: true},
	)
	if err := r.SetKind(Datagram); err != nil {
		t.Fatal(err)
	}
	if r.Kind() != Datagram {
		t.Errorf("Kind() = %v, want datagram", r.Kind())
	}
	b, err := r.Backend()
	if err != nil {
		t.Fatal(err)
	}
	if b.Kind() != Datagram {
		t.Errorf("Backend().Kind() = %v", b.Kind())
	}
}

func TestRegistry_BackendUnlinked(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Backend(); !nserr.Is(err, nserr.ErrUnsupportedTransportKind) {
		t.Errorf("Backend() on empty registry = %v", err)
	}
}

func TestRegistry_Report(t *testing.T) {
	r := NewRegistry(
		&fakeBackend{kind: AddressedStream, available: true},
		&fakeBackend{kind: Modem, available: false},
	)
	want := []Availability{
		{Kind: AddressedStream, Linked: true, Available: true},
		{Kind: Datagram, Linked: false, Available: false},
		{Kind: Modem, Linked: true, Available: false},
	}
	got := r.Report()
	if len(got) != len(want) {
		t.Fatalf("Report() len = %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Report()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if r.Available(Datagram) {
		t.Error("unlinked kind reported available")
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"lan", AddressedStream, false},
		{"TCP", AddressedStream, false},
		{"datagram", Datagram, false},
		{"udp", Datagram, false},
		{" modem ", Modem, false},
		{"ipx", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, k := range Kinds {
		back, err := ParseKind(k.String())
		if err != nil || back != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), back, err)
		}
	}
	if Kind(9).Valid() || Kind(9).String() != "Kind(9)" {
		t.Error("Kind(9) should be invalid")
	}
}

func TestCapabilities(t *testing.T) {
	c := DefaultCapabilities()
	if !c.Has(AddressedStream) || !c.Has(Datagram) || c.Has(Modem) {
		t.Errorf("DefaultCapabilities() = %+v", c)
	}
	if c.Has(Kind(9)) {
		t.Error("invalid kind reported enabled")
	}
}
