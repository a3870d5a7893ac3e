package util

import (
	"testing"
)

func TestResolveAddr(t *testing.T) {
	tests := []struct {
		host    string
		port    uint16
		noDNS   bool
		want    string
		wantErr bool
	}{
		{"127.0.0.1", 4226, true, "127.0.0.1:4226", false},
		{"::1", 443, true, "[::1]:443", false},
		{"example.com", 80, false, "example.com:80", false},
		{"example.com", 80, true, "", true}, // hostname with noDNS
	}

	for _, tt := range tests {
		got, err := ResolveAddr(tt.host, tt.port, tt.noDNS)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveAddr(%q,%d,%v) err=%v wantErr=%v",
				tt.host, tt.port, tt.noDNS, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveAddr(%q,%d,%v) = %q, want %q",
				tt.host, tt.port, tt.noDNS, got, tt.want)
		}
	}
}

func TestSplitAddr(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort uint16
		wantErr  bool
	}{
		{"1.2.3.4:22", "1.2.3.4", 22, false},
		{"[::1]:4226", "::1", 4226, false},
		{"host:0", "host", 0, false},
		{"host:70000", "", 0, true},
		{"no-port", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port, err := SplitAddr(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err == nil && (host != tt.wantHost || port != tt.wantPort) {
				t.Errorf("got (%q, %d), want (%q, %d)", host, port, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestFormatAddr(t *testing.T) {
	if got := FormatAddr("1.2.3.4", 22); got != "1.2.3.4:22" {
		t.Errorf("got %q, want %q", got, "1.2.3.4:22")
	}
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	if port == 0 {
		t.Error("port should be non-zero")
	}
}

func TestFindFreeUDPPort(t *testing.T) {
	port, err := FindFreeUDPPort()
	if err != nil {
		t.Fatal(err)
	}
	if port == 0 {
		t.Error("port should be non-zero")
	}
}

func TestHasUsableInterface(t *testing.T) {
	// Test hosts always have loopback up.
	if !HasUsableInterface() {
		t.Skip("no interface up in this environment")
	}
}
