//go:build !windows

package modem

import (
	"context"
	"net"
	"os"
	"path/filepath"
)

const lineNetwork = "unix"

// lineAvailable reports whether the socket's directory exists.
func lineAvailable(device string) bool {
	fi, err := os.Stat(filepath.Dir(device))
	return err == nil && fi.IsDir()
}

func dialLine(ctx context.Context, device string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", device)
}

// listenLine binds the socket path, removing a stale socket left by a
// previous process.
func listenLine(device string) (net.Listener, error) {
	if fi, err := os.Lstat(device); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if c, err := net.Dial("unix", device); err == nil {
			c.Close()
		} else {
			os.Remove(device) //nolint:errcheck // a failed remove surfaces in Listen
		}
	}
	return net.Listen("unix", device)
}
