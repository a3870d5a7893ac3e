//go:build windows

package modem

import (
	"context"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

const lineNetwork = "pipe"

const pipePrefix = `\\.\pipe\`

// pipeName turns a bare line name into a pipe path.
func pipeName(device string) string {
	if strings.HasPrefix(device, `\\`) {
		return device
	}
	return pipePrefix + device
}

func lineAvailable(device string) bool { return device != "" }

func dialLine(ctx context.Context, device string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, pipeName(device))
}

func listenLine(device string) (net.Listener, error) {
	return winio.ListenPipe(pipeName(device), &winio.PipeConfig{
		InputBufferSize:  4096,
		OutputBufferSize: 4096,
	})
}
