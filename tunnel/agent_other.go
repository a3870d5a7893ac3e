//go:build !windows

package tunnel

import (
	"net"
	"os"
)

func agentSocket() string { return os.Getenv("SSH_AUTH_SOCK") }

func dialAgent(sock string) (net.Conn, error) {
	return net.Dial("unix", sock)
}
