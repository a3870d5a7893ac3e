//go:build windows

package tunnel

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"
)

// openSSHAgentPipe is where the Windows OpenSSH agent listens.
const openSSHAgentPipe = `\\.\pipe\openssh-ssh-agent`

func agentSocket() string {
	if s := os.Getenv("SSH_AUTH_SOCK"); s != "" {
		return s
	}
	return openSSHAgentPipe
}

func dialAgent(sock string) (net.Conn, error) {
	if strings.HasPrefix(sock, `\\.\pipe\`) {
		timeout := 2 * time.Second
		return winio.DialPipe(sock, &timeout)
	}
	return net.Dial("unix", sock)
}
