// netstream - peer-to-peer packet streams over LAN, datagram or modem
// transports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"netstream/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "netstream: %v\n", err)
		os.Exit(1)
	}
}
