package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"netstream/internal/transport"
)

// ListMode prints which transports are linked in and usable.
type ListMode struct {
	Registry *transport.Registry
	Out      io.Writer // os.Stdout when nil
}

// Run writes the availability report.
func (m *ListMode) Run(_ context.Context) error {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRANSPORT\tLINKED\tAVAILABLE\t")
	for _, a := range m.Registry.Report() {
		mark := ""
		if a.Kind == m.Registry.Kind() && a.Linked {
			mark = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t\n", a.Kind, mark, yesNo(a.Linked), yesNo(a.Available))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
