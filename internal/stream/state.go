package stream

import "fmt"

// State is a connection's lifecycle position.
type State int

const (
	Uninitialized State = iota // no endpoint
	EndpointReady              // endpoint allocated, no peer
	Connecting                 // open or wait in progress
	Connected                  // peer attached, packets may flow
	Closing                    // teardown in progress
	Closed                     // torn down, endpoint still allocated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case EndpointReady:
		return "endpoint-ready"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
