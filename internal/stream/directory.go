package stream

import (
	"fmt"
	"sync"

	"netstream/internal/transport"
)

// Directory resolves a session-layer player index to a peer address.
type Directory interface {
	PeerAddress(index int) (transport.PeerAddress, error)
}

// StaticDirectory is a fixed index → address map.
type StaticDirectory struct {
	mu    sync.RWMutex
	peers map[int]transport.PeerAddress
}

// NewStaticDirectory returns a directory holding peers.
func NewStaticDirectory(peers map[int]transport.PeerAddress) *StaticDirectory {
	d := &StaticDirectory{peers: make(map[int]transport.PeerAddress, len(peers))}
	for i, a := range peers {
		d.peers[i] = a
	}
	return d
}

// Set records or replaces the address of player index.
func (d *StaticDirectory) Set(index int, addr transport.PeerAddress) {
	d.mu.Lock()
	d.peers[index] = addr
	d.mu.Unlock()
}

// PeerAddress implements Directory.
func (d *StaticDirectory) PeerAddress(index int) (transport.PeerAddress, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.peers[index]
	if !ok {
		return transport.PeerAddress{}, fmt.Errorf("no address for player %d", index)
	}
	return a, nil
}
