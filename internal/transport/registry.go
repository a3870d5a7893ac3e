package transport

import (
	"sync"

	nserr "netstream/internal/errors"
)

// Availability is one line of a Registry report.
type Availability struct {
	Kind      Kind
	Linked    bool
	Available bool
}

// Registry holds the backends linked into this process and the kind new
// connections will use.  Selection is expected to happen before any
// connection opens; changing it later does not affect open connections.
type Registry struct {
	mu       sync.RWMutex
	backends map[Kind]Backend
	active   Kind
}

// NewRegistry links in backends.  A later backend of the same kind
// replaces an earlier one.  The initial kind is AddressedStream when it
// is linked, otherwise the first backend given.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[Kind]Backend, len(backends)), active: AddressedStream}
	for i, b := range backends {
		r.backends[b.Kind()] = b
		if i == 0 {
			r.active = b.Kind()
		}
	}
	if _, ok := r.backends[AddressedStream]; ok {
		r.active = AddressedStream
	}
	return r
}

// SetKind selects the transport for subsequent connections.  On error
// the previous selection is kept.
func (r *Registry) SetKind(k Kind) error {
	if !k.Valid() {
		return nserr.New("set transport "+k.String(), nserr.ErrInvalidTransportKind)
	}

	r.mu.RLock()
	b, ok := r.backends[k]
	r.mu.RUnlock()
	if !ok {
		// An unlinked kind is never available either.
		return nserr.Wrap("set transport "+k.String(), "", nserr.ErrUnsupportedTransportKind, nserr.ErrTransportUnavailable)
	}
	if !b.Available() {
		return nserr.New("set transport "+k.String(), nserr.ErrTransportUnavailable)
	}

	r.mu.Lock()
	r.active = k
	r.mu.Unlock()
	return nil
}

// Kind returns the active kind.
func (r *Registry) Kind() Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Linked reports whether a backend for k was linked in.
func (r *Registry) Linked(k Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[k]
	return ok
}

// Available reports whether k is linked in and usable.
func (r *Registry) Available(k Kind) bool {
	r.mu.RLock()
	b, ok := r.backends[k]
	r.mu.RUnlock()
	return ok && b.Available()
}

// Backend returns the active backend.
func (r *Registry) Backend() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[r.active]
	if !ok {
		return nil, nserr.New("backend "+r.active.String(), nserr.ErrUnsupportedTransportKind)
	}
	return b, nil
}

// Report lists every kind with its link and availability status.
func (r *Registry) Report() []Availability {
	out := make([]Availability, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, Availability{Kind: k, Linked: r.Linked(k), Available: r.Available(k)})
	}
	return out
}
