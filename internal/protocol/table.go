// Package protocol holds the packet type table shared by both ends of a
// stream connection.
//
// Packets carry no length on the wire: a receiver learns the payload
// length by looking the 2-byte type tag up in its own Table.  Both peers
// must therefore load the same table, or frame boundaries are misread.
// Fingerprint gives operators a cheap way to compare tables out of band.
package protocol

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
)

// HeaderSize is the size of the type tag preceding every payload.
const HeaderSize = 2

// Entry describes one packet type.
type Entry struct {
	Type   uint16 `yaml:"type"`
	Name   string `yaml:"name"`
	Length int    `yaml:"length"`
}

// Table maps packet types to fixed payload lengths.  It is safe for
// concurrent reads; registration is expected to finish before a
// connection carries traffic.
type Table struct {
	mu      sync.RWMutex
	entries map[uint16]Entry
}

// MaxPayload is the largest payload length a packet type may declare.
const MaxPayload = math.MaxUint16

// NewTable builds a table from entries.  Duplicate types and lengths
// outside [0, MaxPayload] are rejected.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{entries: make(map[uint16]Entry, len(entries))}
	for _, e := range entries {
		if err := t.Register(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register adds a packet type.
func (t *Table) Register(e Entry) error {
	if e.Length < 0 {
		return fmt.Errorf("packet type %d: negative length %d", e.Type, e.Length)
	}
	if e.Length > MaxPayload {
		return fmt.Errorf("packet type %d: length %d exceeds %d", e.Type, e.Length, MaxPayload)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.entries[e.Type]; ok {
		return fmt.Errorf("packet type %d already registered as %q", e.Type, prev.Name)
	}
	t.entries[e.Type] = e
	return nil
}

// Length returns the payload length for typ.
func (t *Table) Length(typ uint16) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[typ]
	return e.Length, ok
}

// Name returns the registered name for typ, or a numeric placeholder.
func (t *Table) Name(typ uint16) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if e, ok := t.entries[typ]; ok && e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("type-%d", typ)
}

// MaxLength returns the largest registered payload length.
func (t *Table) MaxLength() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e.Length > n {
			n = e.Length
		}
	}
	return n
}

// Entries returns the table sorted by type.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Fingerprint hashes every (type, length) pair.  Names do not
// contribute: they never affect framing.
func (t *Table) Fingerprint() uint64 {
	h := fnv.New64a()
	var rec [6]byte
	for _, e := range t.Entries() {
		binary.BigEndian.PutUint16(rec[0:2], e.Type)
		binary.BigEndian.PutUint32(rec[2:6], uint32(e.Length))
		h.Write(rec[:]) //nolint:errcheck // hash writes never fail
	}
	return h.Sum64()
}

// PutHeader encodes typ into the first HeaderSize bytes of b.
func PutHeader(b []byte, typ uint16) { binary.BigEndian.PutUint16(b, typ) }

// Header decodes the type tag at the start of b.
func Header(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
