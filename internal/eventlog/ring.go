// Package eventlog keeps the raw engagement event log for the
// event-oriented persistence variant.
//
// The log is a newest-retained ring capped at 5000 entries per document.
// It rides along inside the durable record and is additionally mirrored to
// a local SQLite spool so it survives a document whose metadata has been
// stripped.
package eventlog

import "time"

// DefaultCap is the maximum number of retained entries per document.
const DefaultCap = 5000

// Entry is one raw engagement event.
type Entry struct {
	Time      time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	UnitID    string    `json:"cell"`
	Sequence  uint64    `json:"seq"`
	ErrorKind string    `json:"error_kind,omitempty"`
}

// Entry kinds.
const (
	KindRun   = "run"
	KindError = "error"
)

// Ring is a capped, newest-retained event buffer.
type Ring struct {
	cap     int
	entries []Entry
}

// NewRing creates a ring retaining at most cap entries. A cap of zero or
// less uses DefaultCap.
func NewRing(cap int) *Ring {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Ring{cap: cap}
}

// Append adds an entry, evicting the oldest when full.
func (r *Ring) Append(e Entry) {
	r.entries = append(r.entries, e)
	if len(r.entries) > r.cap {
		over := len(r.entries) - r.cap
		r.entries = append(r.entries[:0], r.entries[over:]...)
	}
}

// Entries returns the retained entries, oldest first.
func (r *Ring) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	return len(r.entries)
}

// SeedFrom replaces the ring contents with entries recovered from a
// durable source, keeping only the newest cap entries.
func (r *Ring) SeedFrom(entries []Entry) {
	if len(entries) > r.cap {
		entries = entries[len(entries)-r.cap:]
	}
	r.entries = append(r.entries[:0], entries...)
}
