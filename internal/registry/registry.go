// Package registry owns the per-document engagement state.
//
// Exactly one DocumentState exists per tracked document at any time; the
// idempotent GetOrCreate is what prevents a second attach on the same
// document from double-counting runtime events.
package registry

import (
	"sync"
	"time"

	"engaged/internal/eventlog"
	"engaged/internal/host"
	"engaged/internal/summary"
)

// DocumentState is the tracked state of one open document. It is created
// on first successful attach and destroyed on disposal; the Registry is
// its exclusive owner.
type DocumentState struct {
	ID      string
	Summary *summary.Summary

	// PendingWrite is true while the in-memory summary has changes not
	// yet durably persisted.
	PendingWrite bool

	// Events is the raw event ring, nil unless the event-persistence
	// variant is enabled.
	Events *eventlog.Ring

	// narrativeSince is non-zero while the focused cell is a narrative
	// cell; markdown time deltas are computed against it on focus change.
	narrativeSince time.Time

	// Most recent unresolved error, for error-to-fix latency logging.
	lastErrorUnit string
	lastErrorAt   time.Time
}

// RecordExecution applies a successful execution of unitID. If this
// execution resolves the most recent error (same cell), the second return
// is true and the first carries the error-to-fix latency, for logging only.
func (d *DocumentState) RecordExecution(unitID string, now time.Time) (time.Duration, bool) {
	d.Summary.RecordExecution(unitID)
	d.PendingWrite = true

	if d.lastErrorUnit != "" && d.lastErrorUnit == unitID {
		latency := now.Sub(d.lastErrorAt)
		d.lastErrorUnit = ""
		d.lastErrorAt = time.Time{}
		return latency, true
	}
	return 0, false
}

// RecordError applies a failed execution of unitID.
func (d *DocumentState) RecordError(unitID string, now time.Time) {
	d.Summary.RecordError()
	d.PendingWrite = true
	d.lastErrorUnit = unitID
	d.lastErrorAt = now
}

// RecordFocusChange updates the narrative-focus marker and returns the
// markdown milliseconds credited by this change, zero if none.
func (d *DocumentState) RecordFocusChange(kind host.UnitKind, now time.Time) uint64 {
	var credited uint64
	if !d.narrativeSince.IsZero() {
		if delta := now.Sub(d.narrativeSince); delta > 0 {
			credited = uint64(delta.Milliseconds())
			d.Summary.AddMarkdownTime(credited)
			d.PendingWrite = true
		}
		d.narrativeSince = time.Time{}
	}
	if kind.Narrative() {
		d.narrativeSince = now
	}
	return credited
}

// Registry holds one DocumentState per tracked document.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*DocumentState
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{docs: make(map[string]*DocumentState)}
}

// GetOrCreate returns the state for documentID, creating it if absent.
// The second return is true when the state was created by this call.
func (r *Registry) GetOrCreate(documentID string) (*DocumentState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.docs[documentID]; ok {
		return st, false
	}
	st := &DocumentState{
		ID:      documentID,
		Summary: summary.New(),
	}
	r.docs[documentID] = st
	return st, true
}

// Get returns the state for documentID, if tracked.
func (r *Registry) Get(documentID string) (*DocumentState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.docs[documentID]
	return st, ok
}

// Remove untracks the document and returns its final state, nil if it was
// not tracked.
func (r *Registry) Remove(documentID string) *DocumentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.docs[documentID]
	delete(r.docs, documentID)
	return st
}

// IDs returns the tracked document ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of tracked documents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
