// Package scheduler decides when dirty engagement state is written back.
//
// Each document owns a single-slot debounce timer: marking a document
// while its timer is pending cancels and replaces the timer, coalescing a
// burst of events into one save that fires a quiet period after the last
// mutation. Flush runs the save immediately and is the forced path used on
// disposal and shutdown.
package scheduler

import (
	"sync"
	"time"
)

// DefaultQuiet is the debounce quiet period.
const DefaultQuiet = 750 * time.Millisecond

// SaveFunc performs the write-back for one document. It must tolerate the
// document having been untracked in the meantime.
type SaveFunc func(documentID string)

// Scheduler coalesces write-backs per document.
type Scheduler struct {
	mu     sync.Mutex
	quiet  time.Duration
	save   SaveFunc
	timers map[string]*time.Timer
}

// New creates a Scheduler firing save after the given quiet period. A
// non-positive quiet period uses DefaultQuiet.
func New(quiet time.Duration, save SaveFunc) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Scheduler{
		quiet:  quiet,
		save:   save,
		timers: make(map[string]*time.Timer),
	}
}

// Mark schedules a save for the document, replacing any pending timer so
// the quiet period restarts from this mutation.
func (s *Scheduler) Mark(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[documentID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(s.quiet, func() {
		s.fire(documentID, t)
	})
	s.timers[documentID] = t
}

// fire runs the save for an elapsed timer, unless it was replaced or
// cancelled after scheduling.
func (s *Scheduler) fire(documentID string, t *time.Timer) {
	s.mu.Lock()
	current, ok := s.timers[documentID]
	if !ok || current != t {
		s.mu.Unlock()
		return
	}
	delete(s.timers, documentID)
	s.mu.Unlock()

	s.save(documentID)
}

// Flush cancels any pending timer and runs the save now. This is the
// forced path: disposal and shutdown call it regardless of timer state.
func (s *Scheduler) Flush(documentID string) {
	s.cancel(documentID)
	s.save(documentID)
}

// Cancel drops any pending timer without saving.
func (s *Scheduler) Cancel(documentID string) {
	s.cancel(documentID)
}

// Pending reports whether a save is scheduled for the document.
func (s *Scheduler) Pending(documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[documentID]
	return ok
}

// Stop cancels every pending timer. It does not save; callers flush first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) cancel(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[documentID]; ok {
		t.Stop()
		delete(s.timers, documentID)
	}
}
