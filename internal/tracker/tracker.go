// Package tracker ties the engagement core together.
//
// A Tracker attaches to documents once both readiness signals have fired,
// routes normalized runtime events into per-document state, schedules
// debounced write-backs, and force-flushes pending state on disposal and
// shutdown. Events for documents that are not (yet) tracked are dropped;
// the runtime keeps emitting once the document is ready.
package tracker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"engaged/internal/eventlog"
	"engaged/internal/events"
	"engaged/internal/host"
	"engaged/internal/persist"
	"engaged/internal/registry"
	"engaged/internal/scheduler"
)

// Config configures a Tracker.
type Config struct {
	// Quiet is the write-back debounce period. Zero uses the default.
	Quiet time.Duration

	// PersistEvents enables the event-oriented persistence variant.
	PersistEvents bool

	// EventLogCap bounds the raw event ring. Zero uses the default.
	EventLogCap int

	// Spool is the optional SQLite event mirror.
	Spool *eventlog.Spool
}

// Tracker observes runtime events for attached documents and keeps their
// durable engagement summaries current.
type Tracker struct {
	mu   sync.Mutex
	log  *slog.Logger
	cfg  Config
	reg  *registry.Registry
	rec  *persist.Reconciler
	sch  *scheduler.Scheduler
	docs map[string]host.Document

	now func() time.Time
}

// New creates a Tracker.
func New(cfg Config, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	t := &Tracker{
		log:  log.With("component", "tracker"),
		cfg:  cfg,
		reg:  registry.New(),
		docs: make(map[string]host.Document),
		now:  time.Now,
	}
	t.rec = persist.New(log, persist.Options{
		PersistEvents: cfg.PersistEvents,
		Spool:         cfg.Spool,
	})
	t.sch = scheduler.New(cfg.Quiet, t.writeBack)
	return t
}

// Attach starts tracking a document. It blocks until both readiness
// signals have fired (document content ready, execution session ready) or
// ctx is done; until then no state exists and runtime events for the
// document are lost. Attaching an already-tracked document is a no-op.
func (t *Tracker) Attach(ctx context.Context, doc host.Document, contentReady, sessionReady <-chan struct{}) error {
	for _, ready := range []<-chan struct{}{contentReady, sessionReady} {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := doc.ID()
	if _, tracked := t.docs[id]; tracked {
		t.log.Debug("attach ignored, already tracked", "document", id)
		return nil
	}

	st, _ := t.reg.GetOrCreate(id)
	if t.cfg.PersistEvents {
		st.Events = eventlog.NewRing(t.cfg.EventLogCap)
	}
	t.rec.Load(doc, st)
	t.docs[id] = doc

	t.log.Info("tracking document", "document", id, "runs", st.Summary.RunCount)
	return nil
}

// HandleRaw routes one raw runtime message for a document. Malformed and
// uninteresting messages are dropped silently; messages for untracked
// documents are dropped at debug.
func (t *Tracker) HandleRaw(documentID string, raw json.RawMessage) {
	ev, ok := events.Normalize(raw)
	if !ok {
		return
	}

	t.mu.Lock()
	st, tracked := t.reg.Get(documentID)
	if !tracked {
		t.mu.Unlock()
		t.log.Debug("event for untracked document dropped", "document", documentID)
		return
	}

	now := t.now()
	switch ev.Kind {
	case events.KindExecutionStarted:
		latency, resolved := st.RecordExecution(ev.UnitID, now)
		if resolved {
			t.log.Debug("error resolved", "document", documentID, "cell", ev.UnitID, "latency", latency)
		}
		t.appendEvent(documentID, st, eventlog.Entry{
			Time: now, Kind: eventlog.KindRun, UnitID: ev.UnitID, Sequence: ev.Sequence,
		})
	case events.KindExecutionFailed:
		st.RecordError(ev.UnitID, now)
		t.appendEvent(documentID, st, eventlog.Entry{
			Time: now, Kind: eventlog.KindError, UnitID: ev.UnitID, Sequence: ev.Sequence, ErrorKind: ev.ErrorKind,
		})
	}
	t.sch.Mark(documentID)
	t.mu.Unlock()
}

// HandleFocus routes a focus change for a document.
func (t *Tracker) HandleFocus(documentID, unitID string, kind host.UnitKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, tracked := t.reg.Get(documentID)
	if !tracked {
		return
	}
	if credited := st.RecordFocusChange(kind, t.now()); credited > 0 {
		t.log.Debug("markdown time credited", "document", documentID, "cell", unitID, "ms", credited)
		t.sch.Mark(documentID)
	}
}

// Detach stops tracking a document: the pending timer is cancelled, unsaved
// state gets one forced save attempt, and the state is discarded.
func (t *Tracker) Detach(documentID string) {
	t.sch.Cancel(documentID)

	t.mu.Lock()
	defer t.mu.Unlock()

	doc, tracked := t.docs[documentID]
	st, _ := t.reg.Get(documentID)
	if tracked && st != nil && st.PendingWrite {
		t.saveLocked(doc, st)
	}
	delete(t.docs, documentID)
	t.reg.Remove(documentID)

	if tracked {
		t.log.Info("document detached", "document", documentID)
	}
}

// Shutdown force-saves every tracked document with pending state. This is
// the last line of defense against losing the final burst of engagement
// data before the process exits.
func (t *Tracker) Shutdown() {
	t.sch.Stop()

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, doc := range t.docs {
		if st, ok := t.reg.Get(id); ok && st.PendingWrite {
			t.saveLocked(doc, st)
		}
	}
	t.log.Info("tracker shut down", "documents", len(t.docs))
}

// Tracked returns the ids of currently tracked documents.
func (t *Tracker) Tracked() []string {
	return t.reg.IDs()
}

// Summary returns a copy of a tracked document's current counters.
func (t *Tracker) Summary(documentID string) (runs, errors, activeMs uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, tracked := t.reg.Get(documentID)
	if !tracked {
		return 0, 0, 0, false
	}
	return st.Summary.RunCount, st.Summary.ErrorCount, st.Summary.ActiveMs, true
}

// writeBack is the scheduler's save callback.
func (t *Tracker) writeBack(documentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, tracked := t.docs[documentID]
	st, _ := t.reg.Get(documentID)
	if !tracked || st == nil || !st.PendingWrite {
		return
	}
	t.saveLocked(doc, st)
}

// saveLocked performs one save attempt. On failure the state stays pending
// so the next trigger retries; the failure never propagates.
func (t *Tracker) saveLocked(doc host.Document, st *registry.DocumentState) {
	if err := t.rec.Save(doc, st); err != nil {
		t.log.Warn("save attempt abandoned", "document", doc.ID(), "error", err)
		return
	}
	st.PendingWrite = false
}

// appendEvent mirrors a raw event into the ring and spool for the
// event-persistence variant.
func (t *Tracker) appendEvent(documentID string, st *registry.DocumentState, e eventlog.Entry) {
	if st.Events == nil {
		return
	}
	st.Events.Append(e)
	if t.cfg.Spool != nil {
		if err := t.cfg.Spool.Append(documentID, e); err != nil {
			t.log.Warn("event spool append failed", "document", documentID, "error", err)
		}
	}
}
