// Package persist reconciles in-memory engagement state with the durable
// representations stored inside the document.
//
// Two physical shapes exist: the structured metadata record under the
// "engage" key, and the rendered summary block tagged "engage-summary".
// Load prefers the structured record and falls back to parsing the block;
// Save writes both. No failure on either path propagates past this
// package's boundary as anything but a logged error.
package persist

import (
	"log/slog"

	"engaged/internal/eventlog"
	"engaged/internal/host"
	"engaged/internal/registry"
	"engaged/internal/render"
)

// Reconciler converts between DocumentState and the durable record.
type Reconciler struct {
	log *slog.Logger

	// persistEvents enables the event-oriented variant: the raw event
	// ring rides inside the structured record and mirrors to the spool.
	persistEvents bool
	spool         *eventlog.Spool
}

// Options configures a Reconciler.
type Options struct {
	// PersistEvents includes the raw event ring in the durable record.
	PersistEvents bool
	// Spool is the optional SQLite event mirror, consulted on load when
	// the document itself has no event log.
	Spool *eventlog.Spool
}

// New creates a Reconciler.
func New(log *slog.Logger, opts Options) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		log:           log.With("component", "persist"),
		persistEvents: opts.PersistEvents,
		spool:         opts.Spool,
	}
}

// Load seeds st from the document's durable record. Invoked once per
// document at attach time, before any event is processed.
//
// Priority: structured metadata, then the rendered block, then an all-zero
// summary with an initial block rendered so the tag exists for future
// loads. A malformed structured record is treated as absent.
func (r *Reconciler) Load(doc host.Document, st *registry.DocumentState) {
	if raw, ok := doc.Metadata().Get(MetadataKey); ok {
		rec, err := decodeRecord(raw)
		if err == nil {
			st.Summary.Seed(
				rec.Summary.RunCnt,
				rec.Summary.ErrCnt,
				rec.Summary.ActiveMs,
				rec.Summary.MarkdownActiveMs,
				rec.Summary.UniqueCellsExecuted,
			)
			r.seedEvents(doc, st, rec.Events)
			r.log.Debug("loaded summary from metadata", "document", doc.ID(), "runs", rec.Summary.RunCnt)
			return
		}
		r.log.Warn("malformed durable record, falling back", "document", doc.ID(), "error", err)
	}

	if text, ok := findSummaryBlock(doc, r.log); ok {
		parsed := render.Parse(text)
		parsed.Seed(st.Summary)
		r.seedEvents(doc, st, nil)
		r.log.Debug("recovered summary from rendered block", "document", doc.ID(), "runs", parsed.RunCount)
		return
	}

	// Neither source exists: start from zero and render the initial block
	// immediately so the tag is present for future loads.
	if err := r.writeBlock(doc, st); err != nil {
		r.log.Warn("initial summary block render failed", "document", doc.ID(), "error", err)
		return
	}
	if err := doc.MarkDirty(); err != nil {
		r.log.Warn("mark dirty failed after initial render", "document", doc.ID(), "error", err)
	}
}

// Save writes the current summary into the structured metadata store and
// regenerates the rendered block. Mutation failures are logged and
// returned so the caller keeps the state pending for the next trigger;
// they are never fatal.
func (r *Reconciler) Save(doc host.Document, st *registry.DocumentState) error {
	var events []eventlog.Entry
	if r.persistEvents && st.Events != nil {
		events = st.Events.Entries()
	}
	rec := recordFrom(st.Summary, events)

	if err := doc.Metadata().Set(MetadataKey, rec); err != nil {
		r.log.Warn("metadata write refused", "document", doc.ID(), "error", err)
		return err
	}
	if err := r.writeBlock(doc, st); err != nil {
		r.log.Warn("summary block write refused", "document", doc.ID(), "error", err)
		return err
	}
	if err := doc.MarkDirty(); err != nil {
		r.log.Warn("mark dirty failed", "document", doc.ID(), "error", err)
		return err
	}
	return nil
}

// writeBlock renders the summary and updates the tagged cell, inserting it
// at the top of the document if it does not exist yet.
func (r *Reconciler) writeBlock(doc host.Document, st *registry.DocumentState) error {
	units, err := doc.Units()
	if err != nil {
		return err
	}

	executable := 0
	blockID := ""
	for _, u := range units {
		if u.Kind == host.UnitCode {
			executable++
		}
		if blockID == "" && u.Tagged(SummaryTag) {
			blockID = u.ID
		}
	}

	text := render.Render(st.Summary, executable)
	if blockID != "" {
		return doc.UpdateUnit(blockID, text)
	}
	return doc.InsertUnit(0, host.UnitMarkdown, text, []string{SummaryTag})
}

// seedEvents seeds the raw event ring for the event-persistence variant,
// preferring the record's own log, then the spool.
func (r *Reconciler) seedEvents(doc host.Document, st *registry.DocumentState, fromRecord []eventlog.Entry) {
	if st.Events == nil {
		return
	}
	if len(fromRecord) > 0 {
		st.Events.SeedFrom(fromRecord)
		return
	}
	if r.spool == nil {
		return
	}
	spooled, err := r.spool.Load(doc.ID())
	if err != nil {
		r.log.Warn("event spool load failed", "document", doc.ID(), "error", err)
		return
	}
	st.Events.SeedFrom(spooled)
}

func findSummaryBlock(doc host.Document, log *slog.Logger) (string, bool) {
	units, err := doc.Units()
	if err != nil {
		log.Warn("unit listing failed during load", "document", doc.ID(), "error", err)
		return "", false
	}
	for _, u := range units {
		if u.Tagged(SummaryTag) {
			return u.Source, true
		}
	}
	return "", false
}
