// Package host abstracts the notebook editor environment.
//
// The engagement core never talks to a concrete document format; it sees
// only the Document and MetadataStore capabilities below. Branching on how
// a particular host shapes its metadata (accessor object vs. plain keyed
// bag) belongs to the implementations in this package, never to callers.
package host

import "encoding/json"

// UnitKind classifies a cell within a document.
type UnitKind string

const (
	// UnitCode is an executable cell.
	UnitCode UnitKind = "code"
	// UnitMarkdown is a narrative cell.
	UnitMarkdown UnitKind = "markdown"
	// UnitRaw is a non-executable, non-rendered cell.
	UnitRaw UnitKind = "raw"
)

// Narrative reports whether the kind is a non-executable narrative cell.
func (k UnitKind) Narrative() bool {
	return k == UnitMarkdown || k == UnitRaw
}

// Unit is one cell of a document.
type Unit struct {
	ID     string
	Kind   UnitKind
	Source string
	Tags   []string
}

// Tagged reports whether the unit carries the given tag.
func (u Unit) Tagged(tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MetadataStore is the document's structured metadata bag.
type MetadataStore interface {
	// Get returns the raw value stored under key, if any.
	Get(key string) (json.RawMessage, bool)
	// Set replaces the value stored under key.
	Set(key string, value any) error
}

// Document is one open notebook the tracker can observe and mutate.
type Document interface {
	// ID returns the document identity, stable for the open session.
	ID() string
	// Metadata returns the document's structured metadata store.
	Metadata() MetadataStore
	// Units returns the document's cells in order.
	Units() ([]Unit, error)
	// InsertUnit inserts a new cell at the given position.
	InsertUnit(pos int, kind UnitKind, source string, tags []string) error
	// UpdateUnit replaces the source of the cell with the given id.
	UpdateUnit(unitID, source string) error
	// MarkDirty hands the document to the host's own save machinery.
	MarkDirty() error
}
