// Package feed carries messages from the notebook editor plugin to the
// daemon: runtime kernel traffic, focus changes, and per-document
// lifecycle. The transport is line-delimited JSON over a unix socket, with
// a file replay source for offline use.
package feed

import "encoding/json"

// Type discriminates feed envelopes.
type Type string

const (
	// TypeHello announces that a document's execution session is ready.
	TypeHello Type = "hello"
	// TypeKernel carries one raw runtime message.
	TypeKernel Type = "kernel"
	// TypeFocus reports a focus change to another cell.
	TypeFocus Type = "focus"
	// TypeBye reports document disposal.
	TypeBye Type = "bye"
)

// Envelope is one feed message.
type Envelope struct {
	// Document identifies the notebook the message belongs to.
	Document string `json:"document"`
	Type     Type   `json:"type"`

	// Msg is the raw runtime message for TypeKernel.
	Msg json.RawMessage `json:"msg,omitempty"`

	// CellID and CellType accompany TypeFocus.
	CellID   string `json:"cell_id,omitempty"`
	CellType string `json:"cell_type,omitempty"`
}

// Valid reports whether the envelope can be routed at all. Envelopes that
// fail this are noise and are dropped without an error.
func (e Envelope) Valid() bool {
	if e.Document == "" {
		return false
	}
	switch e.Type {
	case TypeHello, TypeKernel, TypeFocus, TypeBye:
		return true
	default:
		return false
	}
}

// Handler consumes routed envelopes.
type Handler func(Envelope)
