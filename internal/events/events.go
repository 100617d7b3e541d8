// Package events normalizes raw runtime messages into engagement events.
//
// The runtime delivers kernel-style JSON messages. Only execution starts
// and execution failures matter here; every other message kind, and any
// message missing its header or cell id, is noise and is dropped without
// an error.
package events

import "encoding/json"

// Kind classifies a normalized event.
type Kind int

const (
	// KindOther marks a message the tracker does not care about.
	KindOther Kind = iota
	// KindExecutionStarted marks a successful cell execution.
	KindExecutionStarted
	// KindExecutionFailed marks a failed cell execution.
	KindExecutionFailed
)

// String returns a human-readable name for the event kind.
func (k Kind) String() string {
	switch k {
	case KindExecutionStarted:
		return "execution_started"
	case KindExecutionFailed:
		return "execution_failed"
	default:
		return "other"
	}
}

// Event is a normalized engagement event.
type Event struct {
	Kind      Kind
	UnitID    string
	Sequence  uint64
	ErrorKind string
}

// Message kinds understood from the raw stream.
const (
	msgExecuteInput = "execute_input"
	msgError        = "error"
)

// rawMessage is the kernel-style wire shape. Fields beyond these are
// ignored.
type rawMessage struct {
	Header *struct {
		MsgType string `json:"msg_type"`
	} `json:"header"`
	Content struct {
		ExecutionCount uint64 `json:"execution_count"`
		EName          string `json:"ename"`
	} `json:"content"`
	CellID string `json:"cell_id"`
}

// Normalize extracts an Event from a raw runtime message. The second
// return is false for malformed or uninteresting messages; dropping those
// is noise filtering, not an error condition.
func Normalize(raw json.RawMessage) (Event, bool) {
	var msg rawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, false
	}
	if msg.Header == nil || msg.CellID == "" {
		return Event{}, false
	}

	switch msg.Header.MsgType {
	case msgExecuteInput:
		return Event{
			Kind:     KindExecutionStarted,
			UnitID:   msg.CellID,
			Sequence: msg.Content.ExecutionCount,
		}, true
	case msgError:
		errorKind := msg.Content.EName
		if errorKind == "" {
			errorKind = "Error"
		}
		return Event{
			Kind:      KindExecutionFailed,
			UnitID:    msg.CellID,
			Sequence:  msg.Content.ExecutionCount,
			ErrorKind: errorKind,
		}, true
	default:
		return Event{}, false
	}
}
