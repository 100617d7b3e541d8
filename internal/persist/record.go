package persist

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"engaged/internal/eventlog"
	"engaged/internal/summary"
)

// Durable storage identifiers.
const (
	// MetadataKey is the fixed key of the structured record in the
	// document's metadata store.
	MetadataKey = "engage"
	// SummaryTag marks the managed summary cell.
	SummaryTag = "engage-summary"
)

// Record is the structured durable representation of a Summary, stored
// inside the document itself.
type Record struct {
	Summary RecordSummary   `json:"summary"`
	Events  []eventlog.Entry `json:"events,omitempty"`
}

// RecordSummary carries the numeric summary fields.
type RecordSummary struct {
	RunCnt              uint64 `json:"runCnt"`
	ErrCnt              uint64 `json:"errCnt"`
	ActiveMs            uint64 `json:"activeMs"`
	MarkdownActiveMs    uint64 `json:"markdownActiveMs"`
	UniqueCellsExecuted uint64 `json:"uniqueCellsExecuted"`
}

// recordSchema validates a loaded structured record. Fields inside summary
// stay optional so older records load with zero defaults; only the shape
// is enforced.
const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["summary"],
  "properties": {
    "summary": {
      "type": "object",
      "properties": {
        "runCnt": {"type": "integer", "minimum": 0},
        "errCnt": {"type": "integer", "minimum": 0},
        "activeMs": {"type": "integer", "minimum": 0},
        "markdownActiveMs": {"type": "integer", "minimum": 0},
        "uniqueCellsExecuted": {"type": "integer", "minimum": 0}
      }
    },
    "events": {"type": "array"}
  }
}`

var compiledRecordSchema = jsonschema.MustCompileString("engage-record.schema.json", recordSchema)

// decodeRecord validates and unmarshals a raw structured record. Any
// failure means the record is treated as absent, never fatal.
func decodeRecord(raw json.RawMessage) (*Record, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if err := compiledRecordSchema.Validate(instance); err != nil {
		return nil, fmt.Errorf("validate record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

// recordFrom projects a Summary into its durable shape.
func recordFrom(s *summary.Summary, events []eventlog.Entry) Record {
	return Record{
		Summary: RecordSummary{
			RunCnt:              s.RunCount,
			ErrCnt:              s.ErrorCount,
			ActiveMs:            s.ActiveMs,
			MarkdownActiveMs:    s.MarkdownActiveMs,
			UniqueCellsExecuted: s.Unique(),
		},
		Events: events,
	}
}
