package persist

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engaged/internal/eventlog"
	"engaged/internal/host"
	"engaged/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newState(t *testing.T, id string) *registry.DocumentState {
	t.Helper()
	st, created := registry.New().GetOrCreate(id)
	require.True(t, created)
	return st
}

func storedRecord(t *testing.T, doc host.Document) Record {
	t.Helper()
	raw, ok := doc.Metadata().Get(MetadataKey)
	require.True(t, ok, "structured record must exist")
	var rec Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	return rec
}

func TestLoadFromMetadata(t *testing.T) {
	doc := host.NewMemDocument("doc")
	require.NoError(t, doc.Metadata().Set(MetadataKey, Record{
		Summary: RecordSummary{RunCnt: 7, ErrCnt: 2, ActiveMs: 600000, MarkdownActiveMs: 60000, UniqueCellsExecuted: 3},
	}))
	writesBefore := doc.MetadataWrites()

	st := newState(t, "doc")
	New(testLogger(), Options{}).Load(doc, st)

	assert.Equal(t, uint64(7), st.Summary.RunCount)
	assert.Equal(t, uint64(2), st.Summary.ErrorCount)
	assert.Equal(t, uint64(600000), st.Summary.ActiveMs)
	assert.Equal(t, uint64(3), st.Summary.Unique())
	assert.Equal(t, writesBefore, doc.MetadataWrites(), "load must not mutate metadata")
}

func TestLoadFallbackFromBlock(t *testing.T) {
	block := "## Engagement Summary\n\n| Metric | Value |\n| --- | --- |\n| Run count | 7 |\n| Error count | 2 |\n| Active time (min) | 10 |"
	doc := host.NewMemDocument("doc",
		host.Unit{ID: "s", Kind: host.UnitMarkdown, Source: block, Tags: []string{SummaryTag}},
		host.Unit{ID: "c", Kind: host.UnitCode, Source: "x = 1"},
	)

	st := newState(t, "doc")
	New(testLogger(), Options{}).Load(doc, st)

	assert.Equal(t, uint64(7), st.Summary.RunCount)
	assert.Equal(t, uint64(2), st.Summary.ErrorCount)
	assert.Equal(t, uint64(600000), st.Summary.ActiveMs)
	assert.Zero(t, doc.MetadataWrites(), "fallback load must not write metadata")
	assert.Zero(t, doc.DirtyMarks(), "fallback load must not dirty the document")
}

func TestLoadMalformedMetadataFallsBack(t *testing.T) {
	block := "## Engagement Summary\n\n| Run count | 4 |"
	doc := host.NewMemDocument("doc",
		host.Unit{ID: "s", Kind: host.UnitMarkdown, Source: block, Tags: []string{SummaryTag}},
	)
	require.NoError(t, doc.Metadata().Set(MetadataKey, map[string]any{"summary": "truncated"}))

	st := newState(t, "doc")
	New(testLogger(), Options{}).Load(doc, st)

	assert.Equal(t, uint64(4), st.Summary.RunCount, "malformed record is treated as absent")
}

func TestLoadNothingRendersInitialBlock(t *testing.T) {
	doc := host.NewMemDocument("doc",
		host.Unit{ID: "c1", Kind: host.UnitCode, Source: "x = 1"},
	)

	st := newState(t, "doc")
	New(testLogger(), Options{}).Load(doc, st)

	assert.Zero(t, st.Summary.RunCount)

	units, _ := doc.Units()
	require.Len(t, units, 2)
	assert.True(t, units[0].Tagged(SummaryTag), "initial block must be inserted at position 0")
	assert.Contains(t, units[0].Source, "| Run count | 0 |")
	assert.Contains(t, units[0].Source, "| Progress Completion | 0% |")
	assert.Equal(t, 1, doc.DirtyMarks())
}

func TestSaveWritesMetadataAndBlock(t *testing.T) {
	doc := host.NewMemDocument("doc",
		host.Unit{ID: "s", Kind: host.UnitMarkdown, Source: "stale", Tags: []string{SummaryTag}},
		host.Unit{ID: "c1", Kind: host.UnitCode, Source: "x"},
		host.Unit{ID: "c2", Kind: host.UnitCode, Source: "y"},
	)

	st := newState(t, "doc")
	st.RecordExecution("c1", time.Now())

	require.NoError(t, New(testLogger(), Options{}).Save(doc, st))

	rec := storedRecord(t, doc)
	assert.Equal(t, uint64(1), rec.Summary.RunCnt)
	assert.Equal(t, uint64(1), rec.Summary.UniqueCellsExecuted)

	units, _ := doc.Units()
	require.Len(t, units, 3, "existing block is updated, not duplicated")
	assert.Contains(t, units[0].Source, "| Run count | 1 |")
	assert.Contains(t, units[0].Source, "| Progress Completion | 50% |")
	assert.Equal(t, 1, doc.DirtyMarks())
}

func TestSaveInsertsBlockWhenMissing(t *testing.T) {
	doc := host.NewMemDocument("doc", host.Unit{ID: "c", Kind: host.UnitCode, Source: "x"})

	st := newState(t, "doc")
	st.RecordError("c", time.Now())

	require.NoError(t, New(testLogger(), Options{}).Save(doc, st))

	units, _ := doc.Units()
	require.Len(t, units, 2)
	assert.True(t, units[0].Tagged(SummaryTag))
	assert.Contains(t, units[0].Source, "| Error count | 1 |")
}

func TestSaveMutationRefusedIsNotFatal(t *testing.T) {
	doc := host.NewMemDocument("doc")
	doc.RefuseMutations(true)

	st := newState(t, "doc")
	st.RecordExecution("a", time.Now())

	err := New(testLogger(), Options{}).Save(doc, st)
	require.Error(t, err, "the caller needs the failure to keep the state pending")
	assert.True(t, st.PendingWrite)
}

func TestSaveRoundTripThroughLoad(t *testing.T) {
	doc := host.NewMemDocument("doc", host.Unit{ID: "c", Kind: host.UnitCode, Source: "x"})
	rec := New(testLogger(), Options{})

	st := newState(t, "doc")
	now := time.Unix(1700000000, 0)
	st.RecordExecution("c", now)
	st.RecordError("c", now)
	require.NoError(t, rec.Save(doc, st))

	st2 := newState(t, "doc")
	rec.Load(doc, st2)

	assert.Equal(t, st.Summary.RunCount, st2.Summary.RunCount)
	assert.Equal(t, st.Summary.ErrorCount, st2.Summary.ErrorCount)
	assert.Equal(t, st.Summary.ActiveMs, st2.Summary.ActiveMs)
	assert.Equal(t, st.Summary.Unique(), st2.Summary.Unique())
}

func TestEventVariantPersistsRing(t *testing.T) {
	doc := host.NewMemDocument("doc", host.Unit{ID: "c", Kind: host.UnitCode, Source: "x"})
	rec := New(testLogger(), Options{PersistEvents: true})

	st := newState(t, "doc")
	st.Events = eventlog.NewRing(10)
	st.RecordExecution("c", time.Now())
	st.Events.Append(eventlog.Entry{Time: time.Unix(1700000000, 0).UTC(), Kind: eventlog.KindRun, UnitID: "c", Sequence: 1})

	require.NoError(t, rec.Save(doc, st))

	stored := storedRecord(t, doc)
	require.Len(t, stored.Events, 1)
	assert.Equal(t, "c", stored.Events[0].UnitID)

	// A fresh attach recovers the ring from the record.
	st2 := newState(t, "doc")
	st2.Events = eventlog.NewRing(10)
	rec.Load(doc, st2)
	assert.Equal(t, 1, st2.Events.Len())
}

func TestDecodeRecordRejectsWrongShape(t *testing.T) {
	cases := []string{
		`{"summary": 42}`,
		`{"summary": {"runCnt": -1}}`,
		`{"summary": {"runCnt": "seven"}}`,
		`[]`,
		`{}`,
	}
	for _, raw := range cases {
		if _, err := decodeRecord(json.RawMessage(raw)); err == nil {
			t.Errorf("expected %s to be rejected", raw)
		}
	}
}

func TestDecodeRecordAcceptsPartialSummary(t *testing.T) {
	rec, err := decodeRecord(json.RawMessage(`{"summary": {"runCnt": 3}}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rec.Summary.RunCnt)
	assert.Zero(t, rec.Summary.ErrCnt, "missing fields default to zero")
}

func TestRenderedBlockContainsHeading(t *testing.T) {
	doc := host.NewMemDocument("doc")
	st := newState(t, "doc")
	require.NoError(t, New(testLogger(), Options{}).Save(doc, st))

	units, _ := doc.Units()
	require.Len(t, units, 1)
	assert.True(t, strings.HasPrefix(units[0].Source, "## Engagement Summary"))
}
