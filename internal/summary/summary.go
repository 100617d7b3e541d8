// Package summary implements the per-document engagement aggregate.
//
// A Summary is pure data: counters, durations, and the set of unique cells
// that have produced at least one successful execution. Update operations
// mutate the owning Summary and nothing else; persistence and rendering
// live elsewhere.
package summary

// EngagementIncrementMs is the fixed time credit, in milliseconds, applied
// to ActiveMs for every qualifying execution or error event. Engagement time
// is event-credited, never wall-clock sampled.
const EngagementIncrementMs = 5000

// Summary accumulates engagement metrics for one tracked document.
//
// All counters are monotonically non-decreasing for the lifetime of a
// tracked session. Seed replaces them wholesale at attach time and is the
// only non-increment mutation; it must run before any event is processed.
type Summary struct {
	RunCount         uint64
	ErrorCount       uint64
	ActiveMs         uint64
	MarkdownActiveMs uint64

	// uniqueSeed carries the unique-cell cardinality recovered from a
	// durable record. Cell identities are not persisted, so the live set
	// restarts empty and the recovered count is added back in Unique.
	uniqueSeed uint64
	unique     map[string]struct{}
}

// New returns an all-zero Summary.
func New() *Summary {
	return &Summary{unique: make(map[string]struct{})}
}

// RecordExecution credits one successful execution of unitID.
func (s *Summary) RecordExecution(unitID string) {
	s.RunCount++
	s.ActiveMs += EngagementIncrementMs
	if unitID != "" {
		s.unique[unitID] = struct{}{}
	}
}

// RecordError credits one failed execution.
func (s *Summary) RecordError() {
	s.ErrorCount++
	s.ActiveMs += EngagementIncrementMs
}

// AddMarkdownTime credits ms milliseconds of narrative-focus time.
func (s *Summary) AddMarkdownTime(ms uint64) {
	s.MarkdownActiveMs += ms
}

// Unique returns the unique-cell count: cells observed this session plus
// the cardinality recovered from a prior durable record.
func (s *Summary) Unique() uint64 {
	return s.uniqueSeed + uint64(len(s.unique))
}

// Seed replaces the counters with values loaded from a durable record.
func (s *Summary) Seed(runCount, errorCount, activeMs, markdownMs, unique uint64) {
	s.RunCount = runCount
	s.ErrorCount = errorCount
	s.ActiveMs = activeMs
	s.MarkdownActiveMs = markdownMs
	s.uniqueSeed = unique
	s.unique = make(map[string]struct{})
}
