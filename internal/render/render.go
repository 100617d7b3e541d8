// Package render converts a Summary to its markdown summary block and back.
//
// Render is a pure function; Parse is its best-effort inverse used to
// recover a Summary from a previously rendered block when structured
// metadata is missing. The round trip is lossy for derived fields: the
// completion percentage is never parsed back.
package render

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"engaged/internal/summary"
)

// Heading is the first line of every rendered summary block.
const Heading = "## Engagement Summary"

// Row labels, in the stable render order.
const (
	LabelRunCount     = "Run count"
	LabelErrorCount   = "Error count"
	LabelActiveMin    = "Active time (min)"
	LabelMarkdownMin  = "Markdown time (min)"
	LabelUniqueCells  = "Unique cells run"
	LabelCompletion   = "Progress Completion"
)

const msPerMinute = 60000

// Render produces the fixed-layout summary block. executableUnits is the
// document's total code-cell count; zero executable cells always render as
// 0% completion.
func Render(s *summary.Summary, executableUnits int) string {
	var b strings.Builder
	b.WriteString(Heading)
	b.WriteString("\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| %s | %d |\n", LabelRunCount, s.RunCount)
	fmt.Fprintf(&b, "| %s | %d |\n", LabelErrorCount, s.ErrorCount)
	fmt.Fprintf(&b, "| %s | %d |\n", LabelActiveMin, roundMinutes(s.ActiveMs))
	fmt.Fprintf(&b, "| %s | %d |\n", LabelMarkdownMin, roundMinutes(s.MarkdownActiveMs))
	fmt.Fprintf(&b, "| %s | %d |\n", LabelUniqueCells, s.Unique())
	fmt.Fprintf(&b, "| %s | %d%% |", LabelCompletion, CompletionPercent(s.Unique(), executableUnits))
	return b.String()
}

// CompletionPercent returns the rounded completion ratio as an integer
// percentage, capped at 100. A document with zero executable units is
// always 0%.
func CompletionPercent(unique uint64, executableUnits int) int {
	if executableUnits <= 0 {
		return 0
	}
	pct := int(math.Round(float64(unique) / float64(executableUnits) * 100))
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Parsed is a best-effort Summary recovered from a rendered block. A row
// that is absent or malformed leaves its field at zero.
type Parsed struct {
	RunCount         uint64
	ErrorCount       uint64
	ActiveMs         uint64
	MarkdownActiveMs uint64
	Unique           uint64
}

// Parse extracts each metric independently by matching its labeled row.
func Parse(text string) Parsed {
	return Parsed{
		RunCount:         parseRow(text, LabelRunCount),
		ErrorCount:       parseRow(text, LabelErrorCount),
		ActiveMs:         parseRow(text, LabelActiveMin) * msPerMinute,
		MarkdownActiveMs: parseRow(text, LabelMarkdownMin) * msPerMinute,
		Unique:           parseRow(text, LabelUniqueCells),
	}
}

// Seed applies the parsed values to a Summary.
func (p Parsed) Seed(s *summary.Summary) {
	s.Seed(p.RunCount, p.ErrorCount, p.ActiveMs, p.MarkdownActiveMs, p.Unique)
}

func parseRow(text, label string) uint64 {
	re := regexp.MustCompile(`(?m)^\|\s*` + regexp.QuoteMeta(label) + `\s*\|\s*(\d+)\s*%?\s*\|`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func roundMinutes(ms uint64) uint64 {
	return uint64(math.Round(float64(ms) / msPerMinute))
}
