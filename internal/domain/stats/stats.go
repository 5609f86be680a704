package stats

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/sophialabs/lsvstats/internal/domain/sample"
)

// Summary is the reported statistic of one bucket, in milliseconds.
type Summary struct {
	Count     int
	AvgTTFB   int64
	Tail10    int64
	AvgTTLB   int64
	Dropped   uint64
	Capacity  int
	TailCount int
}

// RuleSummary holds both outcome summaries of one rule.
type RuleSummary struct {
	Name string
	Miss Summary
	Hit  Summary
}

// Outcome returns the summary for o.
func (r RuleSummary) Outcome(o sample.Outcome) Summary {
	if o == sample.OutcomeHit {
		return r.Hit
	}
	return r.Miss
}

// TailCount returns how many of the slowest samples form the tail decile:
// floor(count / 10).
func TailCount(count int) int {
	return count / 10
}

// Summarizer computes bucket summaries. It keeps a scratch buffer so the
// store's series keep insertion order.
type Summarizer struct {
	scratch []float64
}

// Summarize computes mean and tail-decile mean of a bucket view.
func (s *Summarizer) Summarize(v sample.View) Summary {
	sum := Summary{
		Count:    v.Count,
		Dropped:  v.Dropped,
		Capacity: v.Capacity,
	}
	if v.Count == 0 {
		return sum
	}

	sum.AvgTTFB = millis(v.SumTTFB / float64(v.Count))
	sum.AvgTTLB = millis(v.SumTTLB / float64(v.Count))

	tailN := TailCount(v.Count)
	sum.TailCount = tailN
	if tailN == 0 {
		return sum
	}

	s.scratch = append(s.scratch[:0], v.TTFB...)
	slices.SortFunc(s.scratch, func(a, b float64) int { return cmp.Compare(b, a) })

	sum.Tail10 = millis(stat.Mean(s.scratch[:tailN], nil))
	return sum
}

// millis converts seconds to whole milliseconds, rounding to nearest.
func millis(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// FormatLine renders the snapshot line of one rule.
func FormatLine(r RuleSummary) string {
	return fmt.Sprintf("%s count_miss:%d average_miss:%d 10wa_miss:%d count_hit:%d average_hit:%d 10wa_hit:%d",
		r.Name,
		r.Miss.Count, r.Miss.AvgTTFB, r.Miss.Tail10,
		r.Hit.Count, r.Hit.AvgTTFB, r.Hit.Tail10,
	)
}
