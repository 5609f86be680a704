package stats

import (
	"bufio"
	"fmt"
	"io"

	"github.com/sophialabs/lsvstats/internal/domain/sample"
)

// Reporter computes and emits snapshots of a sample store.
type Reporter struct {
	summarizer Summarizer
}

// NewReporter creates a new Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// Compute summarizes every bucket of store. names[i] is the name of rule i.
func (r *Reporter) Compute(names []string, store *sample.Store) []RuleSummary {
	out := make([]RuleSummary, len(names))
	for i, name := range names {
		out[i] = RuleSummary{
			Name: name,
			Miss: r.summarizer.Summarize(store.Snapshot(i, sample.OutcomeMiss)),
			Hit:  r.summarizer.Summarize(store.Snapshot(i, sample.OutcomeHit)),
		}
	}
	return out
}

// ComputeAndEmit writes one line per rule to w in rule order, flushes it and
// resets the store. The store is reset even when writing fails.
func (r *Reporter) ComputeAndEmit(names []string, store *sample.Store, w io.Writer) ([]RuleSummary, error) {
	defer store.ResetAll()

	summaries := r.Compute(names, store)

	bw := bufio.NewWriter(w)
	for _, s := range summaries {
		if _, err := fmt.Fprintln(bw, FormatLine(s)); err != nil {
			return summaries, fmt.Errorf("failed to write snapshot: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return summaries, fmt.Errorf("failed to flush snapshot: %w", err)
	}
	return summaries, nil
}
