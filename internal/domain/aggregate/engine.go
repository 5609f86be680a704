package aggregate

import (
	"fmt"
	"io"

	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/event"
	"github.com/sophialabs/lsvstats/internal/domain/match"
	"github.com/sophialabs/lsvstats/internal/domain/record"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/domain/stats"
)

// Params configures an Engine.
type Params struct {
	Rules          *match.RuleStore
	Controller     *control.Controller
	Samples        sample.Config
	MaxSlots       int
	PlatformHeader string
}

// Overflow describes a bucket that reached its ceiling.
type Overflow struct {
	Rule    string
	Outcome sample.Outcome
	Status  sample.Status
}

// Growth describes a bucket reallocation.
type Growth struct {
	Rule     string
	Outcome  sample.Outcome
	Capacity int
}

// Result reports what handling one event did.
type Result struct {
	// Ignored is set for events of neither the client nor the backend side.
	Ignored    bool
	OutOfRange bool
	Finalized  bool
	Valid      bool
	Samples    int
	Overflows  []Overflow
	Growths    []Growth
}

// Engine owns the rules, the sample buckets and the per-slot records, and
// turns the event stream into samples. It is not safe for concurrent use.
type Engine struct {
	rules     *match.RuleStore
	names     []string
	samples   *sample.Store
	sampleCfg sample.Config
	tracker   *record.Tracker
	evaluator *match.Evaluator
	reporter  *stats.Reporter
	ctrl      *control.Controller
	hits      []int
}

// New creates an engine with empty buckets and records.
func New(p Params) (*Engine, error) {
	if p.Rules == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if p.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	samples, err := sample.New(p.Rules.Len(), p.Samples)
	if err != nil {
		return nil, fmt.Errorf("failed to create sample store: %w", err)
	}
	return &Engine{
		rules:     p.Rules,
		names:     p.Rules.Names(),
		samples:   samples,
		sampleCfg: p.Samples,
		tracker:   record.NewTracker(p.MaxSlots, p.PlatformHeader),
		evaluator: match.NewEvaluator(),
		reporter:  stats.NewReporter(),
		ctrl:      p.Controller,
	}, nil
}

// Rules returns the active rule store.
func (e *Engine) Rules() *match.RuleStore {
	return e.rules
}

// Samples returns the active sample store.
func (e *Engine) Samples() *sample.Store {
	return e.samples
}

// Handle applies one event. A terminal event finalizes the slot and, when the
// record is valid, records one sample per matching rule. Reaching a bucket
// ceiling requests a flush that runs at the next checkpoint.
func (e *Engine) Handle(ev event.Event) Result {
	if ev.Side != event.SideClient && ev.Side != event.SideBackend {
		return Result{Ignored: true}
	}

	terminal, ok := e.tracker.Apply(ev)
	if !ok {
		return Result{OutOfRange: true}
	}
	if !terminal {
		return Result{}
	}

	rec, valid := e.tracker.FinalizeAndClear(ev.Slot)
	res := Result{Finalized: true, Valid: valid}
	if !valid {
		return res
	}

	outcome := outcomeOf(rec.Cache)
	e.hits = e.evaluator.Evaluate(&rec, e.rules, e.hits[:0])
	for _, idx := range e.hits {
		status := e.samples.Record(idx, outcome, rec.TTFB, rec.TTLB)
		switch status {
		case sample.Dropped:
		case sample.Grown:
			res.Samples++
			res.Growths = append(res.Growths, Growth{
				Rule:     e.names[idx],
				Outcome:  outcome,
				Capacity: e.samples.Snapshot(idx, outcome).Capacity,
			})
		default:
			res.Samples++
		}
		if status.Overflow() {
			e.ctrl.RequestFlush(control.ReasonOverflow)
			res.Overflows = append(res.Overflows, Overflow{Rule: e.names[idx], Outcome: outcome, Status: status})
		}
	}
	return res
}

// Flush emits the snapshot of every bucket to w and resets the buckets.
func (e *Engine) Flush(w io.Writer) ([]stats.RuleSummary, error) {
	return e.reporter.ComputeAndEmit(e.names, e.samples, w)
}

// Swap replaces the rules and starts a fresh sample store sized for them.
// In-flight records are kept. Callers flush before swapping.
func (e *Engine) Swap(rules *match.RuleStore) error {
	samples, err := sample.New(rules.Len(), e.sampleCfg)
	if err != nil {
		return fmt.Errorf("failed to create sample store: %w", err)
	}
	e.rules = rules
	e.names = rules.Names()
	e.samples = samples
	return nil
}

// Close drops every in-flight record.
func (e *Engine) Close() {
	e.tracker.Reset()
}

func outcomeOf(c record.CacheOutcome) sample.Outcome {
	if c == record.CacheHit {
		return sample.OutcomeHit
	}
	return sample.OutcomeMiss
}
