package ports

import (
	"context"
	"time"

	"github.com/sophialabs/lsvstats/internal/domain/event"
	"github.com/sophialabs/lsvstats/internal/domain/stats"
)

// Clock provides the current time (for testing).
type Clock interface {
	Now() time.Time
	// SleepContext blocks for d or until ctx is cancelled. Returns ctx.Err() if cancelled.
	SleepContext(ctx context.Context, d time.Duration) error
}

// Logger provides structured logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Throttle limits how often a repeated diagnostic is emitted.
type Throttle interface {
	// Allow reports whether the diagnostic identified by key may be emitted
	// now. suppressed is the number of denied calls for key since the last
	// allowed one.
	Allow(key string) (ok bool, suppressed int)
}

// EventSource produces log events until its input is exhausted.
type EventSource interface {
	// Run sends events to out until the input ends (returning nil) or ctx is
	// cancelled. Run never closes out.
	Run(ctx context.Context, out chan<- event.Event) error
}

// Metrics records operational counters of the aggregation loop.
type Metrics interface {
	EventProcessed(tag event.Tag)
	RecordFinalized(valid bool)
	SamplesRecorded(n int)
	SampleDropped(rule string)
	// Flushed records a completed flush and publishes the snapshot.
	Flushed(reason string, summaries []stats.RuleSummary) error
}
