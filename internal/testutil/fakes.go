package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sophialabs/lsvstats/internal/domain/event"
	"github.com/sophialabs/lsvstats/internal/domain/stats"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

var _ ports.Logger = (*NoopLogger)(nil)

// NoopLogger discards all log output.
type NoopLogger struct{}

func (l *NoopLogger) Info(string, ...any)  {}
func (l *NoopLogger) Warn(string, ...any)  {}
func (l *NoopLogger) Error(string, ...any) {}
func (l *NoopLogger) Debug(string, ...any) {}

var _ ports.Logger = (*RecordingLogger)(nil)

// RecordingLogger keeps every message with its level, e.g. "WARN slot out of range".
type RecordingLogger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *RecordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, fmt.Sprintf("%s %s", level, msg))
}

func (l *RecordingLogger) Info(msg string, _ ...any)  { l.record("INFO", msg) }
func (l *RecordingLogger) Warn(msg string, _ ...any)  { l.record("WARN", msg) }
func (l *RecordingLogger) Error(msg string, _ ...any) { l.record("ERROR", msg) }
func (l *RecordingLogger) Debug(msg string, _ ...any) { l.record("DEBUG", msg) }

// Count returns how many recorded messages equal "LEVEL msg".
func (l *RecordingLogger) Count(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.Messages {
		if m == entry {
			n++
		}
	}
	return n
}

var _ ports.Clock = (*FixedClock)(nil)

// FixedClock returns a fixed time and never sleeps.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }
func (c *FixedClock) SleepContext(context.Context, time.Duration) error {
	return nil
}

var _ ports.Throttle = (*StubThrottle)(nil)

// StubThrottle returns a configurable Allow result.
type StubThrottle struct {
	AllowAll bool
}

func (s *StubThrottle) Allow(string) (bool, int) {
	return s.AllowAll, 0
}

var _ ports.EventSource = (*SliceSource)(nil)

// SliceSource emits a fixed list of events then reports end of input.
type SliceSource struct {
	Events []event.Event
	Err    error
}

func (s *SliceSource) Run(ctx context.Context, out chan<- event.Event) error {
	for _, ev := range s.Events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Err
}

var _ ports.Metrics = (*RecordingMetrics)(nil)

// RecordingMetrics counts metric calls and keeps every flush.
type RecordingMetrics struct {
	mu       sync.Mutex
	Events   int
	Valid    int
	Invalid  int
	Samples  int
	Dropped  map[string]int
	Flushes  []string
	Last     []stats.RuleSummary
	FlushErr error
}

func (m *RecordingMetrics) EventProcessed(event.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events++
}

func (m *RecordingMetrics) RecordFinalized(valid bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if valid {
		m.Valid++
	} else {
		m.Invalid++
	}
}

func (m *RecordingMetrics) SamplesRecorded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Samples += n
}

func (m *RecordingMetrics) SampleDropped(rule string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Dropped == nil {
		m.Dropped = make(map[string]int)
	}
	m.Dropped[rule]++
}

func (m *RecordingMetrics) Flushed(reason string, summaries []stats.RuleSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushes = append(m.Flushes, reason)
	m.Last = summaries
	return m.FlushErr
}

// FlushReasons returns a copy of the recorded flush reasons.
func (m *RecordingMetrics) FlushReasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Flushes...)
}

// MetricsSnapshot is a point-in-time copy of RecordingMetrics counters.
type MetricsSnapshot struct {
	Events  int
	Valid   int
	Invalid int
	Samples int
	Dropped map[string]int
}

// Snapshot returns a copy of the counters that is safe to read while the
// loop keeps recording.
func (m *RecordingMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := make(map[string]int, len(m.Dropped))
	for k, v := range m.Dropped {
		dropped[k] = v
	}
	return MetricsSnapshot{
		Events:  m.Events,
		Valid:   m.Valid,
		Invalid: m.Invalid,
		Samples: m.Samples,
		Dropped: dropped,
	}
}
