package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sophialabs/lsvstats/internal/domain/event"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/domain/stats"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

const namespace = "lsvstats"

var _ ports.Metrics = (*Textfile)(nil)

// Textfile collects loop counters in a private registry and, when a path is
// set, writes them in the Prometheus text format after every flush.
type Textfile struct {
	path     string
	registry *prometheus.Registry

	events    *prometheus.CounterVec
	records   *prometheus.CounterVec
	samples   prometheus.Counter
	dropped   *prometheus.CounterVec
	flushes   *prometheus.CounterVec
	count     *prometheus.GaugeVec
	average   *prometheus.GaugeVec
	tail      *prometheus.GaugeVec
	lastFlush prometheus.Gauge
}

// NewTextfile creates the collectors. An empty path keeps the metrics in
// memory only.
func NewTextfile(path string) (*Textfile, error) {
	t := &Textfile{
		path:     path,
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Log events processed, by tag",
		}, []string{"tag"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Finalized request records, by validity",
		}, []string{"valid"}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples stored across all buckets",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Samples lost because a bucket was at its ceiling",
		}, []string{"rule"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Snapshots emitted, by reason",
		}, []string{"reason"}),
		count: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bucket",
			Name:      "count",
			Help:      "Sample count of the last snapshot",
		}, []string{"rule", "outcome"}),
		average: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bucket",
			Name:      "average_ttfb_milliseconds",
			Help:      "Mean time to first byte of the last snapshot",
		}, []string{"rule", "outcome"}),
		tail: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bucket",
			Name:      "tail_ttfb_milliseconds",
			Help:      "Mean time to first byte of the slowest decile of the last snapshot",
		}, []string{"rule", "outcome"}),
		lastFlush: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_flush_rules",
			Help:      "Number of rules in the last snapshot",
		}),
	}

	collectors := []prometheus.Collector{
		t.events, t.records, t.samples, t.dropped, t.flushes,
		t.count, t.average, t.tail, t.lastFlush,
	}
	for _, c := range collectors {
		if err := t.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return t, nil
}

func (t *Textfile) EventProcessed(tag event.Tag) {
	t.events.WithLabelValues(tag.String()).Inc()
}

func (t *Textfile) RecordFinalized(valid bool) {
	if valid {
		t.records.WithLabelValues("true").Inc()
		return
	}
	t.records.WithLabelValues("false").Inc()
}

func (t *Textfile) SamplesRecorded(n int) {
	t.samples.Add(float64(n))
}

func (t *Textfile) SampleDropped(rule string) {
	t.dropped.WithLabelValues(rule).Inc()
}

// Flushed replaces the per-bucket gauges with the snapshot and writes the
// textfile.
func (t *Textfile) Flushed(reason string, summaries []stats.RuleSummary) error {
	t.flushes.WithLabelValues(reason).Inc()

	// Rules may have been swapped; stale label sets must not survive.
	t.count.Reset()
	t.average.Reset()
	t.tail.Reset()
	for _, rs := range summaries {
		for _, o := range sample.Outcomes {
			s := rs.Outcome(o)
			t.count.WithLabelValues(rs.Name, o.String()).Set(float64(s.Count))
			t.average.WithLabelValues(rs.Name, o.String()).Set(float64(s.AvgTTFB))
			t.tail.WithLabelValues(rs.Name, o.String()).Set(float64(s.Tail10))
		}
	}
	t.lastFlush.Set(float64(len(summaries)))

	if t.path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(t.path, t.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
