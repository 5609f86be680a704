package sample

import "fmt"

const (
	// DefaultInitialCapacity is the capacity a bucket starts with.
	DefaultInitialCapacity = 65536
	// DefaultMaxSamples is the ceiling a bucket never grows past.
	DefaultMaxSamples = 1 << 24
)

// Status reports what Record did with a sample.
type Status int

const (
	// Stored means the sample was appended.
	Stored Status = iota
	// Grown means the bucket was reallocated to fit the sample.
	Grown
	// Full means the sample was appended and the bucket reached its ceiling.
	Full
	// Dropped means the bucket was already at its ceiling; the sample was lost.
	Dropped
)

// Overflow reports whether a flush should be forced.
func (s Status) Overflow() bool {
	return s == Full || s == Dropped
}

// Config sizes the buckets of a Store.
type Config struct {
	InitialCapacity int
	MaxSamples      int
}

// DefaultConfig returns the bucket sizing used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		InitialCapacity: DefaultInitialCapacity,
		MaxSamples:      DefaultMaxSamples,
	}
}

// Store owns one bucket per (rule, outcome) pair.
type Store struct {
	buckets [len(Outcomes)][]Bucket
	cfg     Config
}

// New creates a store for ruleCount rules. Backing arrays are allocated on
// first use of a bucket.
func New(ruleCount int, cfg Config) (*Store, error) {
	if ruleCount < 0 {
		return nil, fmt.Errorf("negative rule count %d", ruleCount)
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = DefaultMaxSamples
	}
	if cfg.InitialCapacity <= 0 {
		cfg.InitialCapacity = DefaultInitialCapacity
	}
	if cfg.InitialCapacity > cfg.MaxSamples {
		cfg.InitialCapacity = cfg.MaxSamples
	}

	s := &Store{cfg: cfg}
	for _, o := range Outcomes {
		s.buckets[o] = make([]Bucket, ruleCount)
	}
	return s, nil
}

// Rules returns the number of rules the store was sized for.
func (s *Store) Rules() int {
	return len(s.buckets[OutcomeMiss])
}

// Record appends one sample to the bucket of (rule, outcome). The bucket
// doubles its capacity, up to the ceiling, when full.
func (s *Store) Record(rule int, outcome Outcome, ttfb, ttlb float64) Status {
	b := &s.buckets[outcome][rule]
	status := Stored

	if b.capacity == 0 {
		b.capacity = s.cfg.InitialCapacity
		b.ttfb.grow(b.capacity)
		b.ttlb.grow(b.capacity)
	}

	if b.Count() == b.capacity {
		if b.capacity >= s.cfg.MaxSamples {
			b.dropped++
			return Dropped
		}
		b.capacity = min(b.capacity*2, s.cfg.MaxSamples)
		b.ttfb.grow(b.capacity)
		b.ttlb.grow(b.capacity)
		status = Grown
	}

	b.ttfb.values = append(b.ttfb.values, ttfb)
	b.ttlb.values = append(b.ttlb.values, ttlb)
	b.sumTTFB.add(ttfb)
	b.sumTTLB.add(ttlb)

	if b.Count() >= s.cfg.MaxSamples {
		return Full
	}
	return status
}

// ResetAll zeroes every bucket. Allocated capacity is retained.
func (s *Store) ResetAll() {
	for _, o := range Outcomes {
		for i := range s.buckets[o] {
			s.buckets[o][i].reset()
		}
	}
}

// Snapshot returns a read-only view of the bucket of (rule, outcome).
func (s *Store) Snapshot(rule int, outcome Outcome) View {
	b := &s.buckets[outcome][rule]
	return View{
		Count:    b.Count(),
		SumTTFB:  b.sumTTFB.value(),
		SumTTLB:  b.sumTTLB.value(),
		TTFB:     b.ttfb.values,
		TTLB:     b.ttlb.values,
		Capacity: b.capacity,
		Dropped:  b.dropped,
	}
}

// Total returns the number of stored samples across all buckets.
func (s *Store) Total() int {
	n := 0
	for _, o := range Outcomes {
		for i := range s.buckets[o] {
			n += s.buckets[o][i].Count()
		}
	}
	return n
}
