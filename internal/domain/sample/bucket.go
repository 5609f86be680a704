package sample

// Outcome selects the bucket of a rule. Misses and passes share OutcomeMiss.
type Outcome int

const (
	OutcomeMiss Outcome = iota
	OutcomeHit
)

// Outcomes lists the outcomes in report order.
var Outcomes = [...]Outcome{OutcomeMiss, OutcomeHit}

func (o Outcome) String() string {
	if o == OutcomeHit {
		return "hit"
	}
	return "miss"
}

// kahan is a Neumaier compensated sum.
type kahan struct {
	sum, c float64
}

func (k *kahan) add(v float64) {
	t := k.sum + v
	if abs(k.sum) >= abs(v) {
		k.c += (k.sum - t) + v
	} else {
		k.c += (v - t) + k.sum
	}
	k.sum = t
}

func (k *kahan) value() float64 { return k.sum + k.c }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// series is an append-only float64 array with explicit capacity management.
type series struct {
	values []float64
}

func (s *series) grow(capacity int) {
	next := make([]float64, len(s.values), capacity)
	copy(next, s.values)
	s.values = next
}

// Bucket holds the samples of one (rule, outcome) pair.
// len(ttfb.values) == len(ttlb.values) == count at all times.
type Bucket struct {
	ttfb, ttlb       series
	sumTTFB, sumTTLB kahan
	capacity         int
	dropped          uint64
}

// Count returns the number of stored samples.
func (b *Bucket) Count() int {
	return len(b.ttfb.values)
}

func (b *Bucket) reset() {
	b.ttfb.values = b.ttfb.values[:0]
	b.ttlb.values = b.ttlb.values[:0]
	b.sumTTFB = kahan{}
	b.sumTTLB = kahan{}
	b.dropped = 0
}

// View is a read-only snapshot of a bucket. The slices alias store memory and
// are valid until the next Record or ResetAll.
type View struct {
	Count    int
	SumTTFB  float64
	SumTTLB  float64
	TTFB     []float64
	TTLB     []float64
	Capacity int
	Dropped  uint64
}
