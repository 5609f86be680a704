package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

var _ ports.Throttle = (*KeyedLimiter)(nil)

type limiterEntry struct {
	limiter    *rate.Limiter
	suppressed int
	lastUsed   time.Time
}

// Params configures a KeyedLimiter.
type Params struct {
	// Rate is the number of allowed diagnostics per second for one key.
	Rate float64
	// Burst is the number allowed back to back before throttling starts.
	Burst int
	// TTL is how long an idle key is remembered.
	TTL   time.Duration
	Clock ports.Clock
}

// KeyedLimiter throttles diagnostics per key using a token bucket each.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	clock    ports.Clock
	stop     chan struct{}
	stopOnce sync.Once
}

// NewKeyedLimiter creates a limiter and starts a background goroutine that
// evicts idle keys every TTL interval. Call Stop to terminate it.
func NewKeyedLimiter(p Params) *KeyedLimiter {
	if p.TTL <= 0 {
		p.TTL = 10 * time.Minute
	}
	if p.Rate <= 0 {
		p.Rate = 1
	}
	if p.Burst <= 0 {
		p.Burst = 1
	}
	l := &KeyedLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(p.Rate),
		burst:    p.Burst,
		ttl:      p.TTL,
		clock:    p.Clock,
		stop:     make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

// Stop terminates the background eviction goroutine. It is idempotent.
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *KeyedLimiter) evictLoop() {
	ticker := time.NewTicker(l.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Evict()
		case <-l.stop:
			return
		}
	}
}

func (l *KeyedLimiter) now() time.Time {
	if l.clock != nil {
		return l.clock.Now()
	}
	return time.Now()
}

// Allow reports whether a diagnostic for key may be emitted, together with
// the number of calls suppressed since the previous allowed one.
func (l *KeyedLimiter) Allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastUsed = now

	if !entry.limiter.AllowN(now, 1) {
		entry.suppressed++
		return false, 0
	}
	suppressed := entry.suppressed
	entry.suppressed = 0
	return true, suppressed
}

// Evict forgets keys idle for longer than the TTL.
func (l *KeyedLimiter) Evict() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.ttl)
	for key, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
