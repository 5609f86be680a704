package clock

import (
	"context"
	"time"

	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

var _ ports.Clock = (*RealClock)(nil)

// RealClock implements ports.Clock using the system clock.
type RealClock struct{}

// New creates a new RealClock.
func New() *RealClock {
	return &RealClock{}
}

func (c *RealClock) Now() time.Time { return time.Now() }

func (c *RealClock) SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Every calls fn after each interval d until ctx is cancelled, then returns
// ctx.Err(). A non-positive d blocks until cancellation without calling fn.
func Every(ctx context.Context, clk ports.Clock, d time.Duration, fn func(time.Time)) error {
	if d <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		if err := clk.SleepContext(ctx, d); err != nil {
			return err
		}
		fn(clk.Now())
	}
}
