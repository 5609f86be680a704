package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sophialabs/lsvstats/internal/domain/aggregate"
	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/event"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

// DefaultEventBuffer is the capacity of the channel between source and loop.
const DefaultEventBuffer = 1024

// sourceGrace bounds how long Execute waits for the source after the loop
// has stopped.
const sourceGrace = 250 * time.Millisecond

// ProcessEventsParams holds the collaborators of ProcessEventsUseCase.
type ProcessEventsParams struct {
	Source     ports.EventSource
	Engine     *aggregate.Engine
	Controller *control.Controller
	Flush      *FlushStatsUseCase
	Metrics    ports.Metrics
	Throttle   ports.Throttle
	Logger     ports.Logger
	Buffer     int
}

// ProcessEventsUseCase runs the event loop: the source is read on its own
// goroutine while all engine state is touched by the loop goroutine only.
// Pending flush, reload and shutdown requests are applied at the checkpoint
// before each event.
type ProcessEventsUseCase struct {
	source   ports.EventSource
	engine   *aggregate.Engine
	ctrl     *control.Controller
	flush    *FlushStatsUseCase
	metrics  ports.Metrics
	throttle ports.Throttle
	logger   ports.Logger
	buffer   int
}

// NewProcessEventsUseCase creates a new use case.
func NewProcessEventsUseCase(p ProcessEventsParams) *ProcessEventsUseCase {
	if p.Buffer <= 0 {
		p.Buffer = DefaultEventBuffer
	}
	return &ProcessEventsUseCase{
		source:   p.Source,
		engine:   p.Engine,
		ctrl:     p.Controller,
		flush:    p.Flush,
		metrics:  p.Metrics,
		throttle: p.Throttle,
		logger:   p.Logger,
		buffer:   p.Buffer,
	}
}

// Execute processes events until shutdown is requested, the input ends or
// ctx is cancelled. Each of these ends with a final flush. A source failure
// is returned after that flush.
//
// Execute does not wait for a source stuck in a read that cancellation
// cannot interrupt, such as a blocking pipe on stdin: after sourceGrace the
// reader goroutine is abandoned.
func (uc *ProcessEventsUseCase) Execute(ctx context.Context) error {
	srcCtx, stopSource := context.WithCancel(ctx)
	defer stopSource()

	events := make(chan event.Event, uc.buffer)
	srcErr := make(chan error, 1)
	go func() {
		defer close(events)
		srcErr <- uc.source.Run(srcCtx, events)
	}()

	uc.loop(ctx, events)
	stopSource()

	var err error
	select {
	case err = <-srcErr:
	case <-time.After(sourceGrace):
		uc.logger.Warn("input still blocked after shutdown, abandoning reader")
		return nil
	}
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("event source: %w", err)
}

func (uc *ProcessEventsUseCase) loop(ctx context.Context, events <-chan event.Event) {
	for {
		if uc.checkpoint() {
			return
		}

		select {
		case ev, ok := <-events:
			if !ok {
				uc.logger.Info("end of input")
				uc.ctrl.RequestShutdown()
				continue
			}
			uc.handle(ev)
		case <-uc.ctrl.Wake():
		case <-ctx.Done():
			uc.ctrl.RequestShutdown()
		}
	}
}

// checkpoint applies pending controller requests and reports whether the
// loop must stop.
func (uc *ProcessEventsUseCase) checkpoint() bool {
	d := uc.ctrl.Check()
	if d.Flush {
		// Write failures are logged by the flush; the stream goes on.
		_ = uc.flush.Execute(uc.engine, d.Reason)
	}
	if d.Reload != nil && !d.Shutdown {
		if err := uc.engine.Swap(d.Reload); err != nil {
			uc.logger.Error("failed to swap rules", "error", err)
		} else {
			uc.logger.Info("rules swapped", "rules", d.Reload.Len())
		}
	}
	if d.Shutdown {
		uc.engine.Close()
		uc.logger.Info("event loop stopped")
		return true
	}
	return false
}

func (uc *ProcessEventsUseCase) handle(ev event.Event) {
	uc.metrics.EventProcessed(ev.Tag)

	res := uc.engine.Handle(ev)
	switch {
	case res.Ignored:
		return
	case res.OutOfRange:
		uc.warn("slot out of range", "slot", ev.Slot, "tag", ev.Tag.String())
		return
	case !res.Finalized:
		return
	}

	uc.metrics.RecordFinalized(res.Valid)
	if res.Samples > 0 {
		uc.metrics.SamplesRecorded(res.Samples)
	}
	for _, g := range res.Growths {
		uc.logger.Debug("sample bucket grown", "rule", g.Rule, "outcome", g.Outcome.String(), "capacity", g.Capacity)
	}
	for _, o := range res.Overflows {
		if o.Status == sample.Dropped {
			uc.metrics.SampleDropped(o.Rule)
			uc.warn("sample dropped, bucket at ceiling", "rule", o.Rule, "outcome", o.Outcome.String())
			continue
		}
		uc.logger.Warn("bucket reached its ceiling, forcing a flush", "rule", o.Rule, "outcome", o.Outcome.String())
	}
}

func (uc *ProcessEventsUseCase) warn(msg string, args ...any) {
	ok, suppressed := uc.throttle.Allow(msg)
	if !ok {
		return
	}
	if suppressed > 0 {
		args = append(args, "suppressed", suppressed)
	}
	uc.logger.Warn(msg, args...)
}
