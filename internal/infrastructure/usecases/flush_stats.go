package usecases

import (
	"io"

	"github.com/sophialabs/lsvstats/internal/domain/aggregate"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

// FlushStatsUseCase writes a snapshot of every bucket to the report sink and
// publishes it to the metrics port.
type FlushStatsUseCase struct {
	out     io.Writer
	metrics ports.Metrics
	clock   ports.Clock
	logger  ports.Logger
}

// NewFlushStatsUseCase creates a new use case.
func NewFlushStatsUseCase(out io.Writer, metrics ports.Metrics, clock ports.Clock, logger ports.Logger) *FlushStatsUseCase {
	return &FlushStatsUseCase{
		out:     out,
		metrics: metrics,
		clock:   clock,
		logger:  logger,
	}
}

// Execute flushes the engine. Buckets are reset even when writing fails; the
// error is logged and returned so callers may decide whether to go on.
func (uc *FlushStatsUseCase) Execute(engine *aggregate.Engine, reason string) error {
	start := uc.clock.Now()

	summaries, err := engine.Flush(uc.out)
	if err != nil {
		uc.logger.Error("failed to write snapshot", "reason", reason, "error", err)
		return err
	}

	if err := uc.metrics.Flushed(reason, summaries); err != nil {
		uc.logger.Warn("failed to publish metrics", "error", err)
	}

	samples := 0
	for _, s := range summaries {
		samples += s.Miss.Count + s.Hit.Count
	}
	uc.logger.Info("snapshot written",
		"reason", reason,
		"rules", len(summaries),
		"samples", samples,
		"duration", uc.clock.Now().Sub(start),
	)
	return nil
}
