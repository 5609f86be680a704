package wiring

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sophialabs/lsvstats/internal/domain/aggregate"
	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/match"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/infrastructure/inbound/varnishlog"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/metrics"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/ratelimit"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/sink"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
	"github.com/sophialabs/lsvstats/internal/infrastructure/services"
	"github.com/sophialabs/lsvstats/internal/infrastructure/usecases"
)

// Params holds the subset of configuration needed to construct infrastructure components.
type Params struct {
	RulesPath   string
	RulesFormat string // "" = by extension, "conf", "yaml"
	Input       io.Reader
	OutputPath  string // "" or "-" = stdout
	Append      bool
	MetricsFile string

	MaxSlots       int
	Samples        sample.Config
	PlatformHeader string
	EventBuffer    int

	ThrottleRate  float64
	ThrottleBurst int
	ThrottleTTL   time.Duration

	Logger ports.Logger
}

// Container owns the construction and lifecycle of all infrastructure components.
type Container struct {
	params     Params
	logger     ports.Logger
	clock      *clock.RealClock
	controller *control.Controller
	repo       *filesystem.RuleRepository
	loadUC     *usecases.LoadRulesUseCase
	flushUC    *usecases.FlushStatsUseCase
	metrics    *metrics.Textfile
	throttle   *ratelimit.KeyedLimiter
	output     io.WriteCloser
	closeOnce  sync.Once
}

// New constructs all infrastructure components. Fallible operations (rules
// path, output, metrics) run before goroutine-starting operations (throttle)
// to avoid goroutine leaks on early failure.
func New(p Params) (*Container, error) {
	if _, err := os.Stat(p.RulesPath); err != nil {
		return nil, fmt.Errorf("failed to access rules file: %w", err)
	}
	if p.Input == nil {
		return nil, fmt.Errorf("no input reader")
	}

	repo, err := filesystem.NewRuleRepository(p.RulesPath, p.RulesFormat, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule repository: %w", err)
	}

	m, err := metrics.NewTextfile(p.MetricsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	output, err := sink.Open(p.OutputPath, p.Append)
	if err != nil {
		return nil, err
	}

	clk := clock.New()

	// Start background goroutine only after all fallible ops succeed.
	throttle := ratelimit.NewKeyedLimiter(ratelimit.Params{
		Rate:  p.ThrottleRate,
		Burst: p.ThrottleBurst,
		TTL:   p.ThrottleTTL,
		Clock: clk,
	})

	compiler := services.NewRuleCompiler(p.Logger)

	return &Container{
		params:     p,
		logger:     p.Logger,
		clock:      clk,
		controller: control.New(),
		repo:       repo,
		loadUC:     usecases.NewLoadRulesUseCase(repo, compiler, p.Logger),
		flushUC:    usecases.NewFlushStatsUseCase(output, m, clk, p.Logger),
		metrics:    m,
		throttle:   throttle,
		output:     output,
	}, nil
}

// EventLoop builds the aggregation engine for rules and the use case driving it.
func (c *Container) EventLoop(rules *match.RuleStore) (*usecases.ProcessEventsUseCase, error) {
	engine, err := aggregate.New(aggregate.Params{
		Rules:          rules,
		Controller:     c.controller,
		Samples:        c.params.Samples,
		MaxSlots:       c.params.MaxSlots,
		PlatformHeader: c.params.PlatformHeader,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregation engine: %w", err)
	}

	return usecases.NewProcessEventsUseCase(usecases.ProcessEventsParams{
		Source:     varnishlog.NewSource(c.params.Input, c.logger, c.throttle),
		Engine:     engine,
		Controller: c.controller,
		Flush:      c.flushUC,
		Metrics:    c.metrics,
		Throttle:   c.throttle,
		Logger:     c.logger,
		Buffer:     c.params.EventBuffer,
	}), nil
}

// Close releases resources held by the container. It is idempotent.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		c.throttle.Stop()
		if err := c.output.Close(); err != nil {
			c.logger.Warn("failed to close output", "error", err)
		}
	})
}

// Logger returns the logger passed at construction time.
func (c *Container) Logger() ports.Logger {
	return c.logger
}

// Clock returns the system clock.
func (c *Container) Clock() ports.Clock {
	return c.clock
}

// Controller returns the flush/reset controller shared by signals, timers,
// the watcher and the event loop.
func (c *Container) Controller() *control.Controller {
	return c.controller
}

// RulesPath returns the absolute path of the rules file.
func (c *Container) RulesPath() string {
	return c.repo.Path()
}

// LoadRulesUseCase returns the use case for loading and compiling rules.
func (c *Container) LoadRulesUseCase() *usecases.LoadRulesUseCase {
	return c.loadUC
}
