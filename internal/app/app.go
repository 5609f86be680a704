package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/lsvstats/internal/infrastructure/wiring"
)

// App is the thin lifecycle manager that delegates dependency construction to wiring.Container.
type App struct {
	cfg       Config
	container *wiring.Container
	input     io.Closer
}

// New validates cfg, creates the logger, opens the input and wires the
// infrastructure components via the container.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	logger := logging.NewText(os.Stderr, level).With("pid", os.Getpid())

	input, closer, err := openInput(cfg.InputPath)
	if err != nil {
		return nil, err
	}

	container, err := wiring.New(wiring.Params{
		RulesPath:   cfg.RulesPath,
		RulesFormat: cfg.RulesFormat,
		Input:       input,
		OutputPath:  cfg.OutputPath,
		Append:      cfg.Append,
		MetricsFile: cfg.MetricsFile,
		MaxSlots:    cfg.MaxSlots,
		Samples: sample.Config{
			InitialCapacity: cfg.InitialCapacity,
			MaxSamples:      cfg.MaxSamples,
		},
		PlatformHeader: cfg.MobileHeader,
		EventBuffer:    cfg.EventBuffer,
		ThrottleRate:   cfg.ThrottleRate,
		ThrottleBurst:  cfg.ThrottleBurst,
		ThrottleTTL:    cfg.ThrottleTTL,
		Logger:         logger,
	})
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("failed to wire infrastructure: %w", err)
	}

	return &App{
		cfg:       cfg,
		container: container,
		input:     closer,
	}, nil
}

// Run executes the full application lifecycle: load rules, start the
// watcher, timers and signal handlers, and drive the event loop until end
// of input, SIGINT/SIGTERM or context cancellation. The event loop writes
// a final snapshot before Run returns.
func (a *App) Run(ctx context.Context) error {
	defer a.container.Close()
	if a.input != nil {
		defer a.input.Close()
	}

	logger := a.container.Logger()

	if a.cfg.PIDFile != "" {
		if err := writePIDFile(a.cfg.PIDFile); err != nil {
			return err
		}
		defer func() {
			if err := os.Remove(a.cfg.PIDFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("failed to remove pid file", "path", a.cfg.PIDFile, "error", err)
			}
		}()
	}

	rules, err := a.container.LoadRulesUseCase().Execute(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	loop, err := a.container.EventLoop(rules)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// A second SIGINT/SIGTERM during the final flush terminates the process.
	context.AfterFunc(ctx, stop)

	watcher := a.setupWatcher(ctx)
	if watcher != nil {
		defer watcher.Stop()
	}

	helpers, cancelHelpers := context.WithCancel(ctx)
	defer cancelHelpers()
	g, gctx := errgroup.WithContext(helpers)
	g.Go(func() error {
		a.handleSignals(gctx)
		return nil
	})
	g.Go(func() error {
		return a.flushPeriodically(gctx)
	})

	logger.Info("starting lsvstats",
		"rules", a.container.RulesPath(),
		"input", a.cfg.InputPath,
		"flush_interval", a.cfg.FlushInterval,
	)
	runErr := loop.Execute(ctx)

	cancelHelpers()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("background task failed", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("event loop: %w", runErr)
	}
	logger.Info("lsvstats stopped")
	return nil
}

// handleSignals turns SIGUSR1 into a flush and SIGHUP into a rules reload.
func (a *App) handleSignals(ctx context.Context) {
	logger := a.container.Logger()
	ctrl := a.container.Controller()
	loadUC := a.container.LoadRulesUseCase()

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGHUP)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				logger.Debug("flush requested by signal")
				ctrl.RequestFlush(control.ReasonSignal)
			case syscall.SIGHUP:
				logger.Info("reload requested by signal")
				_ = loadUC.Reload(ctx, ctrl)
			}
		}
	}
}

func (a *App) flushPeriodically(ctx context.Context) error {
	ctrl := a.container.Controller()
	return clock.Every(ctx, a.container.Clock(), a.cfg.FlushInterval, func(time.Time) {
		ctrl.RequestFlush(control.ReasonInterval)
	})
}

func (a *App) setupWatcher(ctx context.Context) *filesystem.Watcher {
	if !a.cfg.Watch {
		return nil
	}
	logger := a.container.Logger()
	ctrl := a.container.Controller()
	loadUC := a.container.LoadRulesUseCase()
	path := a.container.RulesPath()

	watcher, err := filesystem.NewWatcher(path, a.cfg.WatchDebounce, logger, func() {
		if err := loadUC.Reload(ctx, ctrl); err != nil {
			return
		}
		logger.Info("rules reloaded, swap pending", "path", path)
	})
	if err != nil {
		logger.Warn("file watcher not available", "error", err)
		return nil
	}

	watcher.Start()
	logger.Info("file watcher started", "path", path)
	return watcher
}

func openInput(path string) (io.Reader, io.Closer, error) {
	if path == "-" {
		return os.Stdin, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, f, nil
}

func writePIDFile(path string) error {
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}
