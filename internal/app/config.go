package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/sophialabs/lsvstats/internal/domain/record"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/infrastructure/usecases"
)

// ErrInvalidConfig is wrapped by every error returned from Config.Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configurable parameters for the application.
type Config struct {
	RulesPath   string
	RulesFormat string // "" = by extension, "conf", "yaml"
	InputPath   string // "-" = stdin
	OutputPath  string // "" or "-" = stdout
	Append      bool
	PIDFile     string
	LogLevel    string

	MaxSlots        int
	InitialCapacity int
	MaxSamples      int
	MobileHeader    string

	FlushInterval time.Duration
	MetricsFile   string

	Watch         bool
	WatchDebounce time.Duration

	ThrottleRate  float64
	ThrottleBurst int
	ThrottleTTL   time.Duration

	EventBuffer int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		RulesPath: "/etc/lsvstats/rules.conf",
		InputPath: "-",
		LogLevel:  "info",

		MaxSlots:        record.DefaultMaxSlots,
		InitialCapacity: sample.DefaultInitialCapacity,
		MaxSamples:      sample.DefaultMaxSamples,
		MobileHeader:    "X-Platform",

		WatchDebounce: 500 * time.Millisecond,

		ThrottleRate:  1,
		ThrottleBurst: 5,
		ThrottleTTL:   10 * time.Minute,

		EventBuffer: usecases.DefaultEventBuffer,
	}
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.RulesPath == "":
		return fmt.Errorf("%w: rules file is required", ErrInvalidConfig)
	case c.InputPath == "":
		return fmt.Errorf("%w: input is required", ErrInvalidConfig)
	case c.MaxSlots <= 0:
		return fmt.Errorf("%w: max slots must be positive, got %d", ErrInvalidConfig, c.MaxSlots)
	case c.InitialCapacity <= 0:
		return fmt.Errorf("%w: initial capacity must be positive, got %d", ErrInvalidConfig, c.InitialCapacity)
	case c.MaxSamples < c.InitialCapacity:
		return fmt.Errorf("%w: max samples %d is below initial capacity %d", ErrInvalidConfig, c.MaxSamples, c.InitialCapacity)
	case c.FlushInterval < 0:
		return fmt.Errorf("%w: negative flush interval %s", ErrInvalidConfig, c.FlushInterval)
	case c.Watch && c.WatchDebounce <= 0:
		return fmt.Errorf("%w: watch debounce must be positive", ErrInvalidConfig)
	case c.EventBuffer < 0:
		return fmt.Errorf("%w: negative event buffer", ErrInvalidConfig)
	}
	return nil
}
