package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sophialabs/lsvstats/internal/app"
)

func TestDefaultConfig_HasSensibleValues(t *testing.T) {
	cfg := app.DefaultConfig()

	if cfg.RulesPath == "" {
		t.Error("RulesPath should not be empty")
	}
	if cfg.InputPath != "-" {
		t.Errorf("InputPath = %q, want stdin", cfg.InputPath)
	}
	if cfg.MaxSlots == 0 {
		t.Error("MaxSlots should not be zero")
	}
	if cfg.InitialCapacity == 0 || cfg.MaxSamples < cfg.InitialCapacity {
		t.Errorf("bad sample sizing: initial %d, max %d", cfg.InitialCapacity, cfg.MaxSamples)
	}
	if cfg.MobileHeader == "" {
		t.Error("MobileHeader should not be empty")
	}
	if cfg.WatchDebounce == 0 {
		t.Error("WatchDebounce should not be zero")
	}
	if cfg.ThrottleTTL == 0 {
		t.Error("ThrottleTTL should not be zero")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*app.Config)
	}{
		{"no rules", func(c *app.Config) { c.RulesPath = "" }},
		{"no input", func(c *app.Config) { c.InputPath = "" }},
		{"zero slots", func(c *app.Config) { c.MaxSlots = 0 }},
		{"zero capacity", func(c *app.Config) { c.InitialCapacity = 0 }},
		{"ceiling below capacity", func(c *app.Config) { c.InitialCapacity, c.MaxSamples = 16, 8 }},
		{"negative interval", func(c *app.Config) { c.FlushInterval = -time.Second }},
		{"watch without debounce", func(c *app.Config) { c.Watch, c.WatchDebounce = true, 0 }},
		{"negative buffer", func(c *app.Config) { c.EventBuffer = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := app.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, app.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
