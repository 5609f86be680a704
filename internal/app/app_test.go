package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sophialabs/lsvstats/internal/app"
)

const testLog = `   7 RxRequest    c GET
   7 RxURL        c /api/items
   7 VCL_call     c miss
   7 TxStatus     c 200
   7 ReqEnd       c 1 1.0 2.0 0.1 0.020 0.5
   9 RxRequest    c GET
   9 RxURL        c /static/app.js
   9 VCL_call     c hit
   9 TxStatus     c 200
   9 ReqEnd       c 2 1.0 2.0 0.1 0.004 0.5
`

func testConfig(t *testing.T) app.Config {
	t.Helper()
	dir := t.TempDir()

	rules := filepath.Join(dir, "rules.conf")
	if err := os.WriteFile(rules, []byte("api : ^/api/\nstatic : ^/static/\n"), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	input := filepath.Join(dir, "varnish.log")
	if err := os.WriteFile(input, []byte(testLog), 0o644); err != nil {
		t.Fatalf("failed to write input file: %v", err)
	}

	cfg := app.DefaultConfig()
	cfg.RulesPath = rules
	cfg.InputPath = input
	cfg.OutputPath = filepath.Join(dir, "stats.log")
	cfg.LogLevel = "error"
	cfg.MaxSlots = 64
	cfg.InitialCapacity = 8
	cfg.MaxSamples = 64
	return cfg
}

func TestNew_Success(t *testing.T) {
	a, err := app.New(testConfig(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a == nil {
		t.Fatal("expected non-nil App")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*app.Config)
	}{
		{"missing rules", func(c *app.Config) { c.RulesPath = "/nonexistent/rules.conf" }},
		{"missing input", func(c *app.Config) { c.InputPath = "/nonexistent/varnish.log" }},
		{"bad log level", func(c *app.Config) { c.LogLevel = "verbose" }},
		{"invalid config", func(c *app.Config) { c.MaxSlots = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			if _, err := app.New(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_BadLogLevelIsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogLevel = "verbose"
	if _, err := app.New(cfg); !errors.Is(err, app.ErrInvalidConfig) {
		t.Errorf("New() = %v, want ErrInvalidConfig", err)
	}
}

func TestRun_ProcessesInputAndFlushesAtEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.PIDFile = filepath.Join(t.TempDir(), "lsvstats.pid")
	cfg.MetricsFile = filepath.Join(t.TempDir(), "lsvstats.prom")

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	want := "api count_miss:1 average_miss:20 10wa_miss:0 count_hit:0 average_hit:0 10wa_hit:0\n" +
		"static count_miss:0 average_miss:0 10wa_miss:0 count_hit:1 average_hit:4 10wa_hit:0\n"
	if string(out) != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	if _, err := os.Stat(cfg.PIDFile); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("pid file should be removed after Run, stat err = %v", err)
	}
	prom, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(prom), "lsvstats_samples_total 2") {
		t.Errorf("metrics file missing sample count:\n%s", prom)
	}
}

func TestRun_AppendKeepsPreviousSnapshots(t *testing.T) {
	cfg := testConfig(t)
	cfg.Append = true
	if err := os.WriteFile(cfg.OutputPath, []byte("previous\n"), 0o644); err != nil {
		t.Fatalf("seeding output: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 || lines[0] != "previous" {
		t.Errorf("output lines = %q, want previous line plus 2 rule lines", lines)
	}
}

func TestRun_EmptyRulesFails(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.RulesPath, []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatalf("rewriting rules: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty rules")
	}
}

func TestRun_WithWatchAndInterval(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch = true
	cfg.FlushInterval = 1 << 40

	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}
