package lsvstats_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sophialabs/lsvstats/internal/app"
	"github.com/sophialabs/lsvstats/internal/domain/aggregate"
	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/infrastructure/inbound/varnishlog"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/lsvstats/internal/infrastructure/outbound/ratelimit"
	"github.com/sophialabs/lsvstats/internal/infrastructure/services"
	"github.com/sophialabs/lsvstats/internal/infrastructure/usecases"
	"github.com/sophialabs/lsvstats/internal/testutil"
)

const wantSnapshot = `error_5xx count_miss:1 average_miss:250 10wa_miss:0 count_hit:0 average_hit:0 10wa_hit:0
error_404 count_miss:0 average_miss:0 10wa_miss:0 count_hit:0 average_hit:0 10wa_hit:0
all_api count_miss:2 average_miss:35 10wa_miss:0 count_hit:1 average_hit:2 10wa_hit:0
api_items count_miss:2 average_miss:35 10wa_miss:0 count_hit:1 average_hit:2 10wa_hit:0
static count_miss:0 average_miss:0 10wa_miss:0 count_hit:1 average_hit:1 10wa_hit:0
mobile_ios count_miss:0 average_miss:0 10wa_miss:0 count_hit:1 average_hit:1 10wa_hit:0
mobile_mobiles count_miss:0 average_miss:0 10wa_miss:0 count_hit:1 average_hit:1 10wa_hit:0
`

type pipeline struct {
	out     bytes.Buffer
	metrics *testutil.RecordingMetrics
	uc      *usecases.ProcessEventsUseCase
}

func setupPipeline(t *testing.T, rulesPath, logPath string) *pipeline {
	t.Helper()

	logger := &testutil.NoopLogger{}
	repo, err := filesystem.NewRuleRepository(rulesPath, "", logger)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	compiler := services.NewRuleCompiler(logger)
	loadUC := usecases.NewLoadRulesUseCase(repo, compiler, logger)

	rules, err := loadUC.Execute(context.Background())
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}

	ctrl := control.New()
	engine, err := aggregate.New(aggregate.Params{
		Rules:          rules,
		Controller:     ctrl,
		Samples:        sample.Config{InitialCapacity: 4, MaxSamples: 1024},
		MaxSlots:       64,
		PlatformHeader: "X-Platform",
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	f, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	clk := clock.New()
	throttle := ratelimit.NewKeyedLimiter(ratelimit.Params{Rate: 1, Burst: 1, TTL: time.Minute, Clock: clk})
	t.Cleanup(throttle.Stop)

	p := &pipeline{metrics: &testutil.RecordingMetrics{}}
	flushUC := usecases.NewFlushStatsUseCase(&p.out, p.metrics, clk, logger)
	p.uc = usecases.NewProcessEventsUseCase(usecases.ProcessEventsParams{
		Source:     varnishlog.NewSource(f, logger, throttle),
		Engine:     engine,
		Controller: ctrl,
		Flush:      flushUC,
		Metrics:    p.metrics,
		Throttle:   throttle,
		Logger:     logger,
	})
	return p
}

func TestE2E_SnapshotAtEndOfInput(t *testing.T) {
	for _, rules := range []string{"rules.conf", "rules.yaml"} {
		t.Run(rules, func(t *testing.T) {
			p := setupPipeline(t, filepath.Join("testdata", rules), filepath.Join("testdata", "varnish.log"))

			if err := p.uc.Execute(context.Background()); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}

			if got := p.out.String(); got != wantSnapshot {
				t.Errorf("snapshot mismatch\ngot:\n%s\nwant:\n%s", got, wantSnapshot)
			}

			snap := p.metrics.Snapshot()
			if snap.Valid != 5 || snap.Invalid != 1 {
				t.Errorf("valid/invalid = %d/%d, want 5/1", snap.Valid, snap.Invalid)
			}
			if snap.Samples != 10 {
				t.Errorf("samples = %d, want 10", snap.Samples)
			}
			if reasons := p.metrics.FlushReasons(); len(reasons) != 1 || reasons[0] != control.ReasonShutdown {
				t.Errorf("flush reasons = %v, want [shutdown]", reasons)
			}
		})
	}
}

func TestE2E_AppRun(t *testing.T) {
	dir := t.TempDir()

	cfg := app.DefaultConfig()
	cfg.RulesPath = filepath.Join("testdata", "rules.conf")
	cfg.InputPath = filepath.Join("testdata", "varnish.log")
	cfg.OutputPath = filepath.Join(dir, "stats.log")
	cfg.MetricsFile = filepath.Join(dir, "lsvstats.prom")
	cfg.PIDFile = filepath.Join(dir, "lsvstats.pid")
	cfg.LogLevel = "error"
	cfg.InitialCapacity = 4
	cfg.MaxSamples = 1024

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
	if string(out) != wantSnapshot {
		t.Errorf("snapshot mismatch\ngot:\n%s\nwant:\n%s", out, wantSnapshot)
	}

	prom, err := os.ReadFile(cfg.MetricsFile)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	for _, want := range []string{
		`lsvstats_records_total{valid="true"} 5`,
		`lsvstats_records_total{valid="false"} 1`,
		`lsvstats_bucket_count{outcome="miss",rule="all_api"} 2`,
		`lsvstats_flushes_total{reason="shutdown"} 1`,
	} {
		if !strings.Contains(string(prom), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestE2E_OnlyRequestHeadersSetPlatform(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.conf")
	if err := os.WriteFile(rules, []byte("mobile_ios : -\n"), 0o644); err != nil {
		t.Fatalf("failed to write rules: %v", err)
	}
	input := filepath.Join(dir, "varnish.log")
	log := `   21 RxRequest    c GET
   21 RxURL        c /
   21 VCL_call     c miss fetch
   21 TxStatus     c 200
   21 TxHeader     c X-Platform: ios
   21 ReqEnd       c 2001 1.0 2.0 0.000 0.030 0.031
   22 RxRequest    c GET
   22 RxURL        c /
   22 RxHeader     c X-Platform: ios
   22 VCL_call     c hit deliver
   22 TxStatus     c 200
   22 ReqEnd       c 2002 1.0 2.0 0.000 0.005 0.006
`
	if err := os.WriteFile(input, []byte(log), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	p := setupPipeline(t, rules, input)
	if err := p.uc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := "mobile_ios count_miss:0 average_miss:0 10wa_miss:0 count_hit:1 average_hit:5 10wa_hit:0\n"
	if got := p.out.String(); got != want {
		t.Errorf("snapshot = %q, want %q", got, want)
	}
}
