package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sophialabs/lsvstats/internal/app"
)

func main() {
	cfg := app.DefaultConfig()
	flag.StringVar(&cfg.RulesPath, "f", cfg.RulesPath, "rules file (legacy conf or YAML)")
	flag.StringVar(&cfg.RulesFormat, "rules-format", cfg.RulesFormat, "rules file format (conf, yaml); empty detects by extension")
	flag.StringVar(&cfg.InputPath, "i", cfg.InputPath, "varnish log input file, - for stdin")
	flag.StringVar(&cfg.OutputPath, "o", cfg.OutputPath, "statistics output file, empty or - for stdout")
	flag.BoolVar(&cfg.Append, "a", cfg.Append, "append to the output file instead of truncating it")
	flag.StringVar(&cfg.PIDFile, "P", cfg.PIDFile, "write the process id to this file")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.IntVar(&cfg.MaxSlots, "max-slots", cfg.MaxSlots, "size of the connection slot id space")
	flag.IntVar(&cfg.InitialCapacity, "initial-capacity", cfg.InitialCapacity, "initial sample capacity per bucket")
	flag.IntVar(&cfg.MaxSamples, "max-samples", cfg.MaxSamples, "sample ceiling per bucket")
	flag.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "write a snapshot at this interval, 0 disables")
	flag.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write prometheus metrics to this textfile on each flush")
	flag.StringVar(&cfg.MobileHeader, "mobile-header", cfg.MobileHeader, "request header carrying the client platform")
	flag.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload rules when the rules file changes")
	flag.DurationVar(&cfg.WatchDebounce, "watch-debounce", cfg.WatchDebounce, "debounce interval for rule file changes")
	flag.Parse()

	a, err := app.New(cfg)
	if err != nil {
		_, err := fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		if err != nil {
			return
		}
		os.Exit(1)
	}

	if err := a.Run(context.Background()); err != nil {
		_, err := fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if err != nil {
			return
		}
		os.Exit(1)
	}
}
