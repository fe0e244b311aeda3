package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"momentum-backtest/internal/config"
	"momentum-backtest/internal/runner"

	"github.com/google/subcommands"
)

type validateCmd struct {
	config string
}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "checks a config against its history without simulating" }
func (*validateCmd) Usage() string {
	return `validate -config examples/config.yaml

Loads the config and its history and reports every missing instrument,
missing QUOTE_USD conversion series and warm-up violation.
`
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "examples/config.yaml", "Path to the portfolio YAML config")
}

func (c *validateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config:\n%v\n", err)
		return subcommands.ExitFailure
	}
	h, err := runner.LoadHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading history: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := runner.New(cfg).Validate(h); err != nil {
		fmt.Fprintf(os.Stderr, "History does not fit config:\n%v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("OK: %d strategies, %d instruments, %d dates\n", len(cfg.Strategies), len(cfg.Instruments()), h.Len())
	return subcommands.ExitSuccess
}
