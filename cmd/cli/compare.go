package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/runner"

	"github.com/google/subcommands"
)

type compareCmd struct {
	config string
}

func (*compareCmd) Name() string     { return "compare" }
func (*compareCmd) Synopsis() string { return "runs every strategy and ranks them by Sharpe ratio" }
func (*compareCmd) Usage() string {
	return `compare -config examples/config.yaml

Runs every configured strategy on the same history and prints them ranked by
Sharpe ratio.
`
}

func (c *compareCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "examples/config.yaml", "Path to the portfolio YAML config")
}

func (c *compareCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	h, err := runner.LoadHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading history: %v\n", err)
		return subcommands.ExitFailure
	}
	results, err := runner.New(cfg).RunAll(ctx, h)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	ranked := analysis.RankBySharpe(results)
	fmt.Printf("%-4s %-14s %-23s %-16s %-9s %-9s %-8s %-8s %-8s\n",
		"rank", "strategy", "window", "final", "return", "vol", "sharpe", "maxdd", "avg lev")
	for i, s := range ranked {
		fmt.Printf("%-4d %-14s %s..%s %-16s %-9s %-9s %-8.2f %-8s %-8.2f\n",
			i+1,
			s.Strategy,
			s.Start.Format(model.DateFormat),
			s.End.Format(model.DateFormat),
			analysis.Money(s.FinalCapital),
			pct(s.AnnualReturn),
			pct(s.AnnualVol),
			s.Sharpe,
			pct(s.MaxDrawdown),
			s.AvgLeverage,
		)
	}
	return subcommands.ExitSuccess
}

func pct(x float64) string { return fmt.Sprintf("%.1f%%", 100*x) }
