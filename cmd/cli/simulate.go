package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/runner"
	"momentum-backtest/internal/store"

	"github.com/google/subcommands"
	"github.com/google/uuid"
)

type simulateCmd struct {
	config   string
	strategy string
	out      string
	debug    bool
	persist  bool
}

func (*simulateCmd) Name() string     { return "simulate" }
func (*simulateCmd) Synopsis() string { return "runs strategies and writes one portfolio CSV each" }
func (*simulateCmd) Usage() string {
	return `simulate -config examples/config.yaml [-strategy lbmom] [-out results] [-debug] [-persist]

Runs the configured strategies (all of them unless -strategy is given) and
writes <out>/<strategy>.csv with one row per simulated day.
`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "examples/config.yaml", "Path to the portfolio YAML config")
	f.StringVar(&c.strategy, "strategy", "", "Run only this strategy")
	f.StringVar(&c.out, "out", "results", "Output directory")
	f.BoolVar(&c.debug, "debug", false, "Log every simulated row")
	f.BoolVar(&c.persist, "persist", false, "Store the runs in the database named by data.dsn (default DATABASE_URL)")
}

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.debug {
		cfg.Debug = true
	}
	h, err := runner.LoadHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading history: %v\n", err)
		return subcommands.ExitFailure
	}

	r := runner.New(cfg)
	var results []*backtest.Result
	if c.strategy != "" {
		res, err := r.Run(ctx, h, c.strategy)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		results = append(results, res)
	} else {
		if results, err = r.RunAll(ctx, h); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	if err := os.MkdirAll(c.out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	var st *store.Store
	if c.persist {
		if st, err = store.Open(cfg.Data.DSN); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	for _, res := range results {
		path := filepath.Join(c.out, res.Strategy+".csv")
		if err := backtest.WritePortfolioCSV(path, res); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			return subcommands.ExitFailure
		}
		s := analysis.Summarize(res)
		fmt.Printf("Wrote %d rows to %s\n", len(res.Rows), path)
		fmt.Printf("  %s: final capital %s, pnl %s, sharpe %.2f, max drawdown %.1f%%\n",
			res.Strategy, analysis.Money(s.FinalCapital), analysis.Money(s.TotalPnL), s.Sharpe, 100*s.MaxDrawdown)
		if st != nil {
			id := uuid.NewString()
			if err := st.SaveRun(ctx, id, res); err != nil {
				fmt.Fprintf(os.Stderr, "Error saving run: %v\n", err)
				return subcommands.ExitFailure
			}
			fmt.Printf("  stored as run %s\n", id)
		}
	}
	return subcommands.ExitSuccess
}
