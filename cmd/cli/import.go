package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"momentum-backtest/internal/data"
	"momentum-backtest/internal/store"

	"github.com/google/subcommands"
)

type importCmd struct {
	csv string
	dsn string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "loads a wide OHLCV CSV into the bar store" }
func (*importCmd) Usage() string {
	return `import -csv data/ohlcv.csv [-dsn postgres://...]

Upserts the open/high/low/close/volume columns of every instrument of the
table into Postgres (DATABASE_URL unless -dsn is given).
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.csv, "csv", "", "Path to the wide OHLCV CSV")
	f.StringVar(&c.dsn, "dsn", "", "Postgres DSN (default DATABASE_URL)")
}

func (c *importCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.csv == "" {
		fmt.Fprintln(os.Stderr, "Error: -csv is required.")
		return subcommands.ExitUsageError
	}
	dsn := c.dsn
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	h, err := data.LoadCSV(c.csv, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", c.csv, err)
		return subcommands.ExitFailure
	}
	st, err := store.Open(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		return subcommands.ExitFailure
	}
	n, err := st.SaveBars(ctx, h)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Imported %d bars for %d instruments\n", n, len(h.Series))
	return subcommands.ExitSuccess
}
