package main

import (
	"context"
	"flag"
	"log"
	"os"

	"momentum-backtest/internal/config"

	"github.com/google/subcommands"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&simulateCmd{}, "backtest")
	subcommands.Register(&compareCmd{}, "backtest")
	subcommands.Register(&validateCmd{}, "backtest")
	subcommands.Register(&importCmd{}, "data")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}
