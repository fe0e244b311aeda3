package main

import (
	"context"
	"fmt"
	"log"

	"momentum-backtest/internal/api"
	"momentum-backtest/internal/api/handlers"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/runner"
	"momentum-backtest/internal/store"

	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	env := config.FromEnv()

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config %s: %v", env.ConfigPath, err)
	}
	log.Printf("Loaded config %s: %d strategies, %d instruments", env.ConfigPath, len(cfg.Strategies), len(cfg.Instruments()))

	ctx := context.Background()
	history, err := runner.LoadHistory(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load history: %v", err)
	}
	if err := runner.New(cfg).Validate(history); err != nil {
		log.Fatalf("History does not fit config: %v", err)
	}
	log.Printf("Loaded history: %d dates, %d instruments", history.Len(), len(history.Series))

	var runs handlers.RunStore
	if env.DatabaseURL != "" {
		st, err := store.Open(env.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		runs = st
		log.Printf("Persisting runs to database")
	}

	cache := backtest.NewResultCache(env.CacheTTL)
	defer cache.Close()

	if env.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Config:    cfg,
		History:   history,
		Cache:     cache,
		Store:     runs,
		PresetDir: env.StrategyDir,
	})

	addr := fmt.Sprintf(":%s", env.Port)
	log.Printf("Starting API server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
