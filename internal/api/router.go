// Package api wires the HTTP routes of the backtest server.
package api

import (
	"net/http"

	"momentum-backtest/internal/api/handlers"
	"momentum-backtest/internal/api/middleware"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/runner"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the routes serve.
type Deps struct {
	Config    *config.Config
	History   *model.History
	Cache     *backtest.ResultCache
	Store     handlers.RunStore // optional
	PresetDir string
}

// NewRouter returns the gin engine with every route and middleware installed.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())

	backtestHandler := handlers.NewBacktestHandler(runner.New(d.Config), d.History, d.Cache, d.Store)
	strategyHandler := handlers.NewStrategyHandler(d.Config)
	presetHandler := handlers.NewPresetHandler(d.PresetDir)
	instrumentHandler := handlers.NewInstrumentHandler(d.History)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"instruments": len(d.History.Series),
			"dates":       d.History.Len(),
			"cached_runs": d.Cache.Len(),
		})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/backtest", backtestHandler.RunBacktest)
		api.POST("/backtest/compare", backtestHandler.CompareBacktests)
		api.GET("/backtest/:id/rows", backtestHandler.GetRows)
		api.GET("/backtest/:id/csv", backtestHandler.GetCSV)
		api.GET("/backtest/:id/stream", backtestHandler.StreamRows)

		api.GET("/strategies", strategyHandler.ListStrategies)
		api.GET("/signals", strategyHandler.ListSignals)
		api.GET("/presets", presetHandler.ListPresets)
		api.GET("/instruments", instrumentHandler.ListInstruments)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	})
	return router
}
