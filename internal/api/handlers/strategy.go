package handlers

import (
	"net/http"

	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/strategy"

	"github.com/gin-gonic/gin"
)

// StrategyHandler handles strategy-related requests
type StrategyHandler struct {
	cfg *config.Config
}

// NewStrategyHandler creates a new strategy handler
func NewStrategyHandler(cfg *config.Config) *StrategyHandler {
	return &StrategyHandler{cfg: cfg}
}

// ListStrategies handles GET /api/v1/strategies
func (h *StrategyHandler) ListStrategies(c *gin.Context) {
	strategies := make([]models.StrategyInfo, 0, len(h.cfg.Strategies))
	for _, s := range h.cfg.Strategies {
		canonical := strategy.Canonical(s.Signal)
		strategies = append(strategies, models.StrategyInfo{
			Name:        s.Name,
			Signal:      canonical,
			Description: signalDescriptions[canonical],
			Instruments: s.Universe(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

// ListSignals handles GET /api/v1/signals
func (h *StrategyHandler) ListSignals(c *gin.Context) {
	threshold := models.ParameterInfo{
		Name:        "adx_threshold",
		Type:        "float",
		Description: "ADX level below which the forecast is forced to 0",
		Default:     strategy.DefaultADXThreshold,
	}
	signals := []models.SignalInfo{
		{
			Name:        strategy.LongOnlyName,
			Aliases:     []string{"lbmom"},
			Description: signalDescriptions[strategy.LongOnlyName],
			Parameters:  []models.ParameterInfo{threshold},
		},
		{
			Name:        strategy.LongShortName,
			Aliases:     []string{"lsmom"},
			Description: signalDescriptions[strategy.LongShortName],
			Parameters:  []models.ParameterInfo{threshold},
		},
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals})
}

var signalDescriptions = map[string]string{
	strategy.LongOnlyName:  "Long-only EMA crossover vote: bullish pairs over all pairs, in [0, 1].",
	strategy.LongShortName: "Long/short EMA crossover vote: bullish minus bearish pairs over all pairs, in [-1, 1].",
}
