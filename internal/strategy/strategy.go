package strategy

import (
	"time"

	"momentum-backtest/internal/model"
)

// Context is what a Forecaster sees for one instrument on one day.
type Context struct {
	Index  int // row in the history
	Date   time.Time
	Series *model.Series
}

// Forecaster turns indicator values into a bounded position forecast in [-1, 1].
type Forecaster interface {
	Name() string
	Forecast(ctx Context) float64
}
