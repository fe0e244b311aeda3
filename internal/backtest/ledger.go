package backtest

import (
	"time"
)

// PortfolioRow is one simulated day.
// Units and Weights are indexed like Result.Instruments.
type PortfolioRow struct {
	Index int
	Date  time.Time

	// Capital is the account equity in USD after the day's PnL.
	Capital  float64
	DailyPnL float64

	// NominalRet is the weight-and-return estimate of the day's return;
	// CapitalRet scales it by the previous day's leverage.
	NominalRet float64
	CapitalRet float64

	StratScalar float64

	// Nominal is the gross USD notional of the day's positions.
	Nominal  float64
	Leverage float64

	Units   []float64
	Weights []float64
}

// Result is the output of one simulation run.
type Result struct {
	Strategy    string
	Instruments []string
	Rows        []PortfolioRow

	InitialCapital float64
	FinalCapital   float64
	TotalPnL       float64
}
