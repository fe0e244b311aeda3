package risk

import (
	"math"

	"momentum-backtest/internal/model"
)

// TradingDays annualizes daily volatility.
const TradingDays = 253

// Defaults for Params.
const (
	DefaultVolWindow  = 25
	DefaultVolFloor   = 0.025
	DefaultHaltWindow = 5
)

// Params are the asset-level sizing parameters.
type Params struct {
	// VolTarget is the annualized volatility target of the whole strategy (0.2 = 20%).
	VolTarget float64
	// VolWindow is the number of rows an instrument must have been active on
	// for its rolling return volatility to be trusted.
	VolWindow int
	// VolFloor replaces the rolling volatility of instruments that were not.
	VolFloor float64
	// HaltWindow is the number of trailing inactive rows that halts an instrument.
	HaltWindow int
}

// WithDefaults fills zero fields with their defaults.
func (p Params) WithDefaults() Params {
	if p.VolWindow <= 0 {
		p.VolWindow = DefaultVolWindow
	}
	if p.VolFloor <= 0 {
		p.VolFloor = DefaultVolFloor
	}
	if p.HaltWindow <= 0 {
		p.HaltWindow = DefaultHaltWindow
	}
	return p
}

// PositionVolTarget is the daily dollar-volatility budget of one instrument
// when capital is split equally across nTradable instruments.
func PositionVolTarget(nTradable int, capital, volTarget float64) float64 {
	if nTradable <= 0 {
		return 0
	}
	return (1 / float64(nTradable)) * capital * volTarget / math.Sqrt(TradingDays)
}

// Position is the number of units that spends target dollar-volatility at the
// given forecast and strategy scalar. dollarVol must be > 0.
func Position(scalar, forecast, target, dollarVol float64) float64 {
	return scalar * forecast * target / dollarVol
}

// Halted reports whether s was inactive on each of the last window rows up to
// and including t. Fewer than window rows of history count as the rows available.
func Halted(s *model.Series, t, window int) bool {
	start := t - window + 1
	if start < 0 {
		start = 0
	}
	for i := start; i <= t; i++ {
		if s.Active[i] {
			return false
		}
	}
	return true
}

// ActiveThrough reports whether s was active on each of the last window rows up to t.
func ActiveThrough(s *model.Series, t, window int) bool {
	start := t - window + 1
	if start < 0 {
		start = 0
	}
	for i := start; i <= t; i++ {
		if !s.Active[i] {
			return false
		}
	}
	return true
}

// ReturnVol is the daily return volatility used for sizing s on row t: the
// rolling volatility when the instrument traded on every row of the window,
// the floor otherwise. A thinly traded instrument has a collapsed rolling
// volatility, and sizing by 1/vol would blow its position up.
func (p Params) ReturnVol(s *model.Series, t int) float64 {
	if ActiveThrough(s, t, p.VolWindow) {
		return s.RetVol[t]
	}
	return p.VolFloor
}
