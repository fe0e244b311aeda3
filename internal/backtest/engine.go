package backtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"momentum-backtest/internal/indicator"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/risk"
	"momentum-backtest/internal/strategy"
	"momentum-backtest/internal/valuation"
)

// DefaultInitialCapital is the starting equity in USD.
const DefaultInitialCapital = 10000.0

// ErrWarmup is returned when the simulation would start before every
// indicator and rolling statistic is defined.
var ErrWarmup = errors.New("simulation start inside indicator warm-up")

// Config holds the run parameters shared by every strategy variant.
type Config struct {
	InitialCapital float64
	// Lookback is the number of finalized days the strategy scalar is calibrated on.
	Lookback      int
	DefaultScalar float64
	Risk          risk.Params
	// Debug logs every row as it is produced.
	Debug bool
}

// DefaultConfig returns the reference parameters with a 20% volatility target.
func DefaultConfig() Config {
	return Config{
		InitialCapital: DefaultInitialCapital,
		Lookback:       risk.DefaultLookback,
		DefaultScalar:  risk.DefaultScalar,
		Risk:           risk.Params{VolTarget: 0.2}.WithDefaults(),
	}
}

// Engine runs the daily simulation of one strategy.
type Engine struct {
	cfg        Config
	indicators *indicator.Engine
	forecaster strategy.Forecaster
}

// New returns an engine sizing positions from forecaster over the indicators of ind.
func New(cfg Config, ind *indicator.Engine, forecaster strategy.Forecaster) *Engine {
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	if cfg.Lookback <= 1 {
		cfg.Lookback = risk.DefaultLookback
	}
	if cfg.DefaultScalar <= 0 {
		cfg.DefaultScalar = risk.DefaultScalar
	}
	cfg.Risk = cfg.Risk.WithDefaults()
	return &Engine{cfg: cfg, indicators: ind, forecaster: forecaster}
}

// Warmup returns the first history row the engine can simulate when the
// return volatility was prepared with the configured window.
func (e *Engine) Warmup() int {
	w := e.indicators.Warmup()
	if e.cfg.Risk.VolWindow > w {
		w = e.cfg.Risk.VolWindow
	}
	return w
}

// WarmupFor returns the first row of h the engine can simulate universe on.
// It also waits for the volatility window each series was prepared with.
func (e *Engine) WarmupFor(h *model.History, universe []string) int {
	w := e.Warmup()
	for _, id := range universe {
		if s, err := h.Lookup(id); err == nil && s.VolWindow > w {
			w = s.VolWindow
		}
	}
	return w
}

// Run extends h with indicators for universe and simulates every date from
// start to the end of the history. h is not modified.
func (e *Engine) Run(ctx context.Context, h *model.History, universe []string, start time.Time) (*Result, error) {
	if h == nil {
		return nil, fmt.Errorf("history is nil")
	}
	if e.forecaster == nil {
		return nil, fmt.Errorf("forecaster is nil")
	}
	if e.indicators == nil {
		return nil, fmt.Errorf("indicator engine is nil")
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("no instruments")
	}
	if e.cfg.Risk.VolTarget <= 0 {
		return nil, fmt.Errorf("vol target must be > 0, got %v", e.cfg.Risk.VolTarget)
	}

	val, err := valuation.NewValuer(h, universe)
	if err != nil {
		return nil, err
	}
	ext, err := e.indicators.Extend(ctx, h, universe)
	if err != nil {
		return nil, fmt.Errorf("indicators: %w", err)
	}

	first := ext.DateIndex(start)
	if first >= ext.Len() {
		return nil, fmt.Errorf("no dates on or after %s", start.Format(model.DateFormat))
	}
	if w := e.WarmupFor(ext, universe); first < w {
		return nil, fmt.Errorf("%w: %s is row %d, the first usable row is %d (%s)",
			ErrWarmup, ext.Dates[first].Format(model.DateFormat), first, w, usableDate(ext, w))
	}

	series := make([]*model.Series, len(universe))
	for k, id := range universe {
		if series[k], err = ext.Lookup(id); err != nil {
			return nil, err
		}
	}

	scalars := risk.NewScalarWindow(e.cfg.Lookback, e.cfg.DefaultScalar, e.cfg.Risk.VolTarget)
	rows := make([]PortfolioRow, 0, ext.Len()-first)

	for t := first; t < ext.Len(); t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i := len(rows)
		row := PortfolioRow{
			Index:   i,
			Date:    ext.Dates[t],
			Units:   make([]float64, len(universe)),
			Weights: make([]float64, len(universe)),
		}
		if i == 0 {
			row.Capital = e.cfg.InitialCapital
		} else {
			e.dayStats(&row, &rows[i-1], series, val, t)
		}
		row.StratScalar = scalars.Value()

		e.size(&row, series, val, t)
		if err := checkFinite(&row, universe); err != nil {
			return nil, err
		}
		if e.cfg.Debug {
			log.Printf("[Backtest] %s %s capital=%.2f pnl=%.2f scalar=%.4f nominal=%.2f leverage=%.3f",
				e.forecaster.Name(), row.Date.Format(model.DateFormat),
				row.Capital, row.DailyPnL, row.StratScalar, row.Nominal, row.Leverage)
		}

		// The first row has no return and does not calibrate the scalar.
		if i > 0 {
			scalars.Push(row.CapitalRet, row.StratScalar)
		}
		rows = append(rows, row)
	}

	last := rows[len(rows)-1]
	return &Result{
		Strategy:       e.forecaster.Name(),
		Instruments:    append([]string(nil), universe...),
		Rows:           rows,
		InitialCapital: e.cfg.InitialCapital,
		FinalCapital:   last.Capital,
		TotalPnL:       last.Capital - e.cfg.InitialCapital,
	}, nil
}

// dayStats marks the previous day's positions to row t: literal PnL into
// capital, plus the weighted-return estimate scaled by yesterday's leverage.
// Price changes are converted at the previous row's cross rate.
func (e *Engine) dayStats(row, prev *PortfolioRow, series []*model.Series, val *valuation.Valuer, t int) {
	pnl, nominalRet := 0.0, 0.0
	for k, s := range series {
		held := prev.Units[k]
		if held == 0 {
			continue
		}
		change := s.Close[t] - s.Close[t-1]
		pnl += held * val.UnitValChange(k, change, t-1)
		nominalRet += prev.Weights[k] * s.Ret[t]
	}
	row.DailyPnL = pnl
	row.Capital = prev.Capital + pnl
	row.NominalRet = nominalRet
	row.CapitalRet = nominalRet * prev.Leverage
}

// size computes the day's units and weights:
//
//	units = scalar * forecast * (capital*volTarget/sqrt(253)/nTradable) / dollarVol
//
// Halted instruments keep zero units and weight.
func (e *Engine) size(row *PortfolioRow, series []*model.Series, val *valuation.Valuer, t int) {
	p := e.cfg.Risk
	tradable := make([]bool, len(series))
	n := 0
	for k, s := range series {
		if !risk.Halted(s, t, p.HaltWindow) {
			tradable[k] = true
			n++
		}
	}
	target := risk.PositionVolTarget(n, row.Capital, p.VolTarget)

	notional := make([]float64, len(series))
	nominal := 0.0
	for k, s := range series {
		if !tradable[k] {
			continue
		}
		forecast := e.forecaster.Forecast(strategy.Context{Index: t, Date: row.Date, Series: s})
		if forecast == 0 {
			continue
		}
		dollarVol := val.UnitValChange(k, s.Close[t]*p.ReturnVol(s, t), t)
		units := risk.Position(row.StratScalar, forecast, target, dollarVol)
		row.Units[k] = units
		notional[k] = math.Abs(units * val.UnitDollarValue(k, t))
		nominal += notional[k]
	}
	if nominal > 0 {
		for k := range series {
			row.Weights[k] = notional[k] / nominal
		}
	}
	row.Nominal = nominal
	row.Leverage = nominal / row.Capital
}

// checkFinite rejects rows carrying NaN or Inf; such values would otherwise
// flow silently into every later row.
func checkFinite(row *PortfolioRow, universe []string) error {
	date := row.Date.Format(model.DateFormat)
	fields := []struct {
		name string
		v    float64
	}{
		{"capital", row.Capital},
		{"daily pnl", row.DailyPnL},
		{"nominal ret", row.NominalRet},
		{"capital ret", row.CapitalRet},
		{"strat scalar", row.StratScalar},
		{"nominal", row.Nominal},
		{"leverage", row.Leverage},
	}
	for _, f := range fields {
		if !finite(f.v) {
			return fmt.Errorf("%s: %s is %v", date, f.name, f.v)
		}
	}
	for k, id := range universe {
		if !finite(row.Units[k]) {
			return fmt.Errorf("%s: %s units is %v", date, id, row.Units[k])
		}
		if !finite(row.Weights[k]) {
			return fmt.Errorf("%s: %s w is %v", date, id, row.Weights[k])
		}
	}
	return nil
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

func usableDate(h *model.History, i int) string {
	if i >= h.Len() {
		return "none, history too short"
	}
	return h.Dates[i].Format(model.DateFormat)
}
