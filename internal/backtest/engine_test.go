package backtest

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"momentum-backtest/internal/data"
	"momentum-backtest/internal/indicator"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/risk"
	"momentum-backtest/internal/strategy"
	"momentum-backtest/internal/valuation"
)

const testRows = 80

// testPairs keep the warm-up at 27 rows (the ADX lookback).
var testPairs = indicator.PairSet{{Fast: 2, Slow: 5}, {Fast: 3, Slow: 8}}

func approx(a, b float64) bool { return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b)) }

// uptrend rises about 1% a day with a small zigzag, so its volatility is not zero.
func uptrend(i int) float64 {
	return 100 * math.Pow(1.01, float64(i)) * (1 + 0.002*math.Pow(-1, float64(i)))
}

func downtrend(i int) float64 {
	return 100 * math.Pow(0.99, float64(i)) * (1 + 0.002*math.Pow(-1, float64(i)))
}

func flat(int) float64 { return 50 }

// buildHistory prepares one series per entry of closes over n consecutive days.
func buildHistory(t *testing.T, n int, ids []string, closes ...func(int) float64) *model.History {
	t.Helper()
	return buildHistoryWindow(t, n, data.DefaultVolWindow, ids, closes...)
}

func buildHistoryWindow(t *testing.T, n, window int, ids []string, closes ...func(int) float64) *model.History {
	t.Helper()
	dates := make([]time.Time, n)
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	h, err := model.NewHistory(dates)
	if err != nil {
		t.Fatal(err)
	}
	for k, id := range ids {
		s := model.NewSeries(id, n)
		for i := 0; i < n; i++ {
			c := closes[k](i)
			s.Open[i], s.Close[i] = c, c
			s.High[i], s.Low[i] = c*1.005, c*0.995
			s.Volume[i] = 1000
		}
		data.Prepare(s, window)
		if err := h.Add(s); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

func testConfig() Config {
	return Config{Lookback: 5, Risk: risk.Params{VolTarget: 0.2}}
}

func newEngine(t *testing.T, signal string) *Engine {
	t.Helper()
	f, err := strategy.New(signal, 0)
	if err != nil {
		t.Fatal(err)
	}
	return New(testConfig(), indicator.NewEngine(testPairs), f)
}

func TestRunHaltedInstrument(t *testing.T) {
	h := buildHistory(t, testRows, []string{"A", "B"}, uptrend, flat)
	e := newEngine(t, strategy.LongOnlyName)
	if got := e.Warmup(); got != 27 {
		t.Fatalf("Warmup() = %d, want 27", got)
	}

	res, err := e.Run(context.Background(), h, []string{"A", "B"}, h.Dates[27])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := len(res.Rows), testRows-27; got != want {
		t.Fatalf("len(Rows) = %d, want %d", got, want)
	}

	first := res.Rows[0]
	if first.Capital != DefaultInitialCapital || first.DailyPnL != 0 {
		t.Errorf("first row capital = %v pnl = %v, want %v and 0", first.Capital, first.DailyPnL, DefaultInitialCapital)
	}

	// Only A is tradable, so it gets the whole budget.
	ind := indicator.NewEngine(testPairs)
	ext, err := ind.Extend(context.Background(), h, []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	sa, _ := ext.Lookup("A")
	f := (&strategy.LongOnly{ADXThreshold: strategy.DefaultADXThreshold}).Forecast(strategy.Context{Index: 27, Series: sa})
	if f <= 0 {
		t.Fatalf("forecast of A on row 27 = %v, want > 0", f)
	}
	wantUnits := risk.Position(risk.DefaultScalar, f, risk.PositionVolTarget(1, DefaultInitialCapital, 0.2), sa.Close[27]*sa.RetVol[27])
	if !approx(first.Units[0], wantUnits) {
		t.Errorf("first row A units = %v, want %v", first.Units[0], wantUnits)
	}

	for i, r := range res.Rows {
		if r.Units[1] != 0 || r.Weights[1] != 0 {
			t.Errorf("row %d: halted B has units %v w %v, want 0", i, r.Units[1], r.Weights[1])
		}
		if r.Units[0] <= 0 {
			t.Errorf("row %d: A units = %v, want > 0", i, r.Units[0])
		}
		if r.Weights[0] != 1 {
			t.Errorf("row %d: A w = %v, want 1", i, r.Weights[0])
		}
		if r.Leverage != r.Nominal/r.Capital {
			t.Errorf("row %d: leverage %v != nominal/capital %v", i, r.Leverage, r.Nominal/r.Capital)
		}
		if i > 0 && !(r.Capital > res.Rows[i-1].Capital) {
			t.Errorf("row %d: capital %v did not rise from %v", i, r.Capital, res.Rows[i-1].Capital)
		}
		if i > 0 && !approx(r.Capital, res.Rows[i-1].Capital+r.DailyPnL) {
			t.Errorf("row %d: capital %v != previous + pnl", i, r.Capital)
		}
	}

	last := res.Rows[len(res.Rows)-1]
	if res.FinalCapital != last.Capital || res.TotalPnL != last.Capital-DefaultInitialCapital {
		t.Errorf("FinalCapital = %v TotalPnL = %v, last capital %v", res.FinalCapital, res.TotalPnL, last.Capital)
	}
}

func TestRunHaltedTail(t *testing.T) {
	// B trends, then stops printing for the last 6 days.
	stopped := func(i int) float64 {
		if i >= testRows-6 {
			i = testRows - 7
		}
		return uptrend(i) / 2
	}
	h := buildHistory(t, testRows, []string{"A", "B"}, uptrend, stopped)
	res, err := newEngine(t, strategy.LongOnlyName).Run(context.Background(), h, []string{"A", "B"}, h.Dates[27])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	n := len(res.Rows)
	for _, r := range res.Rows[n-2:] {
		if r.Units[1] != 0 || r.Weights[1] != 0 {
			t.Errorf("%s: B units %v w %v, want 0", r.Date.Format(model.DateFormat), r.Units[1], r.Weights[1])
		}
		if r.Weights[0] != 1 {
			t.Errorf("%s: A w = %v, want 1", r.Date.Format(model.DateFormat), r.Weights[0])
		}
	}
	for _, r := range res.Rows[:n-8] {
		if r.Units[1] <= 0 {
			t.Errorf("%s: trending B units = %v, want > 0", r.Date.Format(model.DateFormat), r.Units[1])
		}
		if sum := r.Weights[0] + r.Weights[1]; !approx(sum, 1) {
			t.Errorf("%s: weights sum to %v, want 1", r.Date.Format(model.DateFormat), sum)
		}
	}
}

func TestRunScalarSwitch(t *testing.T) {
	h := buildHistory(t, testRows, []string{"A"}, uptrend)
	res, err := newEngine(t, strategy.LongOnlyName).Run(context.Background(), h, []string{"A"}, h.Dates[27])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Lookback 5: rows 1..5 are finalized before row 6 is sized.
	for i := 0; i <= 5; i++ {
		if got := res.Rows[i].StratScalar; got != risk.DefaultScalar {
			t.Errorf("row %d: scalar = %v, want default %v", i, got, risk.DefaultScalar)
		}
	}
	var rets []float64
	for _, r := range res.Rows[1:6] {
		rets = append(rets, r.CapitalRet)
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	ss := 0.0
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	vol := math.Sqrt(ss/float64(len(rets)-1)) * math.Sqrt(risk.TradingDays)
	want := risk.DefaultScalar * 0.2 / vol
	if got := res.Rows[6].StratScalar; !approx(got, want) {
		t.Errorf("row 6: scalar = %v, want %v", got, want)
	}
}

func TestRunLongShort(t *testing.T) {
	h := buildHistory(t, testRows, []string{"UP", "DOWN"}, uptrend, downtrend)
	res, err := newEngine(t, strategy.LongShortName).Run(context.Background(), h, []string{"UP", "DOWN"}, h.Dates[30])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, r := range res.Rows {
		if r.Units[0] <= 0 || r.Units[1] >= 0 {
			t.Errorf("row %d: units = %v, want long UP and short DOWN", i, r.Units)
		}
		if sum := r.Weights[0] + r.Weights[1]; !approx(sum, 1) {
			t.Errorf("row %d: weights sum to %v, want 1", i, sum)
		}
		if r.Weights[0] < 0 || r.Weights[1] < 0 {
			t.Errorf("row %d: negative weight %v", i, r.Weights)
		}
	}
}

func TestRunConvertsQuoteCurrency(t *testing.T) {
	usdjpy := func(i int) float64 { return 1.5 * uptrend(i) }
	jpyusd := func(i int) float64 { return 1 / usdjpy(i) }
	h := buildHistory(t, testRows, []string{"USD_JPY", "JPY_USD"}, usdjpy, jpyusd)
	res, err := newEngine(t, strategy.LongOnlyName).Run(context.Background(), h, []string{"USD_JPY"}, h.Dates[27])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i := 1; i < len(res.Rows); i++ {
		tt := 27 + i
		prev, r := res.Rows[i-1], res.Rows[i]
		want := prev.Units[0] * (usdjpy(tt) - usdjpy(tt-1)) * jpyusd(tt-1)
		if !approx(r.DailyPnL, want) {
			t.Errorf("row %d: pnl = %v, want %v", i, r.DailyPnL, want)
		}
		// One unit of USD_JPY is one dollar.
		if !approx(r.Nominal, math.Abs(r.Units[0])) {
			t.Errorf("row %d: nominal = %v, want |units| %v", i, r.Nominal, r.Units[0])
		}
	}
}

func TestRunErrors(t *testing.T) {
	h := buildHistory(t, testRows, []string{"A", "USD_JPY"}, uptrend, uptrend)
	e := newEngine(t, strategy.LongOnlyName)
	ctx := context.Background()

	if _, err := e.Run(ctx, h, []string{"A"}, h.Dates[10]); !errors.Is(err, ErrWarmup) {
		t.Errorf("Run() inside warm-up error = %v, want %v", err, ErrWarmup)
	}
	if _, err := e.Run(ctx, h, []string{"USD_JPY"}, h.Dates[30]); !errors.Is(err, valuation.ErrMissingCross) {
		t.Errorf("Run() without cross error = %v, want %v", err, valuation.ErrMissingCross)
	}
	if _, err := e.Run(ctx, h, []string{"MSFT"}, h.Dates[30]); !errors.Is(err, model.ErrUnknownInstrument) {
		t.Errorf("Run() unknown instrument error = %v, want %v", err, model.ErrUnknownInstrument)
	}
	if _, err := e.Run(ctx, h, []string{"A"}, h.Dates[testRows-1].AddDate(0, 0, 1)); err == nil {
		t.Error("Run() starting after the last date error = nil")
	}
	if _, err := e.Run(ctx, h, nil, h.Dates[30]); err == nil {
		t.Error("Run() with no instruments error = nil")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := e.Run(canceled, h, []string{"A"}, h.Dates[30]); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() canceled error = %v, want %v", err, context.Canceled)
	}
}

func TestRunShortVolWindow(t *testing.T) {
	ind := indicator.NewEngine(indicator.PairSet{{Fast: 2, Slow: 5}})
	ind.ADXPeriod = 5
	f, err := strategy.New(strategy.LongOnlyName, 0)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Risk.VolWindow = 10
	e := New(cfg, ind, f)
	if got := e.Warmup(); got != 10 {
		t.Fatalf("Warmup() = %d, want 10", got)
	}
	ctx := context.Background()

	// Volatility prepared over the default window is undefined until row 25.
	h := buildHistory(t, testRows, []string{"A"}, uptrend)
	if got := e.WarmupFor(h, []string{"A"}); got != data.DefaultVolWindow {
		t.Errorf("WarmupFor() = %d, want %d", got, data.DefaultVolWindow)
	}
	if _, err := e.Run(ctx, h, []string{"A"}, h.Dates[10]); !errors.Is(err, ErrWarmup) {
		t.Errorf("Run() before the volatility window error = %v, want %v", err, ErrWarmup)
	}
	if _, err := e.Run(ctx, h, []string{"A"}, h.Dates[data.DefaultVolWindow]); err != nil {
		t.Errorf("Run() after the volatility window error = %v", err)
	}

	// Prepared with the configured window, the run starts on row 10.
	h = buildHistoryWindow(t, testRows, 10, []string{"A"}, uptrend)
	if got := e.WarmupFor(h, []string{"A"}); got != 10 {
		t.Errorf("WarmupFor() = %d, want 10", got)
	}
	res, err := e.Run(ctx, h, []string{"A"}, h.Dates[10])
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := len(res.Rows), testRows-10; got != want {
		t.Errorf("len(Rows) = %d, want %d", got, want)
	}
}

func TestRunDeterministic(t *testing.T) {
	h := buildHistory(t, testRows, []string{"UP", "DOWN", "FLAT"}, uptrend, downtrend, flat)
	universe := []string{"UP", "DOWN", "FLAT"}

	render := func(workers int) []byte {
		f, _ := strategy.New(strategy.LongShortName, 0)
		ind := indicator.NewEngine(testPairs)
		ind.Workers = workers
		res, err := New(testConfig(), ind, f).Run(context.Background(), h, universe, h.Dates[27])
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		for i, r := range res.Rows {
			for _, v := range append(append([]float64{r.Capital, r.DailyPnL, r.NominalRet, r.CapitalRet, r.StratScalar, r.Nominal, r.Leverage}, r.Units...), r.Weights...) {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("row %d: non-finite value %v", i, v)
				}
			}
		}
		var buf bytes.Buffer
		if err := WritePortfolio(&buf, res); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	a, b, c := render(0), render(0), render(1)
	if !bytes.Equal(a, b) {
		t.Error("two runs produced different tables")
	}
	if !bytes.Equal(a, c) {
		t.Error("single-worker run produced a different table")
	}
}
