package data

import (
	"math"

	"momentum-backtest/internal/model"
)

// DefaultVolWindow is the rolling window (rows) used for "% ret vol".
const DefaultVolWindow = 25

// Prepare derives the return, volatility and activity columns of s from its
// OHLCV columns, in place:
//   - OHLCV gaps are forward filled, then leading gaps back filled
//   - Ret[i] = Close[i]/Close[i-1] - 1, NaN on the first row
//   - RetVol[i] is the sample std of the last window returns, NaN until the window is full
//     (the first defined row is window); the window is recorded in VolWindow
//   - Active[i] is true when the close moved (always true on the first row)
//   - missing open, high or low columns take the close
//
// Activity is computed after forward filling, so a missing print counts as an
// unchanged close.
func Prepare(s *model.Series, window int) {
	if window <= 1 {
		window = DefaultVolWindow
	}
	s.VolWindow = window
	for _, col := range [][]float64{s.Open, s.High, s.Low, s.Close, s.Volume} {
		ffill(col)
	}

	n := s.Len()
	if len(s.Ret) != n {
		s.Ret = make([]float64, n)
	}
	if len(s.RetVol) != n {
		s.RetVol = make([]float64, n)
	}
	if len(s.Active) != n {
		s.Active = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		if i == 0 {
			s.Ret[i] = math.NaN()
			s.Active[i] = true
			continue
		}
		s.Ret[i] = s.Close[i]/s.Close[i-1] - 1
		// NaN closes compare unequal, matching "no previous print" as activity.
		s.Active[i] = s.Close[i] != s.Close[i-1]
	}
	for i := 0; i < n; i++ {
		s.RetVol[i] = rollingStd(s.Ret, i, window)
	}

	for _, col := range [][]float64{s.Open, s.High, s.Low, s.Close, s.Volume} {
		bfill(col)
	}
	// Close-only tables: price bars collapse to the close.
	for _, col := range [][]float64{s.Open, s.High, s.Low} {
		if len(col) == n && allNaN(col) {
			copy(col, s.Close)
		}
	}
}

func allNaN(x []float64) bool {
	for _, v := range x {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

// rollingStd returns the sample standard deviation of x[end-window+1 : end+1],
// or NaN when the window is incomplete or contains NaN.
func rollingStd(x []float64, end, window int) float64 {
	start := end - window + 1
	if start < 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := start; i <= end; i++ {
		if math.IsNaN(x[i]) {
			return math.NaN()
		}
		sum += x[i]
	}
	mean := sum / float64(window)
	ss := 0.0
	for i := start; i <= end; i++ {
		d := x[i] - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(window-1))
}

func ffill(x []float64) {
	for i := 1; i < len(x); i++ {
		if math.IsNaN(x[i]) {
			x[i] = x[i-1]
		}
	}
}

func bfill(x []float64) {
	for i := len(x) - 2; i >= 0; i-- {
		if math.IsNaN(x[i]) {
			x[i] = x[i+1]
		}
	}
}
