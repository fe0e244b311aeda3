package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultADXThreshold is the trend-strength level below which no position is taken.
const DefaultADXThreshold = 25.0

// Signal variant names accepted by New.
const (
	LongOnlyName  = "long_only"
	LongShortName = "long_short"
)

var aliases = map[string]string{
	LongOnlyName:  LongOnlyName,
	"lbmom":       LongOnlyName,
	LongShortName: LongShortName,
	"lsmom":       LongShortName,
}

// LongOnly forecasts the fraction of crossover pairs that are bullish, in [0, 1].
type LongOnly struct {
	ADXThreshold float64
}

func (s *LongOnly) Name() string { return LongOnlyName }

func (s *LongOnly) Forecast(ctx Context) float64 {
	if !trending(ctx, s.ADXThreshold) {
		return 0
	}
	up, _, n := votes(ctx)
	if n == 0 {
		return 0
	}
	return float64(up) / float64(n)
}

// LongShort forecasts bullish minus bearish pairs over all pairs, in [-1, 1].
type LongShort struct {
	ADXThreshold float64
}

func (s *LongShort) Name() string { return LongShortName }

func (s *LongShort) Forecast(ctx Context) float64 {
	if !trending(ctx, s.ADXThreshold) {
		return 0
	}
	up, down, n := votes(ctx)
	if n == 0 {
		return 0
	}
	return float64(up-down) / float64(n)
}

// New returns the forecaster registered under name.
// A threshold <= 0 selects DefaultADXThreshold.
func New(name string, adxThreshold float64) (Forecaster, error) {
	if adxThreshold <= 0 {
		adxThreshold = DefaultADXThreshold
	}
	switch Canonical(name) {
	case LongOnlyName:
		return &LongOnly{ADXThreshold: adxThreshold}, nil
	case LongShortName:
		return &LongShort{ADXThreshold: adxThreshold}, nil
	default:
		return nil, fmt.Errorf("unsupported signal: %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

// Canonical resolves aliases ("lbmom", "lsmom") to a variant name, or "" if unknown.
func Canonical(name string) string {
	return aliases[strings.ToLower(strings.TrimSpace(name))]
}

// Names lists every accepted signal name, aliases included.
func Names() []string {
	out := make([]string, 0, len(aliases))
	for k := range aliases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// trending reports whether ADX on the day is at or above threshold.
// A NaN ADX (warm-up) is not trending.
func trending(ctx Context, threshold float64) bool {
	s := ctx.Series
	if s == nil || ctx.Index < 0 || ctx.Index >= len(s.ADX) {
		return false
	}
	adx := s.ADX[ctx.Index]
	return !math.IsNaN(adx) && adx >= threshold
}

// votes counts bullish and bearish crossover pairs. Zero and NaN differences
// count in neither bucket; n is the total number of pairs.
func votes(ctx Context) (up, down, n int) {
	for _, col := range ctx.Series.EMADiff {
		v := col[ctx.Index]
		switch {
		case v > 0:
			up++
		case v < 0:
			down++
		}
	}
	return up, down, len(ctx.Series.EMADiff)
}
