package analysis

import (
	"math"
	"time"

	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/risk"
	"momentum-backtest/internal/valuation"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Summary condenses one run into the statistics used to compare strategies.
// Money fields are rounded to cents.
type Summary struct {
	Strategy string
	Start    time.Time
	End      time.Time
	Days     int

	InitialCapital decimal.Decimal
	FinalCapital   decimal.Decimal
	TotalPnL       decimal.Decimal

	// TotalReturn is FinalCapital/InitialCapital - 1.
	TotalReturn float64
	// AnnualReturn is the mean daily capital change times TradingDays.
	AnnualReturn float64
	// AnnualVol is the sample std of daily capital changes times sqrt(TradingDays).
	AnnualVol float64
	// Sharpe is AnnualReturn/AnnualVol, 0 when AnnualVol is 0.
	Sharpe float64
	// MaxDrawdown is the largest peak-to-trough capital loss, as a positive fraction.
	MaxDrawdown float64
	AvgLeverage float64
}

// Summarize computes the run statistics of res. Daily returns are taken from
// the capital path, the literal PnL estimate.
func Summarize(res *backtest.Result) Summary {
	s := Summary{
		Strategy:       res.Strategy,
		InitialCapital: cents(res.InitialCapital),
		FinalCapital:   cents(res.FinalCapital),
		TotalPnL:       cents(res.TotalPnL),
		Days:           len(res.Rows),
	}
	if len(res.Rows) == 0 {
		return s
	}
	s.Start = res.Rows[0].Date
	s.End = res.Rows[len(res.Rows)-1].Date
	if res.InitialCapital != 0 {
		s.TotalReturn = res.FinalCapital/res.InitialCapital - 1
	}

	rets := make([]float64, 0, len(res.Rows))
	peak := res.Rows[0].Capital
	lev := 0.0
	for i, r := range res.Rows {
		lev += r.Leverage
		if r.Capital > peak {
			peak = r.Capital
		}
		if peak > 0 {
			if dd := 1 - r.Capital/peak; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
		if i > 0 && res.Rows[i-1].Capital != 0 {
			rets = append(rets, r.Capital/res.Rows[i-1].Capital-1)
		}
	}
	s.AvgLeverage = lev / float64(len(res.Rows))

	mean, std := meanStd(rets)
	s.AnnualReturn = mean * risk.TradingDays
	s.AnnualVol = std * math.Sqrt(risk.TradingDays)
	if s.AnnualVol > 0 {
		s.Sharpe = s.AnnualReturn / s.AnnualVol
	}
	return s
}

// Money formats a decimal amount in the base currency, e.g. "$10,250.37".
func Money(d decimal.Decimal) string {
	cur := money.GetCurrency(valuation.BaseCurrency)
	factor := decimal.New(1, int32(cur.Fraction))
	return money.New(d.Mul(factor).Round(0).IntPart(), valuation.BaseCurrency).Display()
}

func cents(x float64) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(2)
}

func meanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	if len(x) < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range x {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(x)-1))
}
