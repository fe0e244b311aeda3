package handlers

import (
	"momentum-backtest/internal/analysis"
	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/model"
)

func buildSummary(s analysis.Summary, instruments []string) models.BacktestSummary {
	return models.BacktestSummary{
		Strategy:       s.Strategy,
		Instruments:    instruments,
		BacktestWindow: models.TimeWindow{Start: s.Start, End: s.End},
		Days:           s.Days,
		InitialCapital: s.InitialCapital.StringFixed(2),
		FinalCapital:   s.FinalCapital.StringFixed(2),
		TotalPNL:       s.TotalPnL.StringFixed(2),
		Display:        analysis.Money(s.FinalCapital),
		TotalReturn:    s.TotalReturn,
		AnnualReturn:   s.AnnualReturn,
		AnnualVol:      s.AnnualVol,
		Sharpe:         s.Sharpe,
		MaxDrawdown:    s.MaxDrawdown,
		AvgLeverage:    s.AvgLeverage,
	}
}

func buildRows(res *backtest.Result, from, to int) []models.PortfolioRow {
	out := make([]models.PortfolioRow, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, buildRow(res, i))
	}
	return out
}

func buildRow(res *backtest.Result, i int) models.PortfolioRow {
	r := res.Rows[i]
	row := models.PortfolioRow{
		Index:       r.Index,
		Date:        r.Date.Format(model.DateFormat),
		Capital:     r.Capital,
		DailyPNL:    r.DailyPnL,
		NominalRet:  r.NominalRet,
		CapitalRet:  r.CapitalRet,
		StratScalar: r.StratScalar,
		Nominal:     r.Nominal,
		Leverage:    r.Leverage,
		Units:       make(map[string]float64, len(res.Instruments)),
		Weights:     make(map[string]float64, len(res.Instruments)),
	}
	for k, id := range res.Instruments {
		row.Units[id] = r.Units[k]
		row.Weights[id] = r.Weights[k]
	}
	return row
}
