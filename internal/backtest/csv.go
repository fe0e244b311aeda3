package backtest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"momentum-backtest/internal/model"
)

// PortfolioHeader returns the column names of the portfolio table for instruments.
func PortfolioHeader(instruments []string) []string {
	header := []string{
		"date",
		"capital",
		"daily pnl",
		"nominal ret",
		"capital ret",
		"strat scalar",
		"nominal",
		"leverage",
	}
	for _, id := range instruments {
		header = append(header, id+" units")
	}
	for _, id := range instruments {
		header = append(header, id+" w")
	}
	return header
}

// WritePortfolioCSV writes the portfolio table of res to path.
func WritePortfolioCSV(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePortfolio(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WritePortfolio writes one line per simulated day. Floats are printed with
// the shortest exact representation, so equal results give equal bytes.
func WritePortfolio(out io.Writer, res *Result) error {
	w := csv.NewWriter(out)
	if err := w.Write(PortfolioHeader(res.Instruments)); err != nil {
		return err
	}

	for _, r := range res.Rows {
		row := []string{
			r.Date.Format(model.DateFormat),
			fmtFloat(r.Capital),
			fmtFloat(r.DailyPnL),
			fmtFloat(r.NominalRet),
			fmtFloat(r.CapitalRet),
			fmtFloat(r.StratScalar),
			fmtFloat(r.Nominal),
			fmtFloat(r.Leverage),
		}
		for _, u := range r.Units {
			row = append(row, fmtFloat(u))
		}
		for _, x := range r.Weights {
			row = append(row, fmtFloat(x))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
