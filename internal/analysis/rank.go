package analysis

import (
	"sort"

	"momentum-backtest/internal/backtest"
)

// RankBySharpe summarizes every run and sorts descending by Sharpe ratio.
// Ties keep the order of results.
func RankBySharpe(results []*backtest.Result) []Summary {
	out := make([]Summary, 0, len(results))
	for _, res := range results {
		out = append(out, Summarize(res))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sharpe > out[j].Sharpe
	})
	return out
}
