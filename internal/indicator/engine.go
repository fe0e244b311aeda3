package indicator

import (
	"context"
	"fmt"
	"runtime"

	"momentum-backtest/internal/model"

	"golang.org/x/sync/errgroup"
)

// Engine computes the trend indicators used by the vote strategies.
type Engine struct {
	Pairs     PairSet
	ADXPeriod int
	// Workers bounds the number of instruments processed concurrently (0 = GOMAXPROCS).
	Workers int
}

// NewEngine returns an engine over pairs with the default ADX period.
func NewEngine(pairs PairSet) *Engine {
	return &Engine{Pairs: pairs, ADXPeriod: DefaultADXPeriod}
}

// Warmup returns the number of leading rows in which at least one indicator is NaN.
func (e *Engine) Warmup() int {
	w := ADXLookback(e.adxPeriod())
	if p := e.Pairs.MaxPeriod() - 1; p > w {
		w = p
	}
	return w
}

func (e *Engine) adxPeriod() int {
	if e.ADXPeriod <= 0 {
		return DefaultADXPeriod
	}
	return e.ADXPeriod
}

// Extend returns a copy of h in which every instrument of universe carries an
// ADX column and one EMA crossover column per pair. h itself is not modified,
// so a caller may extend the same history with different pair sets.
//
// Instruments are processed concurrently; each writes only its own series, so
// the result does not depend on scheduling.
func (e *Engine) Extend(ctx context.Context, h *model.History, universe []string) (*model.History, error) {
	if err := e.Pairs.Validate(); err != nil {
		return nil, err
	}
	out := h.Clone()

	targets := make([]*model.Series, 0, len(universe))
	seen := make(map[string]bool, len(universe))
	for _, id := range universe {
		if seen[id] {
			continue
		}
		seen[id] = true
		s, err := out.Lookup(id)
		if err != nil {
			return nil, err
		}
		targets = append(targets, s)
	}

	g, ctx := errgroup.WithContext(ctx)
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	adxN := e.adxPeriod()
	for _, s := range targets {
		s := s
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if len(s.High) != s.Len() || len(s.Low) != s.Len() {
				return fmt.Errorf("series %s: high/low columns missing", s.ID)
			}
			s.ADX = ADX(s.High, s.Low, s.Close, adxN)
			s.EMADiff = make([][]float64, len(e.Pairs))
			for k, p := range e.Pairs {
				s.EMADiff[k] = Crossover(s.Close, p)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
