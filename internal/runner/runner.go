// Package runner builds and runs the configured strategies. It is shared by
// the CLI and the HTTP API.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/data"
	"momentum-backtest/internal/indicator"
	"momentum-backtest/internal/model"
	"momentum-backtest/internal/store"
	"momentum-backtest/internal/strategy"
	"momentum-backtest/internal/valuation"

	"golang.org/x/sync/errgroup"
)

// Runner runs the strategies of one config. Strategies share the indicator
// engine but never positions.
type Runner struct {
	cfg        *config.Config
	indicators *indicator.Engine
}

func New(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg, indicators: cfg.IndicatorEngine()}
}

// Config returns the config the runner was built from.
func (r *Runner) Config() *config.Config { return r.cfg }

// LoadHistory reads the history named by the config's data section. Derived
// columns are prepared with the configured risk.vol_window.
func LoadHistory(ctx context.Context, cfg *config.Config) (*model.History, error) {
	window := cfg.Backtest().Risk.VolWindow
	switch cfg.Data.Source {
	case config.SourcePostgres:
		st, err := store.Open(cfg.Data.DSN)
		if err != nil {
			return nil, err
		}
		return st.LoadHistory(ctx, cfg.Instruments(), time.Time{}, time.Time{}, window)
	default:
		return data.LoadCSV(cfg.Data.CSV, window)
	}
}

// Validate checks that h provides every instrument and conversion series the
// strategies need, and that the simulation start leaves room for the warm-up.
func (r *Runner) Validate(h *model.History) error {
	if err := valuation.Validate(h, r.cfg.Instruments()); err != nil {
		return err
	}
	var errs []error
	for _, sc := range r.cfg.Strategies {
		eng, err := r.engine(sc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := r.start(h, eng, sc.Universe()); err != nil {
			errs = append(errs, fmt.Errorf("strategy %s: %w", sc.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run simulates the strategy called name over h.
func (r *Runner) Run(ctx context.Context, h *model.History, name string) (*backtest.Result, error) {
	sc, err := r.cfg.Strategy(name)
	if err != nil {
		return nil, err
	}
	eng, err := r.engine(sc)
	if err != nil {
		return nil, err
	}
	start, err := r.start(h, eng, sc.Universe())
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", sc.Name, err)
	}

	began := time.Now()
	log.Printf("[Runner] %s: %d instruments from %s", sc.Name, len(sc.Universe()), start.Format(model.DateFormat))
	res, err := eng.Run(ctx, h, sc.Universe(), start)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", sc.Name, err)
	}
	res.Strategy = sc.Name
	log.Printf("[Runner] %s: %d rows in %s, final capital %.2f", sc.Name, len(res.Rows), time.Since(began).Round(time.Millisecond), res.FinalCapital)
	return res, nil
}

// RunAll simulates every configured strategy concurrently. Results are in
// config order.
func (r *Runner) RunAll(ctx context.Context, h *model.History) ([]*backtest.Result, error) {
	out := make([]*backtest.Result, len(r.cfg.Strategies))
	g, ctx := errgroup.WithContext(ctx)
	for i, sc := range r.cfg.Strategies {
		i, name := i, sc.Name
		g.Go(func() error {
			res, err := r.Run(ctx, h, name)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) engine(sc config.StrategyConfig) (*backtest.Engine, error) {
	f, err := strategy.New(sc.Signal, r.cfg.Indicators.ADXThreshold)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", sc.Name, err)
	}
	return backtest.New(r.cfg.Backtest(), r.indicators, f), nil
}

// start resolves the configured simulation start. Without one the run starts
// on the first row after the warm-up of universe.
func (r *Runner) start(h *model.History, eng *backtest.Engine, universe []string) (time.Time, error) {
	if h.Len() == 0 {
		return time.Time{}, errors.New("history is empty")
	}
	start, err := r.cfg.StartDate(h.Dates[h.Len()-1])
	if err != nil {
		return time.Time{}, err
	}
	w := eng.WarmupFor(h, universe)
	if start.IsZero() {
		if w >= h.Len() {
			return time.Time{}, fmt.Errorf("%w: history has %d rows, indicators need %d", backtest.ErrWarmup, h.Len(), w+1)
		}
		return h.Dates[w], nil
	}
	if i := h.DateIndex(start); i < w {
		return time.Time{}, fmt.Errorf("%w: start %s is row %d, the first usable row is %d",
			backtest.ErrWarmup, start.Format(model.DateFormat), i, w)
	}
	return start, nil
}
