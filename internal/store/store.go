// Package store persists daily bars and finished runs in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"momentum-backtest/internal/backtest"
	"momentum-backtest/internal/data"
	"momentum-backtest/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const batchSize = 500

// Store wraps a gorm connection.
type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("empty database dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Bar{}, &Run{}, &RunRow{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// SaveBars upserts the OHLCV columns of every series of h.
func (s *Store) SaveBars(ctx context.Context, h *model.History) (int, error) {
	bars := barsFromHistory(h)
	if len(bars) == 0 {
		return 0, nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instrument"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).
		CreateInBatches(bars, batchSize).Error
	if err != nil {
		return 0, fmt.Errorf("save bars: %w", err)
	}
	return len(bars), nil
}

// LoadHistory reads the bars of instruments between from and to (inclusive,
// zero means unbounded) and prepares the derived columns with a window-row
// volatility (the default when window <= 1).
func (s *Store) LoadHistory(ctx context.Context, instruments []string, from, to time.Time, window int) (*model.History, error) {
	if len(instruments) == 0 {
		return nil, errors.New("no instruments")
	}
	q := s.db.WithContext(ctx).Where("instrument IN ?", instruments)
	if !from.IsZero() {
		q = q.Where("date >= ?", model.Day(from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", model.Day(to))
	}
	var bars []Bar
	if err := q.Order("date ASC").Find(&bars).Error; err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	return historyFromBars(bars, instruments, window)
}

// SaveRun stores res under id.
func (s *Store) SaveRun(ctx context.Context, id string, res *backtest.Result) error {
	run, rows := runRecords(id, res)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("save run %s: %w", id, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, batchSize).Error; err != nil {
			return fmt.Errorf("save run %s rows: %w", id, err)
		}
		return nil
	})
}

// FindRun returns the stored run header, or nil when id is unknown.
func (s *Store) FindRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &run, err
}

// RunRows returns the rows of run id in date order.
func (s *Store) RunRows(ctx context.Context, id string) ([]RunRow, error) {
	var rows []RunRow
	err := s.db.WithContext(ctx).Where("run_id = ?", id).Order("date ASC").Find(&rows).Error
	return rows, err
}

// barsFromHistory flattens h into bars, skipping rows without a close.
func barsFromHistory(h *model.History) []Bar {
	var out []Bar
	for _, s := range h.Series {
		for i, d := range h.Dates {
			if math.IsNaN(s.Close[i]) {
				continue
			}
			out = append(out, Bar{
				Instrument: s.ID,
				Date:       d,
				Open:       zeroNaN(s.Open[i]),
				High:       zeroNaN(s.High[i]),
				Low:        zeroNaN(s.Low[i]),
				Close:      s.Close[i],
				Volume:     zeroNaN(s.Volume[i]),
			})
		}
	}
	return out
}

// historyFromBars pivots bars onto the union of their dates. Every instrument
// must have at least one bar. Dates an instrument has no bar on are filled by
// data.Prepare.
func historyFromBars(bars []Bar, instruments []string, window int) (*model.History, error) {
	days := map[time.Time]bool{}
	for _, b := range bars {
		days[model.Day(b.Date)] = true
	}
	dates := make([]time.Time, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	h, err := model.NewHistory(dates)
	if err != nil {
		return nil, err
	}
	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	series := make(map[string]*model.Series, len(instruments))
	for _, id := range instruments {
		if series[id] == nil {
			series[id] = model.NewSeries(id, len(dates))
		}
	}
	seen := map[string]bool{}
	for _, b := range bars {
		s := series[b.Instrument]
		if s == nil {
			continue
		}
		i := row[model.Day(b.Date)]
		// Zero open/high/low are stored for missing prints.
		s.Open[i], s.High[i], s.Low[i] = nanZero(b.Open), nanZero(b.High), nanZero(b.Low)
		s.Close[i], s.Volume[i] = b.Close, b.Volume
		seen[b.Instrument] = true
	}

	added := map[string]bool{}
	for _, id := range instruments {
		if added[id] {
			continue
		}
		if !seen[id] {
			return nil, fmt.Errorf("%w: %q has no stored bars", model.ErrUnknownInstrument, id)
		}
		s := series[id]
		data.Prepare(s, window)
		if err := h.Add(s); err != nil {
			return nil, err
		}
		added[id] = true
	}
	return h, nil
}

func runRecords(id string, res *backtest.Result) (Run, []RunRow) {
	run := Run{
		ID:             id,
		Strategy:       res.Strategy,
		Instruments:    append([]string(nil), res.Instruments...),
		InitialCapital: res.InitialCapital,
		FinalCapital:   res.FinalCapital,
		TotalPnL:       res.TotalPnL,
	}
	if n := len(res.Rows); n > 0 {
		run.StartDate = res.Rows[0].Date
		run.EndDate = res.Rows[n-1].Date
	}
	rows := make([]RunRow, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = RunRow{
			RunID:       id,
			Date:        r.Date,
			Capital:     r.Capital,
			DailyPnL:    r.DailyPnL,
			NominalRet:  r.NominalRet,
			CapitalRet:  r.CapitalRet,
			StratScalar: r.StratScalar,
			Nominal:     r.Nominal,
			Leverage:    r.Leverage,
			Units:       append([]float64(nil), r.Units...),
			Weights:     append([]float64(nil), r.Weights...),
		}
	}
	return run, rows
}

func zeroNaN(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return x
}

func nanZero(x float64) float64 {
	if x == 0 {
		return math.NaN()
	}
	return x
}
