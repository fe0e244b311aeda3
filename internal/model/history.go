package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// DateFormat is used for every date rendered or parsed by the backtester.
const DateFormat = "2006-01-02"

// ErrUnknownInstrument is returned when an instrument id has no series in a History.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Series holds the daily columns of one instrument.
// All slices are aligned with History.Dates.
type Series struct {
	ID string

	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	// Ret is the close-to-close fractional return (NaN on the first row).
	Ret []float64
	// RetVol is the rolling sample standard deviation of Ret.
	RetVol []float64
	// VolWindow is the number of returns in the RetVol window, 0 when the
	// column was loaded as given.
	VolWindow int
	// Active reports whether the close differs from the previous row's close.
	Active []bool

	// Indicator columns. Nil until an indicator.Engine extends the history.
	ADX     []float64
	EMADiff [][]float64 // one column per configured (fast, slow) pair
}

// NewSeries allocates a series of n rows with every numeric column set to NaN.
func NewSeries(id string, n int) *Series {
	return &Series{
		ID:     id,
		Open:   nanSlice(n),
		High:   nanSlice(n),
		Low:    nanSlice(n),
		Close:  nanSlice(n),
		Volume: nanSlice(n),
		Ret:    nanSlice(n),
		RetVol: nanSlice(n),
		Active: make([]bool, n),
	}
}

// Len returns the number of rows.
func (s *Series) Len() int { return len(s.Close) }

// Clone returns a deep copy of the series.
func (s *Series) Clone() *Series {
	c := &Series{
		ID:        s.ID,
		VolWindow: s.VolWindow,
		Open:      cloneFloats(s.Open),
		High:      cloneFloats(s.High),
		Low:       cloneFloats(s.Low),
		Close:     cloneFloats(s.Close),
		Volume:    cloneFloats(s.Volume),
		Ret:       cloneFloats(s.Ret),
		RetVol:    cloneFloats(s.RetVol),
		ADX:       cloneFloats(s.ADX),
	}
	if s.Active != nil {
		c.Active = append([]bool(nil), s.Active...)
	}
	if s.EMADiff != nil {
		c.EMADiff = make([][]float64, len(s.EMADiff))
		for i, col := range s.EMADiff {
			c.EMADiff[i] = cloneFloats(col)
		}
	}
	return c
}

func (s *Series) validate(n int) error {
	cols := map[string]int{
		"open":      len(s.Open),
		"high":      len(s.High),
		"low":       len(s.Low),
		"close":     len(s.Close),
		"volume":    len(s.Volume),
		"% ret":     len(s.Ret),
		"% ret vol": len(s.RetVol),
		"active":    len(s.Active),
	}
	for name, l := range cols {
		if l != n {
			return fmt.Errorf("series %s: column %q has %d rows, history has %d", s.ID, name, l, n)
		}
	}
	return nil
}

// History is the time-indexed input table: ascending unique dates and one
// Series per instrument, addressed by a stable index.
type History struct {
	Dates  []time.Time
	Series []*Series

	index map[string]int
}

// NewHistory returns an empty history over the given dates.
// Dates are normalized to UTC midnight and must be strictly ascending.
func NewHistory(dates []time.Time) (*History, error) {
	ds := make([]time.Time, len(dates))
	for i, d := range dates {
		ds[i] = Day(d)
		if i > 0 && !ds[i].After(ds[i-1]) {
			return nil, fmt.Errorf("dates must be strictly ascending: %s follows %s",
				ds[i].Format(DateFormat), ds[i-1].Format(DateFormat))
		}
	}
	return &History{Dates: ds, index: map[string]int{}}, nil
}

// Add appends a series. Its columns must match the history length.
func (h *History) Add(s *Series) error {
	if s == nil {
		return errors.New("series is nil")
	}
	if _, dup := h.index[s.ID]; dup {
		return fmt.Errorf("duplicate instrument %q", s.ID)
	}
	if err := s.validate(len(h.Dates)); err != nil {
		return err
	}
	if h.index == nil {
		h.index = map[string]int{}
	}
	h.index[s.ID] = len(h.Series)
	h.Series = append(h.Series, s)
	return nil
}

// Len returns the number of dates.
func (h *History) Len() int { return len(h.Dates) }

// Index returns the position of instrument id in h.Series.
func (h *History) Index(id string) (int, bool) {
	i, ok := h.index[id]
	return i, ok
}

// Lookup returns the series for id, or ErrUnknownInstrument.
func (h *History) Lookup(id string) (*Series, error) {
	i, ok := h.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, id)
	}
	return h.Series[i], nil
}

// Instruments returns the instrument ids in insertion order.
func (h *History) Instruments() []string {
	out := make([]string, len(h.Series))
	for i, s := range h.Series {
		out[i] = s.ID
	}
	return out
}

// DateIndex returns the first row whose date is on or after d
// (h.Len() when d is after the last date).
func (h *History) DateIndex(d time.Time) int {
	d = Day(d)
	return sort.Search(len(h.Dates), func(i int) bool { return !h.Dates[i].Before(d) })
}

// Clone returns a deep copy; the clone shares nothing with h.
func (h *History) Clone() *History {
	c := &History{
		Dates:  append([]time.Time(nil), h.Dates...),
		Series: make([]*Series, len(h.Series)),
		index:  make(map[string]int, len(h.index)),
	}
	for i, s := range h.Series {
		c.Series[i] = s.Clone()
		c.index[s.ID] = i
	}
	return c
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date, also accepting RFC3339 timestamps.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return Day(t), nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func cloneFloats(x []float64) []float64 {
	if x == nil {
		return nil
	}
	return append([]float64(nil), x...)
}
