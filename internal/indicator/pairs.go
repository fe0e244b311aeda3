package indicator

import (
	"errors"
	"fmt"
)

// Pair is a (fast, slow) EMA period pair. Its crossover value is EMA(fast) - EMA(slow).
type Pair struct {
	Fast int
	Slow int
}

func (p Pair) String() string { return fmt.Sprintf("(%d, %d)", p.Fast, p.Slow) }

// PairSet is the immutable list of pairs voting on the trend.
// Column k of Series.EMADiff belongs to PairSet[k].
type PairSet []Pair

// DefaultPairs returns the 21 reference crossover pairs.
func DefaultPairs() PairSet {
	return PairSet{
		{32, 155}, {218, 234}, {29, 53}, {51, 81}, {204, 248}, {76, 129}, {48, 195},
		{99, 104}, {94, 158}, {56, 205}, {103, 217}, {21, 150}, {117, 217}, {270, 283},
		{154, 283}, {129, 282}, {29, 224}, {31, 143}, {103, 218}, {153, 269}, {42, 146},
	}
}

// Validate checks that every pair has 0 < fast < slow.
func (ps PairSet) Validate() error {
	if len(ps) == 0 {
		return errors.New("at least one EMA pair is required")
	}
	for i, p := range ps {
		if p.Fast <= 0 || p.Slow <= 0 {
			return fmt.Errorf("pair %d %s: periods must be > 0", i, p)
		}
		if p.Fast >= p.Slow {
			return fmt.Errorf("pair %d %s: fast period must be shorter than slow period", i, p)
		}
	}
	return nil
}

// MaxPeriod returns the longest period in the set.
func (ps PairSet) MaxPeriod() int {
	m := 0
	for _, p := range ps {
		if p.Slow > m {
			m = p.Slow
		}
		if p.Fast > m {
			m = p.Fast
		}
	}
	return m
}
