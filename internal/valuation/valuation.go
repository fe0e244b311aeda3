// Package valuation converts instrument prices and price changes into the
// base currency (USD).
//
// Instrument ids are either plain symbols (AAPL, SPY), taken to be quoted in
// USD, or currency-pair style codes BASE_QUOTE (EUR_USD, USD_JPY, HK33_HKD)
// meaning one unit of BASE priced in QUOTE. Pairs whose quote is not USD are
// converted through the QUOTE_USD series of the same history.
package valuation

import (
	"errors"
	"fmt"
	"strings"

	"momentum-backtest/internal/model"

	"github.com/Rhymond/go-money"
)

// BaseCurrency is the currency every value is reported in.
const BaseCurrency = money.USD

// ErrMissingCross is returned when a QUOTE_USD conversion series is absent.
var ErrMissingCross = errors.New("missing cross-rate column")

// Instrument is a parsed instrument id.
type Instrument struct {
	ID    string
	Base  string // empty for plain symbols
	Quote string // BaseCurrency for plain symbols
	Pair  bool
}

// Parse classifies id. Exactly one "_" makes a pair.
func Parse(id string) Instrument {
	parts := strings.Split(id, "_")
	if len(parts) != 2 {
		return Instrument{ID: id, Quote: BaseCurrency}
	}
	return Instrument{ID: id, Base: parts[0], Quote: parts[1], Pair: true}
}

// CrossID returns the id of the series converting the quote currency into
// USD, or "" when no conversion is needed.
func (in Instrument) CrossID() string {
	if !in.Pair || in.Quote == BaseCurrency {
		return ""
	}
	return in.Quote + "_" + BaseCurrency
}

// Valuer values the instruments of a universe against one history.
// Instruments are addressed by their position in the universe.
type Valuer struct {
	insts []Instrument
	close [][]float64 // close of each instrument
	cross [][]float64 // close of the QUOTE_USD series, nil when not needed
}

// NewValuer validates universe against h and returns a Valuer for it.
func NewValuer(h *model.History, universe []string) (*Valuer, error) {
	if err := Validate(h, universe); err != nil {
		return nil, err
	}
	v := &Valuer{
		insts: make([]Instrument, len(universe)),
		close: make([][]float64, len(universe)),
		cross: make([][]float64, len(universe)),
	}
	for k, id := range universe {
		in := Parse(id)
		s, _ := h.Lookup(id)
		v.insts[k] = in
		v.close[k] = s.Close
		if x := in.CrossID(); x != "" {
			cs, _ := h.Lookup(x)
			v.cross[k] = cs.Close
		}
	}
	return v, nil
}

// Validate checks that every instrument of universe has a series in h, that
// pair quote legs are ISO-4217 currencies and that every needed QUOTE_USD
// series is present. The returned error names the offending instrument or column.
func Validate(h *model.History, universe []string) error {
	if h == nil {
		return errors.New("history is nil")
	}
	var errs []error
	for _, id := range universe {
		if _, err := h.Lookup(id); err != nil {
			errs = append(errs, err)
			continue
		}
		in := Parse(id)
		if !in.Pair {
			continue
		}
		if money.GetCurrency(in.Quote) == nil {
			errs = append(errs, fmt.Errorf("instrument %s: quote %q is not a known currency code", id, in.Quote))
			continue
		}
		if x := in.CrossID(); x != "" {
			if _, err := h.Lookup(x); err != nil {
				errs = append(errs, fmt.Errorf("%w: instrument %s needs %q", ErrMissingCross, id, x+" close"))
			}
		}
	}
	return errors.Join(errs...)
}

// Instrument returns the parsed instrument at position k.
func (v *Valuer) Instrument(k int) Instrument { return v.insts[k] }

// UnitDollarValue is the USD value of one unit of instrument k on row t:
//   - plain symbol: its close
//   - USD_xxx: 1, the unit bought is one dollar
//   - xxx_USD: its close
//   - xxx_QUOTE: its close times the QUOTE_USD close
func (v *Valuer) UnitDollarValue(k, t int) float64 {
	in := v.insts[k]
	if in.Pair && in.Base == BaseCurrency {
		return 1
	}
	price := v.close[k][t]
	if c := v.cross[k]; c != nil {
		return price * c[t]
	}
	return price
}

// UnitValChange converts a raw price change of instrument k into USD using
// the conversion rate of row t. Plain symbols and xxx_USD pairs are already in
// USD; every other pair is multiplied by the QUOTE_USD close.
func (v *Valuer) UnitValChange(k int, delta float64, t int) float64 {
	if c := v.cross[k]; c != nil {
		return delta * c[t]
	}
	return delta
}
