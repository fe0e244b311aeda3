package risk

import "math"

// Defaults for the strategy scalar.
const (
	DefaultLookback = 100
	DefaultScalar   = 2.0
)

// ScalarWindow is the rolling controller behind the strategy scalar. It keeps
// the last lookback finalized (capital return, scalar) pairs in a ring buffer.
//
// Until the window is full the scalar is the default. Once full it is
//
//	mean(scalar) * volTarget / (std(capital return) * sqrt(TradingDays))
//
// so realized volatility above target shrinks the next scalars and vice versa.
type ScalarWindow struct {
	lookback  int
	def       float64
	volTarget float64

	rets    []float64
	scalars []float64
	next    int // ring position of the next push
	n       int
}

// NewScalarWindow returns an empty window. Zero lookback or default select the package defaults.
func NewScalarWindow(lookback int, def, volTarget float64) *ScalarWindow {
	if lookback <= 1 {
		lookback = DefaultLookback
	}
	if def <= 0 {
		def = DefaultScalar
	}
	return &ScalarWindow{
		lookback:  lookback,
		def:       def,
		volTarget: volTarget,
		rets:      make([]float64, lookback),
		scalars:   make([]float64, lookback),
	}
}

// Push records a finalized day, evicting the oldest once the window is full.
func (w *ScalarWindow) Push(capitalRet, scalar float64) {
	w.rets[w.next] = capitalRet
	w.scalars[w.next] = scalar
	w.next = (w.next + 1) % w.lookback
	if w.n < w.lookback {
		w.n++
	}
}

// Len returns the number of days held.
func (w *ScalarWindow) Len() int { return w.n }

// Ready reports whether the window holds lookback days.
func (w *ScalarWindow) Ready() bool { return w.n == w.lookback }

// Value returns the scalar for the next day.
//
// If the window's capital returns have zero dispersion (nothing was held) the
// realized volatility is undefined and the mean scalar of the window is kept.
func (w *ScalarWindow) Value() float64 {
	if !w.Ready() {
		return w.def
	}
	// Sum oldest to newest so the result does not depend on ring position.
	var sumRet, sumScalar float64
	for i := 0; i < w.n; i++ {
		j := (w.next + i) % w.lookback
		sumRet += w.rets[j]
		sumScalar += w.scalars[j]
	}
	n := float64(w.n)
	meanRet := sumRet / n
	meanScalar := sumScalar / n

	ss := 0.0
	for i := 0; i < w.n; i++ {
		d := w.rets[(w.next+i)%w.lookback] - meanRet
		ss += d * d
	}
	annualVol := math.Sqrt(ss/(n-1)) * math.Sqrt(TradingDays)
	if annualVol == 0 || math.IsNaN(annualVol) {
		return meanScalar
	}
	return meanScalar * w.volTarget / annualVol
}
