package indicator

import "math"

// DefaultADXPeriod is the Average Directional Index window.
const DefaultADXPeriod = 14

// ADXLookback is the number of leading rows for which ADX(n) is undefined.
func ADXLookback(n int) int { return 2*n - 1 }

// ADX returns Wilder's Average Directional Index over n periods.
//
// Directional movement and true range are accumulated over the first n-1 bars,
// Wilder-smoothed thereafter; the first ADX is the mean of the first n DX
// values and later values are smoothed as (prev*(n-1) + dx)/n. Output is in
// [0, 100] and NaN for the first ADXLookback(n) rows.
func ADX(high, low, close []float64, n int) []float64 {
	size := len(close)
	out := nans(size)
	if n <= 1 || len(high) != size || len(low) != size || size <= ADXLookback(n) {
		return out
	}

	fn := float64(n)
	var plusDM, minusDM, tr float64
	prevHigh, prevLow, prevClose := high[0], low[0], close[0]

	step := func(i int) (dPlus, dMinus, trueRange float64) {
		diffP := high[i] - prevHigh
		diffM := prevLow - low[i]
		prevHigh, prevLow = high[i], low[i]
		switch {
		case diffM > 0 && diffP < diffM:
			dMinus = diffM
		case diffP > 0 && diffP > diffM:
			dPlus = diffP
		}
		trueRange = math.Max(high[i]-low[i], math.Max(math.Abs(high[i]-prevClose), math.Abs(low[i]-prevClose)))
		prevClose = close[i]
		return dPlus, dMinus, trueRange
	}

	smooth := func(i int) (dx float64, ok bool) {
		dPlus, dMinus, trueRange := step(i)
		plusDM = plusDM - plusDM/fn + dPlus
		minusDM = minusDM - minusDM/fn + dMinus
		tr = tr - tr/fn + trueRange
		if tr == 0 {
			return 0, false
		}
		plusDI := 100 * plusDM / tr
		minusDI := 100 * minusDM / tr
		sum := plusDI + minusDI
		if sum == 0 {
			return 0, false
		}
		return 100 * math.Abs(plusDI-minusDI) / sum, true
	}

	i := 1
	for ; i < n; i++ {
		dPlus, dMinus, trueRange := step(i)
		plusDM += dPlus
		minusDM += dMinus
		tr += trueRange
	}

	sumDX := 0.0
	for end := i + n; i < end; i++ {
		if dx, ok := smooth(i); ok {
			sumDX += dx
		}
	}
	adx := sumDX / fn
	out[i-1] = adx

	for ; i < size; i++ {
		if dx, ok := smooth(i); ok {
			adx = (adx*(fn-1) + dx) / fn
		}
		out[i] = adx
	}
	return out
}
