package indicator

import "math"

// EMA returns the exponential moving average of x over n periods.
//
// The average is seeded with the simple mean of the first n values (after any
// leading NaN) and then smoothed with k = 2/(n+1). Rows before the seed are NaN.
func EMA(x []float64, n int) []float64 {
	out := nans(len(x))
	if n <= 0 {
		return out
	}
	start := firstValid(x)
	if start < 0 || len(x)-start < n {
		return out
	}

	sum := 0.0
	for i := start; i < start+n; i++ {
		sum += x[i]
	}
	prev := sum / float64(n)
	out[start+n-1] = prev

	k := 2.0 / float64(n+1)
	for i := start + n; i < len(x); i++ {
		prev = (x[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

// Crossover returns EMA(x, fast) - EMA(x, slow).
func Crossover(x []float64, p Pair) []float64 {
	fast := EMA(x, p.Fast)
	slow := EMA(x, p.Slow)
	for i := range fast {
		fast[i] -= slow[i]
	}
	return fast
}

func firstValid(x []float64) int {
	for i, v := range x {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
