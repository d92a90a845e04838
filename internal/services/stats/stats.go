// Package stats holds the descriptive and rolling-window statistics shared by the engines.
// Undefined results are reported as NaN.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Finite returns the non-NaN, non-Inf values of xs.
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// Mean is the arithmetic mean of the finite values, NaN when there are none.
func Mean(xs []float64) float64 {
	f := Finite(xs)
	if len(f) == 0 {
		return math.NaN()
	}
	return stat.Mean(f, nil)
}

// SampleStd is the n-1 standard deviation of the finite values, NaN below two values.
func SampleStd(xs []float64) float64 {
	f := Finite(xs)
	if len(f) < 2 {
		return math.NaN()
	}
	return stat.StdDev(f, nil)
}

// RollingMean returns the trailing mean over window. Positions with an incomplete
// window, or a NaN inside the window, are NaN.
func RollingMean(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 { return stat.Mean(w, nil) })
}

// RollingStd returns the trailing sample standard deviation over window.
// A window of one is always NaN.
func RollingStd(xs []float64, window int) []float64 {
	return rolling(xs, window, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		return stat.StdDev(w, nil)
	})
}

func rolling(xs []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
	}
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		w := xs[i-window+1 : i+1]
		if hasNaN(w) {
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func hasNaN(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

// Shift lags xs by n positions, filling the head with NaN.
func Shift(xs []float64, n int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		j := i - n
		if j < 0 || j >= len(xs) {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[j]
	}
	return out
}

// Percentile returns the q-th percentile (0..100) with linear interpolation between
// closest ranks. xs need not be sorted.
func Percentile(xs []float64, q float64) float64 {
	f := Finite(xs)
	if len(f) == 0 {
		return math.NaN()
	}
	sort.Float64s(f)
	return percentileSorted(f, q)
}

func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo < 0 {
		lo = 0
	}
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Quartiles returns the 25th, 50th and 75th percentiles in one sort.
func Quartiles(xs []float64) (p25, median, p75 float64) {
	f := Finite(xs)
	if len(f) == 0 {
		nan := math.NaN()
		return nan, nan, nan
	}
	sort.Float64s(f)
	return percentileSorted(f, 25), percentileSorted(f, 50), percentileSorted(f, 75)
}
