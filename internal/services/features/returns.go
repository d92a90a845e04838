package features

import (
	"math"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/services/stats"
)

// BarReturns computes the intraday simple return (close-open)/open for every bar.
// A zero open yields NaN.
func BarReturns(series models.PriceSeries) []float64 {
	out := make([]float64, series.Len())
	for i := range out {
		b := series.Bar(i)
		if b.Open == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (b.Close - b.Open) / b.Open
	}
	return out
}

// ReturnStatistics derives the total-period drift and the sample volatility of
// per-bar returns. Mu is NaN when the first close is zero; sigma is NaN with fewer
// than two defined returns.
func ReturnStatistics(series models.PriceSeries) (models.ReturnStats, error) {
	n := series.Len()
	if n == 0 {
		return models.ReturnStats{}, &models.InsufficientDataError{What: "return statistics", Need: 1, Have: 0}
	}
	first, last := series.Bar(0).Close, series.Bar(n-1).Close
	mu := math.NaN()
	if first != 0 {
		mu = (last - first) / first
	}
	return models.ReturnStats{
		Mu:    mu,
		Sigma: stats.SampleStd(BarReturns(series)),
		Bars:  n,
	}, nil
}

// PctChange returns xs[i]/xs[i-1]-1 with NaN at the head and on zero divisors.
func PctChange(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i == 0 || xs[i-1] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i]/xs[i-1] - 1
	}
	return out
}
