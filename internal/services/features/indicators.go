package features

import (
	"math"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/services/stats"
)

const (
	rsiPeriod = 14
	macdFast  = 12
	macdSlow  = 26
	trendSMA  = 100
)

// Compute evaluates one catalog indicator over closes. Warm-up positions are NaN.
func Compute(ind models.Indicator, closes []float64) []float64 {
	switch ind {
	case models.IndicatorRSI:
		return RSI(closes, rsiPeriod)
	case models.IndicatorMACD:
		return MACD(closes, macdFast, macdSlow)
	case models.IndicatorPctFrom100MA:
		return PctFromSMA(closes, trendSMA)
	case models.IndicatorPrevReturn:
		return PctChange(closes)
	default:
		out := make([]float64, len(closes))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
}

// Warmup is the number of leading NaN positions Compute produces for ind.
func Warmup(ind models.Indicator) int {
	switch ind {
	case models.IndicatorRSI:
		return rsiPeriod
	case models.IndicatorMACD:
		return macdSlow - 1
	case models.IndicatorPctFrom100MA:
		return trendSMA - 1
	default:
		return 1
	}
}

// RSI is 100 - 100/(1+RS) where RS is the rolling mean gain over the rolling mean
// loss of close-to-close changes. No losses gives 100; no movement at all is NaN.
func RSI(closes []float64, period int) []float64 {
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			gains[i], losses[i] = math.NaN(), math.NaN()
			continue
		}
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}
	avgGain := stats.RollingMean(gains, period)
	avgLoss := stats.RollingMean(losses, period)

	out := make([]float64, len(closes))
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
			out[i] = math.NaN()
		case l == 0 && g == 0:
			out[i] = math.NaN()
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

// EMA is an exponential moving average seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period < 1 || len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[period-1] = ema
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		out[i] = ema
	}
	return out
}

// MACD is EMA(fast) - EMA(slow).
func MACD(closes []float64, fast, slow int) []float64 {
	f, s := EMA(closes, fast), EMA(closes, slow)
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = f[i] - s[i]
	}
	return out
}

// PctFromSMA is (close - SMA)/SMA.
func PctFromSMA(closes []float64, period int) []float64 {
	sma := stats.RollingMean(closes, period)
	out := make([]float64, len(closes))
	for i := range out {
		if sma[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (closes[i] - sma[i]) / sma[i]
	}
	return out
}
