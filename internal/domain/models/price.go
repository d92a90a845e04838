package models

import (
	"fmt"
	"sort"
	"time"
)

// PriceBar is one daily OHLCV record.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is a chronologically ordered set of bars with unique dates.
// Derived computations read it and never modify it.
type PriceSeries struct {
	Symbol string
	bars   []PriceBar
}

// NewPriceSeries copies and sorts bars by date. Duplicate dates are rejected.
func NewPriceSeries(symbol string, bars []PriceBar) (PriceSeries, error) {
	cp := make([]PriceBar, len(bars))
	copy(cp, bars)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })
	for i := 1; i < len(cp); i++ {
		if cp[i].Date.Equal(cp[i-1].Date) {
			return PriceSeries{}, &InvalidParameterError{
				Name:   "bars",
				Value:  cp[i].Date.Format(DateLayout),
				Reason: "duplicate date",
			}
		}
	}
	return PriceSeries{Symbol: symbol, bars: cp}, nil
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.bars) }

// Bar returns the i-th bar.
func (s PriceSeries) Bar(i int) PriceBar { return s.bars[i] }

// Bars returns a copy of the bars.
func (s PriceSeries) Bars() []PriceBar {
	out := make([]PriceBar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Closes returns the close column.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Opens returns the open column.
func (s PriceSeries) Opens() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Open
	}
	return out
}

// Dates returns the date index.
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Date
	}
	return out
}

// LastClose returns the close of the most recent bar.
func (s PriceSeries) LastClose() (float64, error) {
	if len(s.bars) == 0 {
		return 0, &InsufficientDataError{What: "price series", Need: 1, Have: 0}
	}
	return s.bars[len(s.bars)-1].Close, nil
}

func (s PriceSeries) String() string {
	if len(s.bars) == 0 {
		return fmt.Sprintf("%s[empty]", s.Symbol)
	}
	return fmt.Sprintf("%s[%s..%s, %d bars]", s.Symbol,
		s.bars[0].Date.Format(DateLayout), s.bars[len(s.bars)-1].Date.Format(DateLayout), len(s.bars))
}

// DateLayout is the calendar date format used across requests and responses.
const DateLayout = "2006-01-02"
