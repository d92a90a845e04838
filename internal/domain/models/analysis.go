package models

import (
	"strings"
	"time"
)

// ReturnStats holds drift and volatility derived from one price series.
type ReturnStats struct {
	Mu    float64 // total-period return, first to last close
	Sigma float64 // sample std of per-bar (close-open)/open
	Bars  int
}

// SimulationResult is the raw terminal price collection of one simulation.
type SimulationResult struct {
	Symbol         string
	S0             float64
	DaysAhead      int
	NumPaths       int
	Stats          ReturnStats
	TerminalPrices []float64
}

// SimulationSummary holds descriptive statistics of the terminal prices.
type SimulationSummary struct {
	S0     float64
	Mean   float64
	Median float64
	P25    float64
	P75    float64
}

// PctChange returns v relative to S0 in percent.
func (s SimulationSummary) PctChange(v float64) float64 {
	return (v - s.S0) / s.S0 * 100
}

// Position is the pairs-trading state on one date.
type Position int

const (
	Flat Position = iota
	ShortSpread
	LongSpread
)

func (p Position) String() string {
	switch p {
	case ShortSpread:
		return "SHORT_SPREAD"
	case LongSpread:
		return "LONG_SPREAD"
	default:
		return "FLAT"
	}
}

// MarshalText renders the position by name.
func (p Position) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// SpreadPoint is the per-date output of the pairs engine. Undefined values are NaN.
type SpreadPoint struct {
	Date             time.Time
	Close1           float64
	Close2           float64
	Difference       float64
	MovingAverage    float64
	Residual         float64
	BandStd          float64
	UpperBand        float64
	LowerBand        float64
	Position         Position
	CumulativeReturn float64
}

// Trade is one round trip on the spread. Open trades have a zero ExitDate.
type Trade struct {
	Side           Position
	EntryDate      time.Time
	EntryResidual  float64
	EntryCost      float64
	ExitDate       time.Time
	ExitResidual   float64
	RealizedReturn float64
}

// IsOpen reports whether the trade has not been closed yet.
func (t Trade) IsOpen() bool { return t.ExitDate.IsZero() }

// StatArbResult is the outcome of one pairs run.
type StatArbResult struct {
	Symbol1     string
	Symbol2     string
	Points      []SpreadPoint
	Trades      []Trade // completed trades, in exit order
	OpenTrade   *Trade
	FinalReturn float64
}

// Indicator is one member of the closed technical indicator catalog.
type Indicator int

const (
	IndicatorRSI Indicator = iota + 1
	IndicatorMACD
	IndicatorPctFrom100MA
	IndicatorPrevReturn
)

var indicatorNames = map[Indicator]string{
	IndicatorRSI:          "rsi",
	IndicatorMACD:         "macd",
	IndicatorPctFrom100MA: "pctfrom100ma",
	IndicatorPrevReturn:   "prevreturn",
}

func (i Indicator) String() string { return indicatorNames[i] }

// ParseIndicator resolves a catalog name, case-insensitively.
func ParseIndicator(name string) (Indicator, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for ind, s := range indicatorNames {
		if s == n {
			return ind, true
		}
	}
	return 0, false
}

// FeatureRow is one fully defined row of engineered features.
type FeatureRow struct {
	Date   time.Time
	Values []float64
}

// FeatureFrame holds rows sharing one column layout.
type FeatureFrame struct {
	Columns []string
	Rows    []FeatureRow
	Ignored []string // requested names outside the catalog
}

// Value looks up a column by name on row i.
func (f FeatureFrame) Value(i int, column string) (float64, bool) {
	for c, name := range f.Columns {
		if name == column {
			return f.Rows[i].Values[c], true
		}
	}
	return 0, false
}

// Labels carries the look-ahead targets aligned with a FeatureFrame.
type Labels struct {
	Target     []float64 // 1 if the next bar closed above its open
	NextReturn []float64 // close[t+1]/open[t+1] - 1
}

// Prediction is the model output for one held-out row.
type Prediction struct {
	Date   time.Time
	Score  float64
	Taken  bool
	Target float64
	Return float64
}

// MLResult scores the threshold strategy against buy and hold on the test rows.
type MLResult struct {
	TrainSize          int
	TestSize           int
	Accuracy           float64 // NaN when no trade was taken
	TradeCount         int
	Predictions        []Prediction
	StrategyCumulative []float64
	BuyHoldCumulative  []float64
}
