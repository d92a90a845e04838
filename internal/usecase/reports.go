package usecase

import (
	"math"
	"time"

	"QuantLab/internal/domain/models"
)

// Reports are the wire shapes of use case results. Undefined statistics are
// carried as nil pointers so they encode as JSON null.

type StatsReport struct {
	Mu    *float64 `json:"mu"`
	Sigma *float64 `json:"sigma"`
	Bars  int      `json:"bars"`
}

type PriceReport struct {
	Symbol string            `json:"symbol"`
	From   string            `json:"from"`
	To     string            `json:"to"`
	Count  int               `json:"count"`
	Stats  StatsReport       `json:"stats"`
	Bars   []models.PriceBar `json:"bars"`
}

type SimulationReport struct {
	Symbol    string      `json:"symbol"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Days      int         `json:"days"`
	Paths     int         `json:"paths"`
	Seed      int64       `json:"seed"`
	Stats     StatsReport `json:"stats"`
	S0        float64     `json:"s0"`
	Mean      *float64    `json:"mean"`
	Median    *float64    `json:"median"`
	P25       *float64    `json:"p25"`
	P75       *float64    `json:"p75"`
	MeanPct   *float64    `json:"mean_pct"`
	MedianPct *float64    `json:"median_pct"`
	P25Pct    *float64    `json:"p25_pct"`
	P75Pct    *float64    `json:"p75_pct"`
	Expected  *float64    `json:"expected"`
}

type CompareReport struct {
	First  SimulationReport `json:"first"`
	Second SimulationReport `json:"second"`
}

type SpreadPointReport struct {
	Date             string   `json:"date"`
	Close1           *float64 `json:"close1"`
	Close2           *float64 `json:"close2"`
	Difference       *float64 `json:"difference"`
	MovingAverage    *float64 `json:"moving_average"`
	Residual         *float64 `json:"residual"`
	UpperBand        *float64 `json:"upper_band"`
	LowerBand        *float64 `json:"lower_band"`
	Position         string   `json:"position"`
	CumulativeReturn float64  `json:"cumulative_return"`
}

type TradeReport struct {
	Side           string   `json:"side"`
	EntryDate      string   `json:"entry_date"`
	EntryResidual  float64  `json:"entry_residual"`
	ExitDate       string   `json:"exit_date,omitempty"`
	ExitResidual   *float64 `json:"exit_residual,omitempty"`
	RealizedReturn *float64 `json:"realized_return,omitempty"`
}

type StatArbReport struct {
	Symbol1     string              `json:"symbol1"`
	Symbol2     string              `json:"symbol2"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Trades      []TradeReport       `json:"trades"`
	OpenTrade   *TradeReport        `json:"open_trade"`
	FinalReturn float64             `json:"final_return"`
	Points      []SpreadPointReport `json:"points"`
}

type PredictionReport struct {
	Date   string   `json:"date"`
	Score  *float64 `json:"score"`
	Taken  bool     `json:"taken"`
	Target float64  `json:"target"`
	Return float64  `json:"return"`
}

type PredictReport struct {
	Symbol             string             `json:"symbol"`
	From               string             `json:"from"`
	To                 string             `json:"to"`
	Columns            []string           `json:"columns"`
	Ignored            []string           `json:"ignored"`
	Rows               int                `json:"rows"`
	TrainSize          int                `json:"train_size"`
	TestSize           int                `json:"test_size"`
	Accuracy           *float64           `json:"accuracy"`
	TradeCount         int                `json:"trade_count"`
	StrategyReturn     float64            `json:"strategy_return"`
	BuyHoldReturn      float64            `json:"buy_hold_return"`
	StrategyCumulative []float64          `json:"strategy_cumulative"`
	BuyHoldCumulative  []float64          `json:"buy_hold_cumulative"`
	Predictions        []PredictionReport `json:"predictions"`
}

// num maps NaN and ±Inf to nil.
func num(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func statsReport(st models.ReturnStats) StatsReport {
	return StatsReport{Mu: num(st.Mu), Sigma: num(st.Sigma), Bars: st.Bars}
}

func tradeReport(t models.Trade) TradeReport {
	r := TradeReport{
		Side:          t.Side.String(),
		EntryDate:     day(t.EntryDate),
		EntryResidual: t.EntryResidual,
	}
	if !t.IsOpen() {
		r.ExitDate = day(t.ExitDate)
		r.ExitResidual = num(t.ExitResidual)
		r.RealizedReturn = num(t.RealizedReturn)
	}
	return r
}

// last returns the final element of xs, or 1 for an empty cumulative series.
func last(xs []float64) float64 {
	if len(xs) == 0 {
		return 1
	}
	return xs[len(xs)-1]
}
