// Package statarb runs a rolling-band pairs trading strategy over two price series.
package statarb

import (
	"math"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/services/stats"
)

// Params configures one pairs run.
type Params struct {
	WindowSize    int     // moving average window of the spread
	Multiplier    float64 // band width in residual standard deviations
	StdMultiplier int     // residual std window is WindowSize*StdMultiplier
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.WindowSize < 1 {
		return &models.InvalidParameterError{Name: "window_size", Value: p.WindowSize, Reason: "must be >= 1"}
	}
	if p.StdMultiplier < 1 {
		return &models.InvalidParameterError{Name: "std_multiplier", Value: p.StdMultiplier, Reason: "must be >= 1"}
	}
	if !(p.Multiplier > 0) || math.IsInf(p.Multiplier, 0) {
		return &models.InvalidParameterError{Name: "multiplier", Value: p.Multiplier, Reason: "must be a finite number > 0"}
	}
	return nil
}

// Engine computes spread bands and replays the position state machine.
type Engine struct{}

// NewEngine returns a pairs engine.
func NewEngine() *Engine { return &Engine{} }

// Run joins the series on date, derives the residual band and walks the dates once.
// Inputs are not modified; every output is written to a fresh per-date slice.
func (e *Engine) Run(s1, s2 models.PriceSeries, p Params) (models.StatArbResult, error) {
	if err := p.Validate(); err != nil {
		return models.StatArbResult{}, err
	}
	a := outerJoin(s1, s2)
	stdWindow := p.WindowSize * p.StdMultiplier
	if len(a.dates) < stdWindow {
		return models.StatArbResult{}, &models.InsufficientDataError{What: "spread band", Need: stdWindow, Have: len(a.dates)}
	}

	n := len(a.dates)
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = a.close1[i] - a.close2[i]
	}
	ma := stats.RollingMean(diff, p.WindowSize)
	resid := make([]float64, n)
	for i := range resid {
		resid[i] = diff[i] - ma[i]
	}
	bandStd := stats.RollingStd(resid, stdWindow)

	points := make([]models.SpreadPoint, n)
	for i := range points {
		points[i] = models.SpreadPoint{
			Date:          a.dates[i],
			Close1:        a.close1[i],
			Close2:        a.close2[i],
			Difference:    diff[i],
			MovingAverage: ma[i],
			Residual:      resid[i],
			BandStd:       bandStd[i],
			UpperBand:     bandStd[i] * p.Multiplier,
			LowerBand:     -bandStd[i] * p.Multiplier,
		}
	}

	m := machine{cumulative: 1}
	for i := range points {
		m.step(&points[i])
	}
	return models.StatArbResult{
		Symbol1:     s1.Symbol,
		Symbol2:     s2.Symbol,
		Points:      points,
		Trades:      m.closed,
		OpenTrade:   m.open,
		FinalReturn: m.cumulative,
	}, nil
}

// machine is the single-position state machine. At most one transition per date.
type machine struct {
	state      models.Position
	open       *models.Trade
	closed     []models.Trade
	cumulative float64
}

func (m *machine) step(pt *models.SpreadPoint) {
	r, up, lo := pt.Residual, pt.UpperBand, pt.LowerBand
	defined := !math.IsNaN(r) && !math.IsNaN(up) && !math.IsNaN(lo)

	if defined {
		switch m.state {
		case models.Flat:
			switch {
			case r > up:
				m.enter(models.ShortSpread, pt)
			case r < lo:
				m.enter(models.LongSpread, pt)
			}
		case models.ShortSpread:
			if r < lo {
				m.exit(pt, (m.open.EntryResidual-r)/m.open.EntryCost)
			}
		case models.LongSpread:
			if r > up {
				m.exit(pt, (r-m.open.EntryResidual)/m.open.EntryCost)
			}
		}
	}
	pt.Position = m.state
	pt.CumulativeReturn = m.cumulative
}

func (m *machine) enter(side models.Position, pt *models.SpreadPoint) {
	m.state = side
	m.open = &models.Trade{
		Side:          side,
		EntryDate:     pt.Date,
		EntryResidual: pt.Residual,
		EntryCost:     pt.Close1 + pt.Close2,
	}
}

func (m *machine) exit(pt *models.SpreadPoint, ret float64) {
	t := *m.open
	t.ExitDate = pt.Date
	t.ExitResidual = pt.Residual
	t.RealizedReturn = ret
	m.closed = append(m.closed, t)
	m.cumulative *= 1 + ret
	m.open = nil
	m.state = models.Flat
}
