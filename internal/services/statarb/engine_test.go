package statarb

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"QuantLab/internal/domain/models"
)

var start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func mkSeries(t *testing.T, sym string, closes []float64, skip map[int]bool) models.PriceSeries {
	t.Helper()
	var bars []models.PriceBar
	for i, c := range closes {
		if skip[i] {
			continue
		}
		bars = append(bars, models.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c})
	}
	s, err := models.NewPriceSeries(sym, bars)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	return s
}

func walk(seed uint64, n int, base float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 1))
	out := make([]float64, n)
	p := base
	for i := range out {
		p += rng.NormFloat64()
		out[i] = p
	}
	return out
}

func TestMachineCrossingSequence(t *testing.T) {
	resid := []float64{math.NaN(), 0, 2, 0, -2, 0.5, 2, -0.5, -2, 0}
	want := []models.Position{
		models.Flat, models.Flat, models.ShortSpread, models.ShortSpread, models.Flat,
		models.Flat, models.ShortSpread, models.ShortSpread, models.Flat, models.Flat,
	}
	m := machine{cumulative: 1}
	for i, r := range resid {
		pt := models.SpreadPoint{
			Date:      start.AddDate(0, 0, i),
			Close1:    60,
			Close2:    40,
			Residual:  r,
			UpperBand: 1,
			LowerBand: -1,
		}
		m.step(&pt)
		if pt.Position != want[i] {
			t.Fatalf("date %d: position %s want %s", i, pt.Position, want[i])
		}
		if (pt.Position != models.Flat) != (m.open != nil) {
			t.Fatalf("date %d: position %s with open trade %v", i, pt.Position, m.open)
		}
	}
	if len(m.closed) != 2 || m.open != nil {
		t.Fatalf("expected 2 closed and no open trade, got %d closed open=%v", len(m.closed), m.open)
	}
	// short from 2 to -2 on a 100 pair
	for _, tr := range m.closed {
		if math.Abs(tr.RealizedReturn-0.04) > 1e-12 {
			t.Fatalf("unexpected return %v", tr.RealizedReturn)
		}
	}
	if math.Abs(m.cumulative-1.04*1.04) > 1e-12 {
		t.Fatalf("cumulative %v", m.cumulative)
	}
}

func TestMachineLongSpread(t *testing.T) {
	m := machine{cumulative: 1}
	for i, r := range []float64{-3, 3} {
		pt := models.SpreadPoint{Date: start.AddDate(0, 0, i), Close1: 10, Close2: 10, Residual: r, UpperBand: 1, LowerBand: -1}
		m.step(&pt)
	}
	if len(m.closed) != 1 || m.closed[0].Side != models.LongSpread {
		t.Fatalf("expected one long trade, got %+v", m.closed)
	}
	if math.Abs(m.closed[0].RealizedReturn-0.3) > 1e-12 {
		t.Fatalf("return %v", m.closed[0].RealizedReturn)
	}
}

func TestRunInvariants(t *testing.T) {
	c1 := walk(1, 300, 100)
	c2 := walk(2, 300, 80)
	s1 := mkSeries(t, "AAA", c1, nil)
	s2 := mkSeries(t, "BBB", c2, map[int]bool{150: true})

	res, err := NewEngine().Run(s1, s2, Params{WindowSize: 5, Multiplier: 1, StdMultiplier: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Points) != 300 {
		t.Fatalf("expected outer join of 300 dates, got %d", len(res.Points))
	}
	if !math.IsNaN(res.Points[150].Close2) || !math.IsNaN(res.Points[150].Residual) {
		t.Fatalf("gap did not propagate: %+v", res.Points[150])
	}
	// residual defined from window-1, band from window-1 + 10-1
	if math.IsNaN(res.Points[4].Residual) || !math.IsNaN(res.Points[12].BandStd) || math.IsNaN(res.Points[13].BandStd) {
		t.Fatalf("unexpected warm-up: %v %v %v", res.Points[4].Residual, res.Points[12].BandStd, res.Points[13].BandStd)
	}
	if len(res.Trades) == 0 {
		t.Fatalf("expected trades on a random pair")
	}

	cum := 1.0
	ti := 0
	open := false
	for i, pt := range res.Points {
		if i < 13 && pt.Position != models.Flat {
			t.Fatalf("transition during warm-up at %d", i)
		}
		for ti < len(res.Trades) && res.Trades[ti].ExitDate.Equal(pt.Date) {
			tr := res.Trades[ti]
			want := (tr.ExitResidual - tr.EntryResidual) / tr.EntryCost
			if tr.Side == models.ShortSpread {
				want = -want
			}
			if math.Abs(tr.RealizedReturn-want) > 1e-12 {
				t.Fatalf("trade %d return %v want %v", ti, tr.RealizedReturn, want)
			}
			cum *= 1 + tr.RealizedReturn
			open = false
			ti++
		}
		if ti < len(res.Trades) && res.Trades[ti].EntryDate.Equal(pt.Date) {
			open = true
		}
		if res.OpenTrade != nil && res.OpenTrade.EntryDate.Equal(pt.Date) {
			open = true
		}
		if (pt.Position != models.Flat) != open {
			t.Fatalf("date %d: position %s open=%v", i, pt.Position, open)
		}
		if math.Abs(pt.CumulativeReturn-cum) > 1e-12 {
			t.Fatalf("date %d: cumulative %v want %v", i, pt.CumulativeReturn, cum)
		}
	}
	if math.Abs(res.FinalReturn-cum) > 1e-12 {
		t.Fatalf("final %v want %v", res.FinalReturn, cum)
	}
	if res.OpenTrade != nil && res.Points[len(res.Points)-1].Position == models.Flat {
		t.Fatalf("open trade while flat")
	}
}

func TestRunDoesNotMutateInputs(t *testing.T) {
	c1 := walk(3, 60, 50)
	s1 := mkSeries(t, "AAA", c1, nil)
	s2 := mkSeries(t, "BBB", walk(4, 60, 50), nil)
	before := s1.Bars()
	if _, err := NewEngine().Run(s1, s2, Params{WindowSize: 3, Multiplier: 2, StdMultiplier: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, b := range s1.Bars() {
		if b != before[i] {
			t.Fatalf("bar %d mutated", i)
		}
	}
}

func TestRunRejects(t *testing.T) {
	s1 := mkSeries(t, "AAA", walk(5, 10, 50), nil)
	s2 := mkSeries(t, "BBB", walk(6, 10, 50), nil)
	cases := []struct {
		name string
		p    Params
		want error
	}{
		{"window", Params{WindowSize: 0, Multiplier: 1, StdMultiplier: 1}, models.ErrInvalidParameter},
		{"std multiplier", Params{WindowSize: 2, Multiplier: 1, StdMultiplier: 0}, models.ErrInvalidParameter},
		{"multiplier", Params{WindowSize: 2, Multiplier: 0, StdMultiplier: 1}, models.ErrInvalidParameter},
		{"nan multiplier", Params{WindowSize: 2, Multiplier: math.NaN(), StdMultiplier: 1}, models.ErrInvalidParameter},
		{"too short", Params{WindowSize: 6, Multiplier: 1, StdMultiplier: 2}, models.ErrInsufficientData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEngine().Run(s1, s2, tc.p); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMultiplierScalesBandOnly(t *testing.T) {
	s1 := mkSeries(t, "AAA", walk(5, 80, 100), nil)
	s2 := mkSeries(t, "BBB", walk(6, 80, 60), nil)

	narrow, err := NewEngine().Run(s1, s2, Params{WindowSize: 10, Multiplier: 1, StdMultiplier: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wide, err := NewEngine().Run(s1, s2, Params{WindowSize: 10, Multiplier: 3, StdMultiplier: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range narrow.Points {
		n, w := narrow.Points[i], wide.Points[i]
		if n.Difference != n.Close1-n.Close2 || w.Difference != n.Difference {
			t.Fatalf("date %d: difference %v / %v, want close1-close2 = %v", i, n.Difference, w.Difference, n.Close1-n.Close2)
		}
		if math.IsNaN(n.BandStd) {
			continue
		}
		if w.Residual != n.Residual || w.BandStd != n.BandStd {
			t.Fatalf("date %d: residual or std depends on multiplier", i)
		}
		if math.Abs(w.UpperBand-3*n.UpperBand) > 1e-12 || math.Abs(w.LowerBand-3*n.LowerBand) > 1e-12 {
			t.Fatalf("date %d: bands %v/%v vs %v/%v", i, w.UpperBand, w.LowerBand, n.UpperBand, n.LowerBand)
		}
	}
}
