package stats

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSampleStd(t *testing.T) {
	got := SampleStd([]float64{1, 2, 3, 4, math.NaN()})
	// var = 1.6667
	if !approx(got, math.Sqrt(5.0/3.0)) {
		t.Fatalf("unexpected std %v", got)
	}
	if !math.IsNaN(SampleStd([]float64{1})) {
		t.Fatalf("expected NaN for single value")
	}
}

func TestRollingMeanWarmupAndGaps(t *testing.T) {
	xs := []float64{1, 2, 3, math.NaN(), 5, 6, 7}
	got := RollingMean(xs, 2)
	want := []float64{math.NaN(), 1.5, 2.5, math.NaN(), math.NaN(), 5.5, 6.5}
	for i := range want {
		if math.IsNaN(want[i]) != math.IsNaN(got[i]) || (!math.IsNaN(want[i]) && !approx(got[i], want[i])) {
			t.Fatalf("idx %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestRollingStdWindowOne(t *testing.T) {
	for i, v := range RollingStd([]float64{1, 2, 3}, 1) {
		if !math.IsNaN(v) {
			t.Fatalf("idx %d: expected NaN, got %v", i, v)
		}
	}
	got := RollingStd([]float64{1, 3, 5}, 3)
	if !approx(got[2], 2) {
		t.Fatalf("unexpected std %v", got[2])
	}
}

func TestPercentileLinear(t *testing.T) {
	xs := []float64{4, 1, 3, 2}
	p25, med, p75 := Quartiles(xs)
	if !approx(p25, 1.75) || !approx(med, 2.5) || !approx(p75, 3.25) {
		t.Fatalf("got %v %v %v", p25, med, p75)
	}
	if got := Percentile([]float64{7}, 25); got != 7 {
		t.Fatalf("single value percentile %v", got)
	}
}

func TestShift(t *testing.T) {
	got := Shift([]float64{1, 2, 3}, 1)
	if !math.IsNaN(got[0]) || got[1] != 1 || got[2] != 2 {
		t.Fatalf("got %v", got)
	}
}
