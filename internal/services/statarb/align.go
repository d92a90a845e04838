package statarb

import (
	"math"
	"sort"
	"time"

	"QuantLab/internal/domain/models"
)

// aligned holds two close columns over the union of both date indexes.
type aligned struct {
	dates  []time.Time
	close1 []float64
	close2 []float64
}

// outerJoin merges two series on date. A date missing on one side is NaN there.
func outerJoin(s1, s2 models.PriceSeries) aligned {
	byDate := make(map[int64][2]float64, s1.Len()+s2.Len())
	keys := make(map[int64]time.Time, s1.Len()+s2.Len())
	nan := math.NaN()
	for i := 0; i < s1.Len(); i++ {
		b := s1.Bar(i)
		k := b.Date.Unix()
		byDate[k] = [2]float64{b.Close, nan}
		keys[k] = b.Date
	}
	for i := 0; i < s2.Len(); i++ {
		b := s2.Bar(i)
		k := b.Date.Unix()
		v, ok := byDate[k]
		if !ok {
			v = [2]float64{nan, nan}
			keys[k] = b.Date
		}
		v[1] = b.Close
		byDate[k] = v
	}

	order := make([]int64, 0, len(keys))
	for k := range keys {
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := aligned{
		dates:  make([]time.Time, len(order)),
		close1: make([]float64, len(order)),
		close2: make([]float64, len(order)),
	}
	for i, k := range order {
		out.dates[i] = keys[k]
		out.close1[i] = byDate[k][0]
		out.close2[i] = byDate[k][1]
	}
	return out
}
