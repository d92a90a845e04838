package features

import (
	"math"
	"time"

	"QuantLab/internal/domain/models"
)

// BuildLabels attaches look-ahead targets to a feature frame. The target of the row at
// date t is 1 when bar t+1 closes above its open. Rows without a defined next bar are
// dropped from the returned frame. Labels never feed back into feature columns.
func BuildLabels(series models.PriceSeries, frame models.FeatureFrame) (models.FeatureFrame, models.Labels) {
	index := make(map[time.Time]int, series.Len())
	for i, d := range series.Dates() {
		index[d] = i
	}

	out := models.FeatureFrame{Columns: frame.Columns, Ignored: frame.Ignored}
	var labels models.Labels
	for _, row := range frame.Rows {
		i, ok := index[row.Date]
		if !ok || i+1 >= series.Len() {
			continue
		}
		next := series.Bar(i + 1)
		if next.Open == 0 || math.IsNaN(next.Open) || math.IsNaN(next.Close) {
			continue
		}
		ratio := next.Close / next.Open
		target := 0.0
		if ratio > 1 {
			target = 1
		}
		out.Rows = append(out.Rows, row)
		labels.Target = append(labels.Target, target)
		labels.NextReturn = append(labels.NextReturn, ratio-1)
	}
	return out, labels
}
