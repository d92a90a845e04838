package features

import (
	"fmt"
	"math"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/services/stats"
)

// Pipeline builds indicator feature frames from one price series.
type Pipeline struct{}

// NewPipeline returns a feature pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

// ResolveIndicators maps requested names onto the catalog. Unknown names are
// returned separately; duplicates are collapsed keeping first-seen order.
func ResolveIndicators(names []string) (known []models.Indicator, ignored []string) {
	seen := make(map[models.Indicator]bool)
	for _, n := range names {
		ind, ok := models.ParseIndicator(n)
		if !ok {
			ignored = append(ignored, n)
			continue
		}
		if seen[ind] {
			continue
		}
		seen[ind] = true
		known = append(known, ind)
	}
	return known, ignored
}

// LagColumn names the shifted variant of an indicator column.
func LagColumn(ind models.Indicator, shift int) string {
	return fmt.Sprintf("%s_lag%d", ind, shift)
}

// Build computes each requested indicator plus its variant lagged by shift bars and
// keeps only the dates where every column is defined.
func (p *Pipeline) Build(series models.PriceSeries, requested []string, shift int) (models.FeatureFrame, error) {
	if shift < 1 {
		return models.FeatureFrame{}, &models.InvalidParameterError{Name: "shift", Value: shift, Reason: "must be >= 1"}
	}
	inds, ignored := ResolveIndicators(requested)
	if len(inds) == 0 {
		return models.FeatureFrame{}, &models.InvalidParameterError{
			Name: "features", Value: requested, Reason: "no supported indicator requested",
		}
	}

	closes := series.Closes()
	cols := make([][]float64, 0, 2*len(inds))
	names := make([]string, 0, 2*len(inds))
	need := 0
	for _, ind := range inds {
		v := Compute(ind, closes)
		cols = append(cols, v, stats.Shift(v, shift))
		names = append(names, ind.String(), LagColumn(ind, shift))
		if w := Warmup(ind) + shift + 1; w > need {
			need = w
		}
	}

	dates := series.Dates()
	frame := models.FeatureFrame{Columns: names, Ignored: ignored}
	for i := range dates {
		row := make([]float64, len(cols))
		defined := true
		for c := range cols {
			if math.IsNaN(cols[c][i]) || math.IsInf(cols[c][i], 0) {
				defined = false
				break
			}
			row[c] = cols[c][i]
		}
		if defined {
			frame.Rows = append(frame.Rows, models.FeatureRow{Date: dates[i], Values: row})
		}
	}
	if len(frame.Rows) == 0 {
		return models.FeatureFrame{}, &models.InsufficientDataError{What: "feature rows", Need: need, Have: series.Len()}
	}
	return frame, nil
}
