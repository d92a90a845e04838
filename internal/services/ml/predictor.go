package ml

import (
	"context"
	"math"

	"QuantLab/internal/domain/models"
)

// testFraction is the share of rows held out at the end of the timeline.
const testFraction = 0.2

// ChronologicalSplit returns train and test sizes: the last ceil(0.2*n) rows are test.
func ChronologicalSplit(n int) (train, test int) {
	test = int(math.Ceil(testFraction * float64(n)))
	return n - test, test
}

// Predictor fits a forest on the early rows and scores the late rows.
type Predictor struct {
	cfg ForestConfig
}

// NewPredictor creates a predictor. cfg.NumEstimators is overridden per call.
func NewPredictor(cfg ForestConfig) *Predictor {
	return &Predictor{cfg: cfg}
}

// FitAndScore trains on the chronological prefix and takes a trade on every test row
// scoring above threshold.
func (p *Predictor) FitAndScore(ctx context.Context, frame models.FeatureFrame, labels models.Labels, numEstimators int, threshold float64) (models.MLResult, error) {
	if numEstimators < 1 {
		return models.MLResult{}, &models.InvalidParameterError{Name: "num_estimators", Value: numEstimators, Reason: "must be >= 1"}
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return models.MLResult{}, &models.InvalidParameterError{Name: "threshold", Value: threshold, Reason: "must be within [0, 1]"}
	}
	n := len(frame.Rows)
	if len(labels.Target) != n || len(labels.NextReturn) != n {
		return models.MLResult{}, &models.InvalidParameterError{Name: "labels", Value: len(labels.Target), Reason: "must align with feature rows"}
	}
	nTrain, nTest := ChronologicalSplit(n)
	if nTrain < 1 || nTest < 1 {
		return models.MLResult{}, &models.InsufficientDataError{What: "model rows", Need: 2, Have: n}
	}

	x := make([][]float64, nTrain)
	for i := range x {
		x[i] = frame.Rows[i].Values
	}
	cfg := p.cfg
	cfg.NumEstimators = numEstimators
	forest, err := FitForest(ctx, x, labels.Target[:nTrain], cfg)
	if err != nil {
		return models.MLResult{}, err
	}

	res := models.MLResult{
		TrainSize:          nTrain,
		TestSize:           nTest,
		Predictions:        make([]models.Prediction, nTest),
		StrategyCumulative: make([]float64, nTest),
		BuyHoldCumulative:  make([]float64, nTest),
	}
	hits := 0.0
	strat, hold := 1.0, 1.0
	for j := 0; j < nTest; j++ {
		i := nTrain + j
		score := forest.Predict(frame.Rows[i].Values)
		r := labels.NextReturn[i]
		taken := score > threshold
		if taken {
			res.TradeCount++
			hits += labels.Target[i]
			strat *= 1 + r
		}
		hold *= 1 + r
		res.Predictions[j] = models.Prediction{
			Date:   frame.Rows[i].Date,
			Score:  score,
			Taken:  taken,
			Target: labels.Target[i],
			Return: r,
		}
		res.StrategyCumulative[j] = strat
		res.BuyHoldCumulative[j] = hold
	}
	res.Accuracy = math.NaN()
	if res.TradeCount > 0 {
		res.Accuracy = hits / float64(res.TradeCount)
	}
	return res, nil
}
