package usecase

import (
	"context"
	"time"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/services/features"
	"QuantLab/internal/services/ml"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/metrics"
)

// PredictUseCase builds features for a symbol and scores a forest on held-out dates.
type PredictUseCase struct {
	fetcher   *Fetcher
	pipeline  *features.Pipeline
	predictor *ml.Predictor
	metrics   domrepo.Metrics
	l         *applogger.Logger
}

func NewPredictUseCase(f *Fetcher, pipeline *features.Pipeline, predictor *ml.Predictor, m domrepo.Metrics, l *applogger.Logger) *PredictUseCase {
	if m == nil {
		m = metrics.Noop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &PredictUseCase{fetcher: f, pipeline: pipeline, predictor: predictor, metrics: m, l: l}
}

func (uc *PredictUseCase) Run(ctx context.Context, req models.PredictRequest) (res *PredictReport, err error) {
	defer observe(uc.metrics, "predict", time.Now(), &err)

	from, to, err := uc.fetcher.Range(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	s, err := uc.fetcher.Fetch(ctx, req.Symbol, from, to)
	if err != nil {
		return nil, err
	}

	frame, err := uc.pipeline.Build(s, req.Features, req.Shift)
	if err != nil {
		return nil, err
	}
	if len(frame.Ignored) > 0 {
		uc.l.Warn("unknown indicators ignored", applogger.Strings("ignored", frame.Ignored))
	}
	frame, labels := features.BuildLabels(s, frame)

	start := time.Now()
	r, err := uc.predictor.FitAndScore(ctx, frame, labels, req.Estimators, req.Threshold)
	if err != nil {
		return nil, err
	}
	uc.l.Info("model scored",
		applogger.String("symbol", s.Symbol),
		applogger.Strings("columns", frame.Columns),
		applogger.Int("train", r.TrainSize),
		applogger.Int("test", r.TestSize),
		applogger.Float64("accuracy", r.Accuracy),
		applogger.Int("trades", r.TradeCount),
		applogger.Duration("duration_ms", time.Since(start)),
	)

	out := &PredictReport{
		Symbol:             s.Symbol,
		From:               day(from),
		To:                 day(to),
		Columns:            frame.Columns,
		Ignored:            frame.Ignored,
		Rows:               len(frame.Rows),
		TrainSize:          r.TrainSize,
		TestSize:           r.TestSize,
		Accuracy:           num(r.Accuracy),
		TradeCount:         r.TradeCount,
		StrategyReturn:     last(r.StrategyCumulative) - 1,
		BuyHoldReturn:      last(r.BuyHoldCumulative) - 1,
		StrategyCumulative: r.StrategyCumulative,
		BuyHoldCumulative:  r.BuyHoldCumulative,
		Predictions:        make([]PredictionReport, 0, len(r.Predictions)),
	}
	if out.Ignored == nil {
		out.Ignored = []string{}
	}
	for _, p := range r.Predictions {
		out.Predictions = append(out.Predictions, PredictionReport{
			Date:   day(p.Date),
			Score:  num(p.Score),
			Taken:  p.Taken,
			Target: p.Target,
			Return: p.Return,
		})
	}
	return out, nil
}
