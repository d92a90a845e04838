package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/services/features"
	"QuantLab/internal/services/ml"
	"QuantLab/internal/services/montecarlo"
	"QuantLab/internal/services/statarb"
)

type fakeProvider struct {
	bars map[string][]models.PriceBar
}

func (f *fakeProvider) Fetch(_ context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	var out []models.PriceBar
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(from) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return models.PriceSeries{}, &models.DataAbsentError{Symbol: symbol, From: from, To: to}
	}
	return models.NewPriceSeries(symbol, out)
}

type capturePublisher struct {
	results []JobResult
	err     error
}

func (p *capturePublisher) PublishResult(_ context.Context, key string, result any) error {
	if p.err != nil {
		return p.err
	}
	r := result.(JobResult)
	if r.ID != key {
		return errors.New("key mismatch")
	}
	p.results = append(p.results, r)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// wave builds n daily bars with a deterministic oscillating walk.
func wave(n int, base, amp, period float64) []models.PriceBar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]models.PriceBar, n)
	prev := base
	for i := range bars {
		c := base + amp*math.Sin(float64(i)/period) + 0.05*float64(i)
		bars[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   prev,
			High:   math.Max(prev, c) + 0.5,
			Low:    math.Min(prev, c) - 0.5,
			Close:  c,
			Volume: 1000,
		}
		prev = c
	}
	return bars
}

func newFixture() (*fakeProvider, *Fetcher) {
	p := &fakeProvider{bars: map[string][]models.PriceBar{
		"AAA": wave(300, 100, 5, 7),
		"BBB": wave(300, 50, 3, 5),
	}}
	f := NewFetcher(p, "fake", nil, nil)
	f.now = func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) }
	return p, f
}

func TestPriceUseCaseFetch(t *testing.T) {
	_, f := newFixture()
	uc := NewPriceUseCase(f, nil)

	res, err := uc.Fetch(context.Background(), models.PriceRequest{Symbol: "aaa", Start: "2023-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "AAA", res.Symbol)
	assert.Equal(t, 300, res.Count)
	assert.Equal(t, "2024-06-02", res.To)
	require.NotNil(t, res.Stats.Mu)
	require.NotNil(t, res.Stats.Sigma)
	assert.Greater(t, *res.Stats.Sigma, 0.0)
}

func TestPriceUseCaseErrors(t *testing.T) {
	_, f := newFixture()
	uc := NewPriceUseCase(f, nil)

	_, err := uc.Fetch(context.Background(), models.PriceRequest{Symbol: "AAA", Start: "2024-01-01", End: "2023-01-01"})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = uc.Fetch(context.Background(), models.PriceRequest{Symbol: "ZZZ", Start: "2023-01-01"})
	var da *models.DataAbsentError
	require.ErrorAs(t, err, &da)
	assert.Equal(t, "ZZZ", da.Symbol)
}

func TestSimulateDeterministic(t *testing.T) {
	_, f := newFixture()
	uc := NewSimulationUseCase(f, montecarlo.NewSimulator(montecarlo.Config{Workers: 3}), 42, nil, nil)
	req := models.SimulateRequest{Symbol: "AAA", Start: "2023-01-01", Days: 30, Paths: 500}

	var calls int
	a, err := uc.Simulate(context.Background(), req, func(done, total int) {
		calls++
		assert.LessOrEqual(t, done, total)
	})
	require.NoError(t, err)
	b, err := uc.Simulate(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Positive(t, calls)
	assert.Equal(t, int64(42), a.Seed)
	require.NotNil(t, a.Mean)
	assert.Equal(t, *a.Mean, *b.Mean)
	assert.Equal(t, *a.Median, *b.Median)
	assert.LessOrEqual(t, *a.P25, *a.Median)
	assert.LessOrEqual(t, *a.Median, *a.P75)
	assert.InDelta(t, (*a.Mean-a.S0)/a.S0*100, *a.MeanPct, 1e-9)
}

func TestCompareRunsBoth(t *testing.T) {
	_, f := newFixture()
	uc := NewSimulationUseCase(f, montecarlo.NewSimulator(montecarlo.Config{}), 7, nil, nil)

	res, err := uc.Compare(context.Background(), models.CompareRequest{
		Symbol1: "AAA", Symbol2: "BBB", Start: "2023-01-01", Days: 10, Paths: 200,
	})
	require.NoError(t, err)
	assert.Equal(t, "AAA", res.First.Symbol)
	assert.Equal(t, "BBB", res.Second.Symbol)
	assert.NotEqual(t, res.First.S0, res.Second.S0)
	assert.Equal(t, res.First.Paths, res.Second.Paths)

	_, err = uc.Compare(context.Background(), models.CompareRequest{
		Symbol1: "AAA", Symbol2: "NOPE", Start: "2023-01-01", Days: 10, Paths: 200,
	})
	assert.ErrorIs(t, err, models.ErrDataAbsent)
}

func TestStatArbUseCase(t *testing.T) {
	_, f := newFixture()
	uc := NewStatArbUseCase(f, statarb.NewEngine(), nil, nil)

	res, err := uc.Run(context.Background(), models.StatArbRequest{
		Symbol1: "AAA", Symbol2: "BBB", Start: "2023-01-01", WindowSize: 10, Multiplier: 1, StdMultiplier: 1,
	})
	require.NoError(t, err)
	assert.Len(t, res.Points, 300)
	assert.Nil(t, res.Points[0].MovingAverage)
	assert.NotEmpty(t, res.Trades)
	for _, tr := range res.Trades {
		assert.NotEmpty(t, tr.ExitDate)
		assert.NotNil(t, tr.RealizedReturn)
	}
	assert.Equal(t, res.Points[len(res.Points)-1].CumulativeReturn, res.FinalReturn)

	_, err = uc.Run(context.Background(), models.StatArbRequest{
		Symbol1: "AAA", Symbol2: "BBB", Start: "2023-01-01", WindowSize: 0, Multiplier: 1, StdMultiplier: 1,
	})
	assert.ErrorIs(t, err, models.ErrInvalidParameter)
}

func TestPredictUseCase(t *testing.T) {
	_, f := newFixture()
	uc := NewPredictUseCase(f, features.NewPipeline(), ml.NewPredictor(ml.ForestConfig{Seed: 42, Workers: 2}), nil, nil)

	res, err := uc.Run(context.Background(), models.PredictRequest{
		Symbol: "AAA", Start: "2023-01-01",
		Features:   []string{"rsi", "macd", "bogus"},
		Shift:      1,
		Estimators: 10,
		Threshold:  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bogus"}, res.Ignored)
	assert.Equal(t, []string{"rsi", "rsi_lag1", "macd", "macd_lag1"}, res.Columns)
	assert.Equal(t, res.Rows, res.TrainSize+res.TestSize)
	assert.Len(t, res.Predictions, res.TestSize)
	assert.Len(t, res.StrategyCumulative, res.TestSize)
	if res.TradeCount == 0 {
		assert.Nil(t, res.Accuracy)
	}
}

func newJobHandler(pub *capturePublisher) *JobHandler {
	_, f := newFixture()
	h := NewJobHandler("quantlab.jobs",
		NewSimulationUseCase(f, montecarlo.NewSimulator(montecarlo.Config{}), 42, nil, nil),
		NewStatArbUseCase(f, statarb.NewEngine(), nil, nil),
		NewPredictUseCase(f, features.NewPipeline(), ml.NewPredictor(ml.ForestConfig{Seed: 1}), nil, nil),
		pub, time.Minute, nil)
	h.newID = func() string { return "generated" }
	return h
}

func TestJobHandlerSimulate(t *testing.T) {
	pub := &capturePublisher{}
	h := newJobHandler(pub)
	assert.Equal(t, "quantlab.jobs", h.Topic())

	msg := `{"id":"job-1","kind":"simulate","params":{"symbol":"AAA","start":"2023-01-01","days":5,"paths":50}}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))
	require.Len(t, pub.results, 1)
	r := pub.results[0]
	assert.True(t, r.OK)
	assert.Equal(t, "job-1", r.ID)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"paths":50`)
}

func TestJobHandlerAnswersInvalidJobs(t *testing.T) {
	pub := &capturePublisher{}
	h := newJobHandler(pub)

	require.NoError(t, h.Handle(context.Background(), []byte(`not json`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{"kind":"explode"}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{"id":"x","kind":"predict","params":{"threshold":2}}`)))
	require.NoError(t, h.Handle(context.Background(), []byte(`{"id":"y","kind":"statarb","params":{"symbol1":"AAA","symbol2":"AAA"}}`)))

	require.Len(t, pub.results, 4)
	for _, r := range pub.results {
		assert.False(t, r.OK)
		assert.Equal(t, "invalid_parameter", r.ErrorKind)
		assert.Nil(t, r.Result)
	}
	assert.Equal(t, "generated", pub.results[0].ID)
	assert.Equal(t, "generated", pub.results[1].ID)
}

func TestJobHandlerPublishFailureIsReturned(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	h := newJobHandler(pub)
	err := h.Handle(context.Background(), []byte(`{"id":"z","kind":"explode"}`))
	assert.Error(t, err)
}

type stalledProvider struct{}

func (stalledProvider) Fetch(ctx context.Context, symbol string, _, _ time.Time) (models.PriceSeries, error) {
	<-ctx.Done()
	return models.PriceSeries{}, fmt.Errorf("fetch %s: %w", symbol, ctx.Err())
}

func TestJobHandlerReportsDeadline(t *testing.T) {
	pub := &capturePublisher{}
	f := NewFetcher(stalledProvider{}, "stalled", nil, nil)
	h := NewJobHandler("quantlab.jobs",
		NewSimulationUseCase(f, montecarlo.NewSimulator(montecarlo.Config{}), 42, nil, nil),
		NewStatArbUseCase(f, statarb.NewEngine(), nil, nil),
		NewPredictUseCase(f, features.NewPipeline(), ml.NewPredictor(ml.ForestConfig{Seed: 1}), nil, nil),
		pub, 20*time.Millisecond, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"id":"slow","kind":"simulate","params":{"symbol":"AAA"}}`)))
	require.Len(t, pub.results, 1)
	assert.False(t, pub.results[0].OK)
	assert.Equal(t, "deadline_exceeded", pub.results[0].ErrorKind)
}
