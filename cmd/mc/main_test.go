package main

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLab/internal/di"
	"QuantLab/internal/domain/models"
	"QuantLab/internal/services/features"
	"QuantLab/internal/services/ml"
	"QuantLab/internal/services/montecarlo"
	"QuantLab/internal/services/statarb"
	"QuantLab/internal/usecase"
)

// synthProvider returns 300 daily bars from the start of any requested range.
type synthProvider struct{}

func (synthProvider) Fetch(_ context.Context, symbol string, from, _ time.Time) (models.PriceSeries, error) {
	base := 50 + float64(symbol[0]%16)*10
	period := 3 + float64(symbol[0]%5)
	bars := make([]models.PriceBar, 300)
	prev := base
	for i := range bars {
		c := base + 4*math.Sin(float64(i)/period) + 0.05*float64(i)
		bars[i] = models.PriceBar{
			Date:   from.AddDate(0, 0, i),
			Open:   prev,
			High:   math.Max(prev, c) + 0.5,
			Low:    math.Min(prev, c) - 0.5,
			Close:  c,
			Volume: 1000,
		}
		prev = c
	}
	return models.NewPriceSeries(symbol, bars)
}

func newToolkit() *di.Toolkit {
	f := usecase.NewFetcher(synthProvider{}, "fake", nil, nil)
	return &di.Toolkit{
		Prices:  usecase.NewPriceUseCase(f, nil),
		Sim:     usecase.NewSimulationUseCase(f, montecarlo.NewSimulator(montecarlo.Config{}), 42, nil, nil),
		Pairs:   usecase.NewStatArbUseCase(f, statarb.NewEngine(), nil, nil),
		Predict: usecase.NewPredictUseCase(f, features.NewPipeline(), ml.NewPredictor(ml.ForestConfig{Seed: 1}), nil, nil),
	}
}

func TestParseArgsDefaults(t *testing.T) {
	o, err := parseArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "simulate", o.action)
	assert.Equal(t, 5000, o.paths)
	assert.Equal(t, 252, o.days)
	assert.Equal(t, "2020-01-01", o.start)
	assert.Equal(t, "", o.end)
	assert.Equal(t, "SPY", o.ticker)
	assert.Equal(t, "SPY", o.ticker2)
	assert.Equal(t, int64(0), o.seed)
	assert.Equal(t, 20, o.window)
	assert.Equal(t, 2.0, o.multiplier)
	assert.Equal(t, 1, o.stdMult)
	assert.Equal(t, "rsi,macd,pctfrom100ma,prevreturn", o.features)
	assert.Equal(t, 1, o.shift)
	assert.Equal(t, 100, o.estimators)
	assert.Equal(t, 0.5, o.threshold)
	assert.Equal(t, 5*time.Minute, o.timeout)
	assert.Empty(t, o.configPath)
	assert.False(t, o.debug)
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, o options)
		wantErr bool
	}{
		{
			name:  "short path count",
			args:  []string{"-n", "100"},
			check: func(t *testing.T, o options) { assert.Equal(t, 100, o.paths) },
		},
		{
			name: "pair flags",
			args: []string{"-action", "statarb", "-ticker", "KO", "-ticker2", "PEP", "-window", "30", "-std_multiplier", "2"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, "statarb", o.action)
				assert.Equal(t, "KO", o.ticker)
				assert.Equal(t, "PEP", o.ticker2)
				assert.Equal(t, 30, o.window)
				assert.Equal(t, 2, o.stdMult)
			},
		},
		{
			name: "config and debug",
			args: []string{"-config", "config/config.yaml", "-debug", "-timeout", "30s"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, "config/config.yaml", o.configPath)
				assert.True(t, o.debug)
				assert.Equal(t, 30*time.Second, o.timeout)
			},
		},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: true},
		{name: "bad number", args: []string{"-num_sim", "many"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestRunDispatch(t *testing.T) {
	tk := newToolkit()

	tests := []struct {
		name     string
		args     []string
		wantType any
		wantKind string
	}{
		{name: "fetch_data", args: []string{"-action", "fetch_data"}, wantType: &usecase.PriceReport{}},
		{name: "simulate", args: []string{"-n", "50", "-time", "10", "-seed", "3"}, wantType: &usecase.SimulationReport{}},
		{name: "compare_stocks", args: []string{"-action", "compare_stocks", "-ticker2", "QQQ", "-n", "50", "-time", "10"}, wantType: &usecase.CompareReport{}},
		{name: "statarb", args: []string{"-action", "statarb", "-ticker2", "QQQ"}, wantType: &usecase.StatArbReport{}},
		{name: "predict", args: []string{"-action", "predict", "-estimators", "5"}, wantType: &usecase.PredictReport{}},
		{name: "statarb same symbol", args: []string{"-action", "statarb"}, wantKind: "invalid_parameter"},
		{name: "bad start date", args: []string{"-action", "fetch_data", "-start", "01/02/2020"}, wantKind: "invalid_parameter"},
		{name: "unknown action", args: []string{"-action", "backtest"}, wantKind: "invalid_parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseArgs(tt.args)
			require.NoError(t, err)

			res, err := run(context.Background(), tk, o)
			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, models.ErrorKind(err))
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, res)
		})
	}
}
