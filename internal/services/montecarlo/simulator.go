// Package montecarlo projects terminal price distributions from historical return statistics.
package montecarlo

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/services/features"
	"QuantLab/internal/services/stats"
)

// Config controls the worker pool.
type Config struct {
	Workers   int // 0 means GOMAXPROCS
	ChunkSize int // paths per task, 0 means 256
}

// ProgressFunc receives the number of completed paths. Calls are serialized.
type ProgressFunc func(completed, total int)

type runOptions struct {
	seed     int64
	progress ProgressFunc
}

// Option tunes a single simulation call.
type Option func(*runOptions)

// WithSeed fixes the master seed. Equal seeds give identical terminal prices.
func WithSeed(seed int64) Option { return func(o *runOptions) { o.seed = seed } }

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option { return func(o *runOptions) { o.progress = fn } }

// Simulator runs independent price paths on a bounded pool of goroutines.
type Simulator struct {
	workers   int
	chunkSize int
}

// NewSimulator creates a simulator.
func NewSimulator(cfg Config) *Simulator {
	w := cfg.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	c := cfg.ChunkSize
	if c <= 0 {
		c = 256
	}
	return &Simulator{workers: w, chunkSize: c}
}

// Simulate projects numPaths prices daysAhead bars past the last close of series.
// Each step applies S[t+1] = S[t] + S[t]*(mu/len(series) + sigma*Z) with Z ~ N(0,1).
func (s *Simulator) Simulate(ctx context.Context, series models.PriceSeries, daysAhead, numPaths int, opts ...Option) (models.SimulationResult, error) {
	if daysAhead < 1 {
		return models.SimulationResult{}, &models.InvalidParameterError{Name: "days_ahead", Value: daysAhead, Reason: "must be >= 1"}
	}
	if numPaths < 1 {
		return models.SimulationResult{}, &models.InvalidParameterError{Name: "num_paths", Value: numPaths, Reason: "must be >= 1"}
	}
	st, err := features.ReturnStatistics(series)
	if err != nil {
		return models.SimulationResult{}, err
	}
	s0, _ := series.LastClose()
	if err := checkFinite("mu", st.Mu); err != nil {
		return models.SimulationResult{}, err
	}
	if err := checkFinite("sigma", st.Sigma); err != nil {
		return models.SimulationResult{}, err
	}
	if err := checkFinite("last close", s0); err != nil {
		return models.SimulationResult{}, err
	}

	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	prices, err := s.run(ctx, s0, st.Mu/float64(st.Bars), st.Sigma, daysAhead, numPaths, o)
	if err != nil {
		return models.SimulationResult{}, err
	}
	return models.SimulationResult{
		Symbol:         series.Symbol,
		S0:             s0,
		DaysAhead:      daysAhead,
		NumPaths:       numPaths,
		Stats:          st,
		TerminalPrices: prices,
	}, nil
}

func (s *Simulator) run(ctx context.Context, s0, muDaily, sigma float64, days, paths int, o runOptions) ([]float64, error) {
	out := make([]float64, paths)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var mu sync.Mutex
	completed := 0

	for start := 0; start < paths; start += s.chunkSize {
		end := min(start+s.chunkSize, paths)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = path(pathRNG(o.seed, i), s0, muDaily, sigma, days)
			}
			if o.progress != nil {
				mu.Lock()
				completed += end - start
				o.progress(completed, paths)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// pathRNG gives path i its own stream, so results do not depend on scheduling.
func pathRNG(seed int64, i int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), splitmix(uint64(i))))
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func path(rng *rand.Rand, s0, muDaily, sigma float64, days int) float64 {
	p := s0
	for t := 0; t < days; t++ {
		p += p * (muDaily + sigma*rng.NormFloat64())
	}
	return p
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &models.UndefinedStatisticError{Name: name, Reason: "not a finite number"}
	}
	return nil
}

// Summarize reports mean, median and quartiles of the terminal prices.
func Summarize(r models.SimulationResult) models.SimulationSummary {
	p25, med, p75 := stats.Quartiles(r.TerminalPrices)
	return models.SimulationSummary{
		S0:     r.S0,
		Mean:   stats.Mean(r.TerminalPrices),
		Median: med,
		P25:    p25,
		P75:    p75,
	}
}

// ExpectedTerminal is the closed-form mean of the recursion: S0*(1+muDaily)^days.
func ExpectedTerminal(s0, muDaily float64, days int) float64 {
	return s0 * math.Pow(1+muDaily, float64(days))
}
