package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/services/montecarlo"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/metrics"
)

// SimulationUseCase runs Monte Carlo forecasts on fetched prices.
type SimulationUseCase struct {
	fetcher     *Fetcher
	sim         *montecarlo.Simulator
	metrics     domrepo.Metrics
	l           *applogger.Logger
	defaultSeed int64
}

func NewSimulationUseCase(f *Fetcher, sim *montecarlo.Simulator, defaultSeed int64, m domrepo.Metrics, l *applogger.Logger) *SimulationUseCase {
	if m == nil {
		m = metrics.Noop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SimulationUseCase{fetcher: f, sim: sim, metrics: m, l: l, defaultSeed: defaultSeed}
}

// Simulate forecasts one symbol. progress may be nil.
func (uc *SimulationUseCase) Simulate(ctx context.Context, req models.SimulateRequest, progress montecarlo.ProgressFunc) (res *SimulationReport, err error) {
	defer observe(uc.metrics, "simulate", time.Now(), &err)

	from, to, err := uc.fetcher.Range(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	return uc.simulate(ctx, req.Symbol, from, to, req.Days, req.Paths, uc.seed(req.Seed), progress)
}

// Compare forecasts two symbols concurrently with the same horizon and path count.
func (uc *SimulationUseCase) Compare(ctx context.Context, req models.CompareRequest) (res *CompareReport, err error) {
	defer observe(uc.metrics, "compare", time.Now(), &err)

	from, to, err := uc.fetcher.Range(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	seed := uc.seed(req.Seed)

	var first, second *SimulationReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := uc.simulate(gctx, req.Symbol1, from, to, req.Days, req.Paths, seed, nil)
		first = r
		return err
	})
	g.Go(func() error {
		r, err := uc.simulate(gctx, req.Symbol2, from, to, req.Days, req.Paths, seed, nil)
		second = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &CompareReport{First: *first, Second: *second}, nil
}

func (uc *SimulationUseCase) seed(s int64) int64 {
	if s == 0 {
		return uc.defaultSeed
	}
	return s
}

func (uc *SimulationUseCase) simulate(ctx context.Context, symbol string, from, to time.Time, days, paths int, seed int64, progress montecarlo.ProgressFunc) (*SimulationReport, error) {
	s, err := uc.fetcher.Fetch(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	uc.l.Info("running simulation",
		applogger.String("symbol", s.Symbol),
		applogger.Int("days", days),
		applogger.Int("paths", paths),
		applogger.Int64("seed", seed),
	)
	start := time.Now()
	opts := []montecarlo.Option{montecarlo.WithSeed(seed)}
	if progress != nil {
		opts = append(opts, montecarlo.WithProgress(progress))
	}
	r, err := uc.sim.Simulate(ctx, s, days, paths, opts...)
	if err != nil {
		uc.l.Error("simulation failed", applogger.String("symbol", s.Symbol), applogger.Error(err))
		return nil, err
	}
	uc.metrics.RecordPaths(paths)

	sum := montecarlo.Summarize(r)
	uc.l.Info("simulation complete",
		applogger.String("symbol", s.Symbol),
		applogger.Float64("s0", sum.S0),
		applogger.Float64("mean", sum.Mean),
		applogger.Float64("median", sum.Median),
		applogger.Float64("p25", sum.P25),
		applogger.Float64("p75", sum.P75),
		applogger.Duration("duration_ms", time.Since(start)),
	)

	return &SimulationReport{
		Symbol:    s.Symbol,
		From:      day(from),
		To:        day(to),
		Days:      days,
		Paths:     paths,
		Seed:      seed,
		Stats:     statsReport(r.Stats),
		S0:        sum.S0,
		Mean:      num(sum.Mean),
		Median:    num(sum.Median),
		P25:       num(sum.P25),
		P75:       num(sum.P75),
		MeanPct:   num(sum.PctChange(sum.Mean)),
		MedianPct: num(sum.PctChange(sum.Median)),
		P25Pct:    num(sum.PctChange(sum.P25)),
		P75Pct:    num(sum.PctChange(sum.P75)),
		Expected:  num(montecarlo.ExpectedTerminal(sum.S0, r.Stats.Mu/float64(r.Stats.Bars), days)),
	}, nil
}
