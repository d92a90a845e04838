package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/services/statarb"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/metrics"
)

// StatArbUseCase runs the pairs strategy over two fetched series.
type StatArbUseCase struct {
	fetcher *Fetcher
	engine  *statarb.Engine
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewStatArbUseCase(f *Fetcher, e *statarb.Engine, m domrepo.Metrics, l *applogger.Logger) *StatArbUseCase {
	if m == nil {
		m = metrics.Noop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &StatArbUseCase{fetcher: f, engine: e, metrics: m, l: l}
}

func (uc *StatArbUseCase) Run(ctx context.Context, req models.StatArbRequest) (res *StatArbReport, err error) {
	defer observe(uc.metrics, "statarb", time.Now(), &err)

	p := statarb.Params{WindowSize: req.WindowSize, Multiplier: req.Multiplier, StdMultiplier: req.StdMultiplier}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	from, to, err := uc.fetcher.Range(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	var s1, s2 models.PriceSeries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s1, err = uc.fetcher.Fetch(gctx, req.Symbol1, from, to)
		return err
	})
	g.Go(func() (err error) {
		s2, err = uc.fetcher.Fetch(gctx, req.Symbol2, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r, err := uc.engine.Run(s1, s2, p)
	if err != nil {
		return nil, err
	}
	uc.l.Info("statarb complete",
		applogger.String("symbol1", r.Symbol1),
		applogger.String("symbol2", r.Symbol2),
		applogger.Int("dates", len(r.Points)),
		applogger.Int("trades", len(r.Trades)),
		applogger.Bool("open_trade", r.OpenTrade != nil),
		applogger.Float64("final_return", r.FinalReturn),
	)
	return statArbReport(r, from, to), nil
}

func statArbReport(r models.StatArbResult, from, to time.Time) *StatArbReport {
	out := &StatArbReport{
		Symbol1:     r.Symbol1,
		Symbol2:     r.Symbol2,
		From:        day(from),
		To:          day(to),
		Trades:      make([]TradeReport, 0, len(r.Trades)),
		FinalReturn: r.FinalReturn,
		Points:      make([]SpreadPointReport, 0, len(r.Points)),
	}
	for _, t := range r.Trades {
		out.Trades = append(out.Trades, tradeReport(t))
	}
	if r.OpenTrade != nil {
		t := tradeReport(*r.OpenTrade)
		out.OpenTrade = &t
	}
	for _, p := range r.Points {
		out.Points = append(out.Points, SpreadPointReport{
			Date:             day(p.Date),
			Close1:           num(p.Close1),
			Close2:           num(p.Close2),
			Difference:       num(p.Difference),
			MovingAverage:    num(p.MovingAverage),
			Residual:         num(p.Residual),
			UpperBand:        num(p.UpperBand),
			LowerBand:        num(p.LowerBand),
			Position:         p.Position.String(),
			CumulativeReturn: p.CumulativeReturn,
		})
	}
	return out
}
