package usecase

import (
	"context"
	"time"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/services/features"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/metrics"
	"QuantLab/pkg/util"
)

// Fetcher resolves request dates and loads a series from the configured provider.
type Fetcher struct {
	provider domrepo.PriceSeriesProvider
	source   string
	metrics  domrepo.Metrics
	l        *applogger.Logger
	now      func() time.Time
}

func NewFetcher(provider domrepo.PriceSeriesProvider, source string, m domrepo.Metrics, l *applogger.Logger) *Fetcher {
	if m == nil {
		m = metrics.Noop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Fetcher{provider: provider, source: source, metrics: m, l: l, now: time.Now}
}

// Range parses start/end into a [from, to) window. An empty end means through today.
func (f *Fetcher) Range(start, end string) (time.Time, time.Time, error) {
	from, to, err := util.DateRange(start, end, f.now())
	if err != nil {
		return time.Time{}, time.Time{}, &models.InvalidParameterError{Name: "date range", Value: start + ".." + end, Reason: err.Error()}
	}
	return from, to, nil
}

// Fetch loads symbol over [from, to) and logs the period return and volatility.
func (f *Fetcher) Fetch(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	symbol = util.NormalizeSymbol(symbol)
	f.l.Info("fetching prices",
		applogger.String("symbol", symbol),
		applogger.Date("from", from),
		applogger.Date("to", to),
	)
	s, err := f.provider.Fetch(ctx, symbol, from, to)
	if err != nil {
		f.metrics.RecordFetch(f.source, models.ErrorKind(err))
		f.l.Error("fetch prices failed", applogger.String("symbol", symbol), applogger.Error(err))
		return models.PriceSeries{}, err
	}
	f.metrics.RecordFetch(f.source, "ok")

	fields := []applogger.Field{
		applogger.String("symbol", symbol),
		applogger.Int("bars", s.Len()),
	}
	if st, err := features.ReturnStatistics(s); err == nil {
		fields = append(fields,
			applogger.Float64("period_return", st.Mu),
			applogger.Float64("volatility", st.Sigma),
		)
	}
	if c, err := s.LastClose(); err == nil {
		f.metrics.RecordLastPrice(symbol, c)
	}
	f.l.Info("fetched prices", fields...)
	return s, nil
}

// PriceUseCase serves raw bars with their return statistics.
type PriceUseCase struct {
	fetcher *Fetcher
	metrics domrepo.Metrics
}

func NewPriceUseCase(f *Fetcher, m domrepo.Metrics) *PriceUseCase {
	if m == nil {
		m = metrics.Noop{}
	}
	return &PriceUseCase{fetcher: f, metrics: m}
}

func (uc *PriceUseCase) Fetch(ctx context.Context, req models.PriceRequest) (res *PriceReport, err error) {
	defer observe(uc.metrics, "prices", time.Now(), &err)

	from, to, err := uc.fetcher.Range(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	s, err := uc.fetcher.Fetch(ctx, req.Symbol, from, to)
	if err != nil {
		return nil, err
	}
	st, err := features.ReturnStatistics(s)
	if err != nil {
		return nil, err
	}
	return &PriceReport{
		Symbol: s.Symbol,
		From:   day(from),
		To:     day(to),
		Count:  s.Len(),
		Stats:  statsReport(st),
		Bars:   s.Bars(),
	}, nil
}

// observe records duration and error kind of one use case call.
func observe(m domrepo.Metrics, kind string, start time.Time, err *error) {
	m.RecordAnalysis(kind, time.Since(start).Seconds(), models.ErrorKind(*err))
}
