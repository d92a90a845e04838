package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/service/cache"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/util"
)

// CachingProvider memoizes another provider's bars in a byte cache.
// Cache failures are logged and fall through to the wrapped provider.
type CachingProvider struct {
	next    domrepo.PriceSeriesProvider
	cache   cache.BytesCache
	ttl     time.Duration
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewCachingProvider(next domrepo.PriceSeriesProvider, c cache.BytesCache, ttl time.Duration, m domrepo.Metrics, l *applogger.Logger) *CachingProvider {
	if l == nil {
		l = applogger.Nop()
	}
	return &CachingProvider{next: next, cache: c, ttl: ttl, metrics: m, l: l}
}

// PriceCacheKey is the cache key for symbol over [from, to).
func PriceCacheKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("prices:%s:%s:%s",
		util.NormalizeSymbol(symbol), from.UTC().Format(models.DateLayout), to.UTC().Format(models.DateLayout))
}

func (p *CachingProvider) Fetch(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	symbol = util.NormalizeSymbol(symbol)
	key := PriceCacheKey(symbol, from, to)

	if b, ok, err := p.cache.GetBytes(ctx, key); err != nil {
		p.l.Warn("price cache get failed", applogger.String("key", key), applogger.Error(err))
	} else if ok {
		var bars []models.PriceBar
		if err := json.Unmarshal(b, &bars); err == nil && len(bars) > 0 {
			if s, err := models.NewPriceSeries(symbol, bars); err == nil {
				p.record(true)
				return s, nil
			}
		}
		p.l.Warn("price cache entry corrupt", applogger.String("key", key))
	}
	p.record(false)

	s, err := p.next.Fetch(ctx, symbol, from, to)
	if err != nil {
		return models.PriceSeries{}, err
	}

	b, err := json.Marshal(s.Bars())
	if err == nil {
		err = p.cache.SetBytes(ctx, key, b, p.ttl)
	}
	if err != nil {
		p.l.Warn("price cache set failed", applogger.String("key", key), applogger.Error(err))
	}
	return s, nil
}

func (p *CachingProvider) record(hit bool) {
	if p.metrics != nil {
		p.metrics.RecordCacheLookup(hit)
	}
}
