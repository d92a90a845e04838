package repository

import (
	"context"
	"time"

	"QuantLab/internal/domain/models"
)

// PriceSeriesProvider supplies daily bars for symbol in [from, to).
// Zero bars must be reported as *models.DataAbsentError, never as an empty series.
type PriceSeriesProvider interface {
	Fetch(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
}

// PriceStore is a provider backed by a database that can also persist bars.
type PriceStore interface {
	PriceSeriesProvider
	Init(ctx context.Context) error
	StoreBars(ctx context.Context, symbol string, bars []models.PriceBar) error
	Health(ctx context.Context) error
	Close() error
}
