package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"QuantLab/internal/domain/models"
	pkgch "QuantLab/pkg/clickhouse"
	applogger "QuantLab/pkg/logger"
	"QuantLab/pkg/util"
)

// ClickHouseSchema creates the daily bar table used by CHPriceStore.
var ClickHouseSchema = []string{
	`CREATE DATABASE IF NOT EXISTS quantlab`,
	`CREATE TABLE IF NOT EXISTS quantlab.daily_bars (
        date   Date,
        symbol LowCardinality(String),
        open   Float64,
        high   Float64,
        low    Float64,
        close  Float64,
        volume Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, date)`,
}

// CHPriceStore implements PriceStore backed by ClickHouse.
type CHPriceStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client, l *applogger.Logger) *CHPriceStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPriceStore{ch: ch, db: ch.DB(), table: "quantlab.daily_bars", l: l}
}

func (s *CHPriceStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, ClickHouseSchema)
}

func (s *CHPriceStore) Fetch(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	start := time.Now()
	symbol = util.NormalizeSymbol(symbol)
	q := fmt.Sprintf(`
        SELECT toDateTime(date) AS d, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND date >= toDate(?) AND date < toDate(?)
        ORDER BY d ASC
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse fetch query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return models.PriceSeries{}, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		s.l.Error("clickhouse fetch scan error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return models.PriceSeries{}, err
	}
	if len(bars) == 0 {
		return models.PriceSeries{}, &models.DataAbsentError{Symbol: symbol, From: from, To: to}
	}
	s.l.Debug("clickhouse fetch ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return models.NewPriceSeries(symbol, bars)
}

// StoreBars inserts bars in chunks. ReplacingMergeTree collapses re-inserted dates.
func (s *CHPriceStore) StoreBars(ctx context.Context, symbol string, bars []models.PriceBar) error {
	symbol = util.NormalizeSymbol(symbol)
	head := fmt.Sprintf("INSERT INTO %s (date, symbol, open, high, low, close, volume)", s.table)
	for _, chunk := range chunkBars(bars, insertChunkSize) {
		q, args := buildBarInsert(head, "", questionMark, symbol, chunk)
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store bars error",
				applogger.String("symbol", symbol),
				applogger.Int("rows", len(chunk)),
				applogger.Error(err),
			)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	return nil
}

func (s *CHPriceStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHPriceStore) Close() error { return s.ch.Close() }
