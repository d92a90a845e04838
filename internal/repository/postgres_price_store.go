package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"QuantLab/internal/domain/models"
	applogger "QuantLab/pkg/logger"
	pkgpg "QuantLab/pkg/postgres"
	"QuantLab/pkg/util"
)

// PostgresSchema creates the daily bar table used by PGPriceStore.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS daily_bars (
        date   DATE NOT NULL,
        symbol TEXT NOT NULL,
        open   DOUBLE PRECISION NOT NULL,
        high   DOUBLE PRECISION NOT NULL,
        low    DOUBLE PRECISION NOT NULL,
        close  DOUBLE PRECISION NOT NULL,
        volume DOUBLE PRECISION NOT NULL,
        PRIMARY KEY (symbol, date)
    )`,
}

const pgUpsertTail = `ON CONFLICT (symbol, date) DO UPDATE SET
        open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
        close = EXCLUDED.close, volume = EXCLUDED.volume`

// PGPriceStore implements PriceStore backed by PostgreSQL.
type PGPriceStore struct {
	pg *pkgpg.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewPGPriceStore(pg *pkgpg.Client, l *applogger.Logger) *PGPriceStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &PGPriceStore{pg: pg, db: pg.DB(), l: l}
}

func (s *PGPriceStore) Init(ctx context.Context) error {
	for _, stmt := range PostgresSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PGPriceStore) Fetch(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	start := time.Now()
	symbol = util.NormalizeSymbol(symbol)
	const q = `
        SELECT date::timestamptz, open, high, low, close, volume
        FROM daily_bars
        WHERE symbol = $1 AND date >= $2::date AND date < $3::date
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("postgres fetch query error",
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return models.PriceSeries{}, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return models.PriceSeries{}, err
	}
	if len(bars) == 0 {
		return models.PriceSeries{}, &models.DataAbsentError{Symbol: symbol, From: from, To: to}
	}
	s.l.Debug("postgres fetch ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return models.NewPriceSeries(symbol, bars)
}

// StoreBars upserts bars inside one transaction.
func (s *PGPriceStore) StoreBars(ctx context.Context, symbol string, bars []models.PriceBar) error {
	symbol = util.NormalizeSymbol(symbol)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const head = "INSERT INTO daily_bars (date, symbol, open, high, low, close, volume)"
	for _, chunk := range chunkBars(bars, insertChunkSize) {
		q, args := buildBarInsert(head, pgUpsertTail, dollarN, symbol, chunk)
		if q == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("postgres store bars error",
				applogger.String("symbol", symbol),
				applogger.Int("rows", len(chunk)),
				applogger.Error(err),
			)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PGPriceStore) Health(ctx context.Context) error { return s.pg.Health(ctx) }

func (s *PGPriceStore) Close() error { return s.pg.Close() }
