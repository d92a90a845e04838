// Package twelvedata fetches daily bars from the Twelve Data REST API.
package twelvedata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/domain/repository"
	xhttp "QuantLab/pkg/http"
	"QuantLab/pkg/logger"
)

const maxOutputSize = "5000"

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	Retries     int  // extra attempts on 429 and 5xx
	RoundPrices bool // round OHLC to cents
}

type timeSeriesResponse struct {
	Status  string       `json:"status"`
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Values  []valueEntry `json:"values"`
}

type valueEntry struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// Client implements repository.PriceSeriesProvider.
type Client struct {
	cfg  Config
	http *xhttp.Client
	log  *logger.Logger
}

var _ repository.PriceSeriesProvider = (*Client)(nil)

func NewClient(cfg Config, log *logger.Logger, opts ...xhttp.ClientOption) *Client {
	base := []xhttp.ClientOption{xhttp.WithRetry(cfg.Retries, time.Second)}
	if cfg.Timeout > 0 {
		base = append(base, xhttp.WithTimeout(cfg.Timeout))
	}
	opts = append(base, opts...)
	return &Client{cfg: cfg, http: xhttp.NewClient(opts...), log: log}
}

// Fetch returns the daily bars of symbol dated in [from, to).
func (c *Client) Fetch(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	var body timeSeriesResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    strings.TrimRight(c.cfg.BaseURL, "/") + "/time_series",
		QueryParams: map[string][]string{
			"symbol":     {symbol},
			"interval":   {"1day"},
			"start_date": {from.Format(models.DateLayout)},
			"end_date":   {to.AddDate(0, 0, -1).Format(models.DateLayout)},
			"order":      {"ASC"},
			"outputsize": {maxOutputSize},
			"apikey":     {c.cfg.APIKey},
		},
	}, &body)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == 404 {
			return models.PriceSeries{}, &models.DataAbsentError{Symbol: symbol, From: from, To: to}
		}
		return models.PriceSeries{}, fmt.Errorf("twelvedata time_series %s: %w", symbol, err)
	}
	if body.Status == "error" {
		if body.Code == 400 || body.Code == 404 || strings.Contains(strings.ToLower(body.Message), "no data") {
			return models.PriceSeries{}, &models.DataAbsentError{Symbol: symbol, From: from, To: to}
		}
		return models.PriceSeries{}, fmt.Errorf("twelvedata %s: %d %s", symbol, body.Code, body.Message)
	}

	bars := make([]models.PriceBar, 0, len(body.Values))
	for _, v := range body.Values {
		bar, err := c.parseBar(v)
		if err != nil {
			return models.PriceSeries{}, fmt.Errorf("twelvedata %s: %w", symbol, err)
		}
		if bar.Date.Before(from) || !bar.Date.Before(to) {
			continue
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		c.log.Debug("no bars in range", logger.String("symbol", symbol))
		return models.PriceSeries{}, &models.DataAbsentError{Symbol: symbol, From: from, To: to}
	}

	series, err := models.NewPriceSeries(symbol, bars)
	if err != nil {
		return models.PriceSeries{}, fmt.Errorf("twelvedata %s: %w", symbol, err)
	}
	c.log.Debug("fetched prices", logger.String("symbol", symbol), logger.Int("bars", series.Len()))
	return series, nil
}

func (c *Client) parseBar(v valueEntry) (models.PriceBar, error) {
	tm, err := time.Parse("2006-01-02 15:04:05", v.Datetime)
	if err != nil {
		tm, err = time.Parse(models.DateLayout, v.Datetime)
		if err != nil {
			return models.PriceBar{}, fmt.Errorf("parse time %q: %w", v.Datetime, err)
		}
	}
	y, m, d := tm.Date()
	bar := models.PriceBar{Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}

	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", v.Open, &bar.Open},
		{"high", v.High, &bar.High},
		{"low", v.Low, &bar.Low},
		{"close", v.Close, &bar.Close},
	}
	for _, f := range fields {
		dec, err := decimal.NewFromString(f.raw)
		if err != nil {
			return models.PriceBar{}, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		if c.cfg.RoundPrices {
			dec = dec.Round(2)
		}
		*f.dst = dec.InexactFloat64()
	}
	if v.Volume != "" {
		vol, err := decimal.NewFromString(v.Volume)
		if err != nil {
			return models.PriceBar{}, fmt.Errorf("parse volume %q: %w", v.Volume, err)
		}
		bar.Volume = vol.InexactFloat64()
	}
	return bar, nil
}
