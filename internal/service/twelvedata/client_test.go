package twelvedata

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLab/internal/domain/models"
	"QuantLab/pkg/logger"
)

var (
	from = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
)

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "AAPL", q.Get("symbol"))
		assert.Equal(t, "1day", q.Get("interval"))
		assert.Equal(t, "2025-01-01", q.Get("start_date"))
		assert.Equal(t, "2025-01-31", q.Get("end_date"))
		assert.Equal(t, "test-key", q.Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"values": [
				{"datetime": "2025-01-15", "open": "150.004", "high": "155.00", "low": "149.00", "close": "154.496", "volume": "1000000"},
				{"datetime": "2025-01-14 09:30:00", "open": "148.00", "high": "151.00", "low": "147.50", "close": "150.00", "volume": "900000"},
				{"datetime": "2025-02-01", "open": "1", "high": "1", "low": "1", "close": "1", "volume": "1"}
			]
		}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", RoundPrices: true}, logger.Nop())
	s, err := c.Fetch(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len(), "bars on or after the end date are excluded")

	first := s.Bar(0)
	assert.Equal(t, time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, 150.0, s.Bar(1).Open)
	assert.Equal(t, 154.5, s.Bar(1).Close)
	assert.Equal(t, 1000000.0, s.Bar(1).Volume)
}

func TestFetchNoData(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","code":400,"message":"No data is available on the specified dates."}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL}, logger.Nop())
	_, err := c.Fetch(context.Background(), "ZZZZ", from, to)
	var absent *models.DataAbsentError
	require.True(t, errors.As(err, &absent))
	assert.Equal(t, "ZZZZ", absent.Symbol)
	assert.ErrorIs(t, err, models.ErrDataAbsent)
}

func TestFetchEmptyValues(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}, logger.Nop()).Fetch(context.Background(), "SPY", from, to)
	assert.ErrorIs(t, err, models.ErrDataAbsent)
}

func TestFetchServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}, logger.Nop()).Fetch(context.Background(), "SPY", from, to)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrDataAbsent)
}

func TestFetchBadNumber(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[{"datetime":"2025-01-02","open":"x","high":"1","low":"1","close":"1"}]}`))
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}, logger.Nop()).Fetch(context.Background(), "SPY", from, to)
	assert.ErrorContains(t, err, "parse open")
}

func TestFetchLogsNothingAtInfo(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","values":[{"datetime":"2025-01-15","open":"1","high":"1","low":"1","close":"1","volume":"1"}]}`))
	}))
	defer server.Close()

	// Request logging belongs to the caller; the client only adds debug detail.
	var buf bytes.Buffer
	c := NewClient(Config{BaseURL: server.URL}, logger.NewWithWriter(&buf, zerolog.InfoLevel))
	_, err := c.Fetch(context.Background(), "SPY", from, to)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
