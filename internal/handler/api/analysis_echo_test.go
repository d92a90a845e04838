package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/service/ratelimit"
	"QuantLab/internal/services/features"
	"QuantLab/internal/services/ml"
	"QuantLab/internal/services/montecarlo"
	"QuantLab/internal/services/statarb"
	"QuantLab/internal/usecase"
	xhttp "QuantLab/pkg/http"
	xlogger "QuantLab/pkg/logger"
)

type memProvider map[string][]models.PriceBar

func (p memProvider) Fetch(_ context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	var out []models.PriceBar
	for _, b := range p[symbol] {
		if !b.Date.Before(from) && b.Date.Before(to) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return models.PriceSeries{}, &models.DataAbsentError{Symbol: symbol, From: from, To: to}
	}
	return models.NewPriceSeries(symbol, out)
}

func bars(n int, base, amp float64) []models.PriceBar {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, n)
	prev := base
	for i := range out {
		c := base + amp*math.Sin(float64(i)/6) + 0.03*float64(i)
		out[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Open: prev, High: c + 1, Low: c - 1, Close: c, Volume: 10}
		prev = c
	}
	return out
}

func newTestEcho(limiter *ratelimit.Limiter) (*echo.Echo, *AnalysisHandler) {
	l := xlogger.Nop()
	f := usecase.NewFetcher(memProvider{"AAA": bars(200, 100, 4), "BBB": bars(200, 40, 2)}, "mem", nil, l)
	h := NewAnalysisHandler(l,
		usecase.NewPriceUseCase(f, nil),
		usecase.NewSimulationUseCase(f, montecarlo.NewSimulator(montecarlo.Config{ChunkSize: 50}), 42, nil, l),
		usecase.NewStatArbUseCase(f, statarb.NewEngine(), nil, l),
		usecase.NewPredictUseCase(f, features.NewPipeline(), ml.NewPredictor(ml.ForestConfig{Seed: 1}), nil, l),
		limiter, time.Minute,
	)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestPricesEndpoint(t *testing.T) {
	e, _ := newTestEcho(nil)
	rec, env := call(t, e, http.MethodGet, "/api/prices?symbol=aaa&start=2023-01-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.Status)

	var res usecase.PriceReport
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "AAA", res.Symbol)
	assert.Equal(t, 200, res.Count)
}

func TestSimulateEndpoint(t *testing.T) {
	e, _ := newTestEcho(nil)
	rec, env := call(t, e, http.MethodPost, "/api/simulate", `{"symbol":"AAA","start":"2023-01-01","days":20,"paths":300}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res usecase.SimulationReport
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 300, res.Paths)
	assert.Equal(t, int64(42), res.Seed)
	assert.NotNil(t, res.Median)
}

func TestSimulateDefaults(t *testing.T) {
	e, _ := newTestEcho(nil)
	rec, env := call(t, e, http.MethodPost, "/api/simulate", `{"symbol":"AAA","start":"2023-01-01","paths":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res usecase.SimulationReport
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 252, res.Days)
}

func TestErrorMapping(t *testing.T) {
	e, _ := newTestEcho(nil)

	rec, _ := call(t, e, http.MethodPost, "/api/simulate", `{"symbol":"NOPE","start":"2023-01-01","paths":10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec, _ = call(t, e, http.MethodPost, "/api/simulate", `{"symbol":"AAA","start":"2023-01-01","days":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"days"`)

	rec, _ = call(t, e, http.MethodPost, "/api/statarb", `{"symbol1":"AAA","symbol2":"AAA"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "symbol2 must differ from Symbol1")

	rec, _ = call(t, e, http.MethodPost, "/api/predict", `{"symbol":"AAA","start":"2023-01-01","threshold":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatArbAndCompareEndpoints(t *testing.T) {
	e, _ := newTestEcho(nil)

	rec, env := call(t, e, http.MethodPost, "/api/statarb", `{"symbol1":"AAA","symbol2":"BBB","start":"2023-01-01","window_size":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sa usecase.StatArbReport
	require.NoError(t, json.Unmarshal(env.Data, &sa))
	assert.Len(t, sa.Points, 200)
	assert.Nil(t, sa.Points[0].Residual)

	rec, env = call(t, e, http.MethodPost, "/api/compare", `{"symbol1":"AAA","symbol2":"BBB","start":"2023-01-01","days":5,"paths":50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cmp usecase.CompareReport
	require.NoError(t, json.Unmarshal(env.Data, &cmp))
	assert.Equal(t, "BBB", cmp.Second.Symbol)
}

func TestRateLimitedRoutes(t *testing.T) {
	e, _ := newTestEcho(ratelimit.New(1, 0.001, 0))
	body := `{"symbol":"AAA","start":"2023-01-01","days":5,"paths":10}`
	rec, _ := call(t, e, http.MethodPost, "/api/simulate", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, e, http.MethodPost, "/api/simulate", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_RATE_LIMITED")

	rec, _ = call(t, e, http.MethodGet, "/api/prices?symbol=AAA&start=2023-01-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	e, h := newTestEcho(nil)
	rec, _ := call(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddHealthCheck("store", func(context.Context) error { return errors.New("down") })
	rec, env := call(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"store":"down"}`, string(env.Data))
}

func TestToAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&models.DataAbsentError{Symbol: "X"}, http.StatusNotFound, "ERR_NOT_FOUND"},
		{&models.InvalidParameterError{Name: "days"}, http.StatusBadRequest, "ERR_BAD_REQUEST"},
		{&models.InsufficientDataError{What: "w", Need: 2}, http.StatusBadRequest, "ERR_BAD_REQUEST"},
		{&models.UndefinedStatisticError{Name: "sigma"}, http.StatusUnprocessableEntity, "ERR_UNDEFINED_STATISTIC"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "ERR_TIMEOUT"},
		{errors.New("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		got := toAppError(tc.err)
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
	}
	assert.Equal(t, "sigma", toAppError(&models.UndefinedStatisticError{Name: "sigma"}).Field)
}

func TestSimulateStream(t *testing.T) {
	e, _ := newTestEcho(nil)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/simulate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"symbol": "AAA", "start": "2023-01-01", "days": 10, "paths": 200}))

	var progress int
	for {
		var msg struct {
			Type      string          `json:"type"`
			Completed int             `json:"completed"`
			Total     int             `json:"total"`
			Data      json.RawMessage `json:"data"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "progress" {
			progress++
			assert.Equal(t, 200, msg.Total)
			continue
		}
		require.Equal(t, "result", msg.Type)
		var res usecase.SimulationReport
		require.NoError(t, json.Unmarshal(msg.Data, &res))
		assert.Equal(t, "AAA", res.Symbol)
		break
	}
	assert.Equal(t, 4, progress)
}

func TestSimulateStreamValidation(t *testing.T) {
	e, _ := newTestEcho(nil)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/simulate"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"symbol": "AAA", "days": 0, "paths": -3}))
	var msg struct {
		Type   string                  `json:"type"`
		Errors []xhttp.ValidationError `json:"errors"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Errors)
}
