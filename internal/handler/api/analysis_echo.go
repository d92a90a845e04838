package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"QuantLab/internal/domain/models"
	"QuantLab/internal/service/ratelimit"
	"QuantLab/internal/usecase"
	xhttp "QuantLab/pkg/http"
	xlogger "QuantLab/pkg/logger"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// AnalysisHandler exposes the analysis use cases over Echo.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	prices   *usecase.PriceUseCase
	sim      *usecase.SimulationUseCase
	pairs    *usecase.StatArbUseCase
	predict  *usecase.PredictUseCase
	limiter  *ratelimit.Limiter
	timeout  time.Duration
	checks   map[string]HealthCheck
	upgrader websocket.Upgrader
}

func NewAnalysisHandler(
	logger *xlogger.Logger,
	prices *usecase.PriceUseCase,
	sim *usecase.SimulationUseCase,
	pairs *usecase.StatArbUseCase,
	predict *usecase.PredictUseCase,
	limiter *ratelimit.Limiter,
	timeout time.Duration,
) *AnalysisHandler {
	return &AnalysisHandler{
		logger:  logger,
		prices:  prices,
		sim:     sim,
		pairs:   pairs,
		predict: predict,
		limiter: limiter,
		timeout: timeout,
		checks:  map[string]HealthCheck{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// AddHealthCheck registers a named dependency check for /healthz.
func (h *AnalysisHandler) AddHealthCheck(name string, check HealthCheck) {
	if check != nil {
		h.checks[name] = check
	}
}

// SetAllowedOrigins restricts WebSocket upgrades to the given origins.
// Requests without an Origin header are always accepted.
func (h *AnalysisHandler) SetAllowedOrigins(origins []string) {
	if len(origins) == 0 {
		h.upgrader.CheckOrigin = nil
		return
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	var limited []echo.MiddlewareFunc
	if h.limiter != nil {
		limited = append(limited, ratelimit.Middleware(h.limiter))
	}

	g := e.Group("/api")
	g.GET("/prices", h.Prices)
	g.POST("/simulate", h.Simulate, limited...)
	g.POST("/compare", h.Compare, limited...)
	g.POST("/statarb", h.StatArb, limited...)
	g.POST("/predict", h.Predict, limited...)

	e.GET("/ws/simulate", h.SimulateStream, limited...)
}

func (h *AnalysisHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *AnalysisHandler) Prices(c echo.Context) error {
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.prices.Fetch(ctx, *req)
	if err != nil {
		return h.fail(c, "prices", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Simulate(c echo.Context) error {
	req := &models.SimulateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.sim.Simulate(ctx, *req, nil)
	if err != nil {
		return h.fail(c, "simulate", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Compare(c echo.Context) error {
	req := &models.CompareRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.sim.Compare(ctx, *req)
	if err != nil {
		return h.fail(c, "compare", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) StatArb(c echo.Context) error {
	req := &models.StatArbRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.pairs.Run(ctx, *req)
	if err != nil {
		return h.fail(c, "statarb", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()

	res, err := h.predict.Run(ctx, *req)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisHandler) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request().Context())
	}
	return context.WithTimeout(c.Request().Context(), h.timeout)
}

func (h *AnalysisHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Warn(op+" rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
