package api

import (
	"errors"
	"net/http"
	"time"

	models "QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/service/metrics"
	"QuantLab/internal/service/ratelimit"
	"QuantLab/internal/services/strategy"
	"QuantLab/internal/usecase"
	xhttp "QuantLab/pkg/http"
	xlogger "QuantLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BacktestEchoHandler runs backtests synchronously or through the queue
// and serves journaled results.
type BacktestEchoHandler struct {
	logger *xlogger.Logger
	runner *usecase.BacktestRunner
	rl     *ratelimit.Limiter
}

func NewBacktestEchoHandler(logger *xlogger.Logger, runner *usecase.BacktestRunner) *BacktestEchoHandler {
	metrics.Register()
	return &BacktestEchoHandler{logger: logger, runner: runner, rl: ratelimit.New()}
}

func (h *BacktestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/backtest", h.Run)
	g.GET("/backtest/:id", h.Result)
	g.GET("/backtest", h.Recent)
}

type backtestQueued struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (h *BacktestEchoHandler) Run(c echo.Context) error {
	start := time.Now()
	endpoint := "backtest"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, err := parseTimeParam(req.From)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	to, err := parseTimeParam(req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	if !h.rl.Allow(c.RealIP()+":backtest", 3, 1) {
		h.logger.Warn("backtest rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	params := usecase.RunParams{
		Symbol:         req.Symbol,
		Strategy:       req.Strategy,
		InitialCapital: req.InitialCapital,
		Commission:     req.Commission,
		From:           from,
		To:             to,
		N:              req.N,
	}

	if req.Async {
		runID, err := h.runner.Enqueue(c.Request().Context(), params)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			if errors.Is(err, strategy.ErrUnknown) {
				return xhttp.BadRequestResponse(c, err.Error())
			}
			h.logger.Error("backtest enqueue error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.CreatedResponse(c, backtestQueued{RunID: runID, Status: "queued"})
	}

	res, err := h.runner.Run(c.Request().Context(), params)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		switch {
		case errors.Is(err, strategy.ErrUnknown):
			return xhttp.BadRequestResponse(c, err.Error())
		case errors.Is(err, domrepo.ErrNotFound):
			return xhttp.NotFoundResponse(c, err.Error())
		}
		h.logger.Error("backtest run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestEchoHandler) Result(c echo.Context) error {
	start := time.Now()
	endpoint := "backtest-result"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	res, err := h.runner.Result(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, err.Error())
		}
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("backtest result error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestEchoHandler) Recent(c echo.Context) error {
	start := time.Now()
	endpoint := "backtest-list"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, err := h.runner.Recent(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("backtest list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
