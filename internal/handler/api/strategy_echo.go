package api

import (
	"errors"
	"net/http"
	"time"

	models "QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	"QuantLab/internal/service/metrics"
	"QuantLab/internal/service/ratelimit"
	"QuantLab/internal/usecase"
	xhttp "QuantLab/pkg/http"
	xlogger "QuantLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StrategyEchoHandler runs the analysis pipeline on demand and lists
// journaled decisions.
type StrategyEchoHandler struct {
	logger *xlogger.Logger
	pipe   *usecase.AnalysisPipeline
	rl     *ratelimit.Limiter
}

func NewStrategyEchoHandler(logger *xlogger.Logger, pipe *usecase.AnalysisPipeline) *StrategyEchoHandler {
	metrics.Register()
	return &StrategyEchoHandler{logger: logger, pipe: pipe, rl: ratelimit.New()}
}

func (h *StrategyEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/strategy", h.Strategy)
	g.GET("/decisions", h.Decisions)
}

func (h *StrategyEchoHandler) Strategy(c echo.Context) error {
	start := time.Now()
	endpoint := "strategy"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.StrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if !h.rl.Allow(c.RealIP()+":strategy", 5, 2) {
		h.logger.Warn("strategy rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	rec, err := h.pipe.Decide(c.Request().Context(), usecase.DecideParams{Symbol: req.Symbol, N: req.N})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, err.Error())
		}
		h.logger.Error("strategy usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *StrategyEchoHandler) Decisions(c echo.Context) error {
	start := time.Now()
	endpoint := "decisions"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.DecisionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	recs, err := h.pipe.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("decisions usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}
