package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	models "QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	icache "QuantLab/internal/service/cache"
	"QuantLab/internal/service/metrics"
	"QuantLab/internal/service/ratelimit"
	"QuantLab/internal/usecase"
	pkgcache "QuantLab/pkg/cache"
	xhttp "QuantLab/pkg/http"
	xlogger "QuantLab/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketEchoHandler serves health, stored bars, and indicator snapshots.
type MarketEchoHandler struct {
	logger    *xlogger.Logger
	md        *usecase.MarketDataUseCase
	pipe      *usecase.AnalysisPipeline
	store     domrepo.BarStore
	collector *usecase.FeedCollector
	cache     icache.BytesCache
	cacheTTL  time.Duration
	rl        *ratelimit.Limiter
}

func NewMarketEchoHandler(logger *xlogger.Logger, md *usecase.MarketDataUseCase, pipe *usecase.AnalysisPipeline, store domrepo.BarStore) *MarketEchoHandler {
	metrics.Register()
	return &MarketEchoHandler{logger: logger, md: md, pipe: pipe, store: store, cacheTTL: 60 * time.Second, rl: ratelimit.New()}
}

func (h *MarketEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetCacheTTL overrides how long market data responses stay cached.
func (h *MarketEchoHandler) SetCacheTTL(d time.Duration) {
	if d > 0 {
		h.cacheTTL = d
	}
}

// SetCollector wires the feed collector so health can report stream status.
func (h *MarketEchoHandler) SetCollector(c *usecase.FeedCollector) { h.collector = c }

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/health", h.Health)
	g := e.Group("/api")
	g.GET("/market-data", h.MarketData)
	g.GET("/indicators", h.Indicators)
}

type healthStatus struct {
	Status     string            `json:"status"`
	Time       time.Time         `json:"time"`
	Components map[string]string `json:"components"`
}

func (h *MarketEchoHandler) Health(c echo.Context) error {
	ctx, cancel := echoTimeout(c, 3*time.Second)
	defer cancel()

	st := healthStatus{Status: "ok", Time: time.Now().UTC(), Components: map[string]string{}}

	if err := h.store.Health(ctx); err != nil {
		st.Components["clickhouse"] = "down"
		st.Status = "degraded"
	} else {
		st.Components["clickhouse"] = "up"
	}

	if h.collector != nil {
		if h.collector.IsConnected() {
			st.Components["feed"] = "connected"
		} else {
			st.Components["feed"] = "disconnected"
		}
	}

	if st.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, st)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *MarketEchoHandler) MarketData(c echo.Context) error {
	start := time.Now()
	endpoint := "market-data"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.MarketDataRequest{}
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

	if !h.rl.Allow(c.RealIP()+":market-data", 10, 5) {
		h.logger.Warn("market-data rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	cacheKey := pkgcache.GenerateKeyWithParams("bars", req.Symbol, req.From, req.To, req.Limit)
	if b, ok := h.cached(cacheKey, endpoint); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	res, err := h.md.GetBars(c.Request().Context(), usecase.GetBarsParams{
		Symbol: req.Symbol,
		From:   from,
		To:     to,
		Limit:  req.Limit,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("market-data usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	h.storeCached(cacheKey, endpoint, res, h.cacheTTL)
	return xhttp.SuccessResponse(c, res)
}

func (h *MarketEchoHandler) Indicators(c echo.Context) error {
	start := time.Now()
	endpoint := "indicators"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if !h.rl.Allow(c.RealIP()+":indicators", 5, 2) {
		h.logger.Warn("indicators rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	cacheKey := pkgcache.GenerateKeyWithParams("ind", req.Symbol, req.N)
	if b, ok := h.cached(cacheKey, endpoint); ok {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	res, err := h.pipe.Snapshot(c.Request().Context(), usecase.SnapshotParams{Symbol: req.Symbol, N: req.N})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.NotFoundResponse(c, err.Error())
		}
		h.logger.Error("indicators usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	h.storeCached(cacheKey, endpoint, res, 30*time.Second)
	return xhttp.SuccessResponse(c, res)
}

// cached returns the raw cached payload for key, if present.
func (h *MarketEchoHandler) cached(key, endpoint string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn(endpoint+" cache_get_error", xlogger.Error(err))
		return nil, false
	}
	if ok {
		h.logger.Debug(endpoint+" cache_hit", xlogger.String("key", key))
	}
	return b, ok
}

func (h *MarketEchoHandler) storeCached(key, endpoint string, v interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil {
		h.logger.Warn(endpoint+" cache_set_error", xlogger.Error(err))
	}
}

// parseTimeParam accepts anything xhttp.ParseTime does; empty means unset.
func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, ok := xhttp.ParseTime(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, want RFC3339, YYYY-MM-DD, or unix seconds", s)
}

func echoTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}
