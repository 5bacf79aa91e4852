package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quantlab",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	requestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantlab",
			Subsystem: "http",
			Name:      "request_seconds",
			Help:      "Request latency by route and method",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method"},
	)

	responseBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quantlab",
			Subsystem: "http",
			Name:      "response_bytes",
			Help:      "Response body size by route",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"route"},
	)

	inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quantlab",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Requests currently being served",
		},
	)
)

// Metrics records per-request Prometheus metrics. The route label uses
// echo's registered path template, not the raw URL, so parameterized
// routes collapse into one series.
func Metrics() echo.MiddlewareFunc {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, requestSeconds, responseBytes, inFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			inFlight.Inc()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			requestsTotal.WithLabelValues(route, method, status).Inc()
			requestSeconds.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
			responseBytes.WithLabelValues(route).Observe(float64(c.Response().Size))
			inFlight.Dec()

			return err
		}
	}
}
