// Package metrics exposes Prometheus collectors for the consent and emergency
// paths plus a request-duration middleware.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConsentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthid_consent_transitions_total",
		Help: "Consent ledger state transitions by resulting status.",
	}, []string{"status"})

	EmergencyScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "healthid_emergency_scans_total",
		Help: "Emergency QR scan attempts by outcome.",
	}, []string{"outcome"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "healthid_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Middleware records request latency per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			requestDuration.WithLabelValues(
				c.Request().Method,
				path,
				strconv.Itoa(c.Response().Status),
			).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
