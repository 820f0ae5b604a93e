package httpapi

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catalog",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route, method, and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route, method, and status.",
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(requestDuration, requestsTotal)
}

// WithMetrics records request count and latency for every route it
// wraps, keyed by the matched route pattern rather than the raw path so
// cardinality stays bounded across path-parameterized routes.
func WithMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Route().Path

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(status),
		}

		requestDuration.With(labels).Observe(time.Since(start).Seconds())
		requestsTotal.With(labels).Inc()

		return err
	}
}

// MetricsHandler exposes the process's registered Prometheus metrics.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
