package middleware

import (
	"strconv"
	"sync"
	"time"

	"SpinTrack/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInFlight        *prometheus.GaugeVec
	httpResponseSize    *prometheus.HistogramVec

	regOnce sync.Once
)

func initMetrics() {
	regOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"})
		httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spintrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"route", "method", "class"})
		httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spintrack_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		}, []string{"route"})
		httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spintrack_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000},
		}, []string{"route", "method"})
	})
}

// Metrics records request metrics labelled by route template and warns on
// requests slower than slowThreshold. slowThreshold <= 0 disables the warning.
func Metrics(log *logger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	initMetrics()
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := routeOf(c)
			method := c.Request().Method

			httpInFlight.WithLabelValues(route).Inc()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)
			httpInFlight.WithLabelValues(route).Dec()

			status := c.Response().Status
			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(route, method, statusClass(status)).Observe(elapsed.Seconds())
			httpResponseSize.WithLabelValues(route, method).Observe(float64(c.Response().Size))

			if slowThreshold > 0 && elapsed >= slowThreshold {
				log.Warn("http request slow",
					logger.String("route", route),
					logger.String("method", method),
					logger.Int("status", status),
					logger.Duration("duration_ms", elapsed),
				)
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
