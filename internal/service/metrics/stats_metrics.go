// Package metrics holds collectors specific to the stats endpoints.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	StatsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spintrack",
			Subsystem: "stats",
			Name:      "latency_seconds",
			Help:      "Latency of statistics computations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	StatsCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spintrack",
			Subsystem: "stats",
			Name:      "cache_hits_total",
			Help:      "Statistics served from the revision cache",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(StatsLatency, StatsCacheHits)
	})
}

// Observe records the latency of endpoint since start.
func Observe(endpoint string, start time.Time) {
	StatsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
