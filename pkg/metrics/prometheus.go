package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics on Prometheus.
type Recorder struct {
	spinsTotal    *prometheus.CounterVec
	outcomesTotal *prometheus.CounterVec
	alertsTotal   *prometheus.CounterVec
	archivedTotal *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	strategies    *prometheus.GaugeVec
	lastNumber    prometheus.Gauge
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the recorder registered on the default registry. Repeated calls
// return the same recorder.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = NewWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegistry registers a fresh set of collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		spinsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_spins_observed_total",
			Help: "Spins accepted by the tracker",
		}, []string{"source"}),
		outcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_strategy_outcomes_total",
			Help: "Strategy outcomes by strategy type",
		}, []string{"type", "outcome"}),
		alertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_alerts_fired_total",
			Help: "Streak alerts fired",
		}, []string{"kind"}),
		archivedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_spins_archived_total",
			Help: "Spins written to the archive backend",
		}, []string{"backend"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_errors_total",
			Help: "Errors by kind",
		}, []string{"type"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spintrack_operation_duration_seconds",
			Help:    "Duration of operations in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"operation"}),
		strategies: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spintrack_strategies",
			Help: "Strategies by state",
		}, []string{"state"}),
		lastNumber: f.NewGauge(prometheus.GaugeOpts{
			Name: "spintrack_last_number",
			Help: "Most recently observed number",
		}),
	}
}

func (r *Recorder) RecordSpin(source string, number int) {
	r.spinsTotal.WithLabelValues(source).Inc()
	r.lastNumber.Set(float64(number))
}

func (r *Recorder) RecordOutcome(strategyType, outcome string) {
	r.outcomesTotal.WithLabelValues(strategyType, outcome).Inc()
}

func (r *Recorder) RecordAlert(kind string) {
	r.alertsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordArchived(backend string, n int) {
	r.archivedTotal.WithLabelValues(backend).Add(float64(n))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetStrategies sets the gauges for active, paused and priority strategies.
func (r *Recorder) SetStrategies(active, paused, priority int) {
	r.strategies.WithLabelValues("active").Set(float64(active))
	r.strategies.WithLabelValues("paused").Set(float64(paused))
	r.strategies.WithLabelValues("priority").Set(float64(priority))
}
