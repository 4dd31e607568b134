package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	producerMsgsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec

	consumerMsgsTotal     *prometheus.CounterVec
	consumerQueueFullness *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		producerMsgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_kafka_producer_messages_total",
			Help: "Messages published to Kafka",
		}, []string{"topic", "result"})
		producerBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_kafka_producer_bytes_total",
			Help: "Payload bytes published to Kafka",
		}, []string{"topic", "compression"})
		producerLatencyHist = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spintrack_kafka_producer_publish_seconds",
			Help:    "Publish latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})

		consumerMsgsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "spintrack_kafka_consumer_messages_total",
			Help: "Messages handled by the consumer",
		}, []string{"topic", "result"})
		consumerQueueFullness = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "spintrack_kafka_consumer_queue_fullness",
			Help: "Worker queue utilization ratio (len/cap)",
		}, []string{"topic"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spintrack_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}

func observeProduce(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMsgsTotal.WithLabelValues(topic, result).Add(float64(count))
	producerBytesTotal.WithLabelValues(topic, comp).Add(float64(bytes))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeConsume(topic string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerMsgsTotal.WithLabelValues(topic, result).Inc()
	consumerHandleLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
