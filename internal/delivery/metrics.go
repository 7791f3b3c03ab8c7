package delivery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "missedcall"

var (
	queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "queue_size",
			Help:      "Number of messages in queue by state",
		},
		[]string{"state"},
	)

	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "messages_total",
			Help:      "Total send attempts by outcome",
		},
		[]string{"platform", "status"},
	)

	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "send_duration_seconds",
			Help:      "Time to send one message",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"platform"},
	)

	queueFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "queue_fetched_total",
			Help:      "Total messages taken from the pending queue for dispatch",
		},
	)
)

// recordMessageSent records one send attempt outcome.
func recordMessageSent(platform, status string) {
	messagesSent.WithLabelValues(platform, status).Inc()
}

// recordSendDuration records how long one send took.
func recordSendDuration(platform string, duration time.Duration) {
	sendDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// recordQueueFetched records the number of messages taken for dispatch.
func recordQueueFetched(count int) {
	queueFetched.Add(float64(count))
}

// RecordQueueStats updates queue size gauges.
func RecordQueueStats(stats QueueStats) {
	queueSize.WithLabelValues(string(StatePending)).Set(float64(stats.Pending))
	queueSize.WithLabelValues(string(StateProcessing)).Set(float64(stats.Processing))
	queueSize.WithLabelValues(string(StateCompleted)).Set(float64(stats.Completed))
	queueSize.WithLabelValues(string(StateFailed)).Set(float64(stats.Failed))
}
