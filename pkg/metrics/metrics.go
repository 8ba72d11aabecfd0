package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	MessagesProcessed      *prometheus.CounterVec
	EscalationsSent        *prometheus.CounterVec
	EscalationFailures     prometheus.Counter
	ActiveContactWorkers   prometheus.Gauge
	QueueWaitDuration      prometheus.Histogram
	ConversationsSwept     *prometheus.CounterVec
	SweepDuration          prometheus.Histogram
	RedisOperationDuration *prometheus.HistogramVec
	AIRequestDuration      *prometheus.HistogramVec
	AIRequestFailures      *prometheus.CounterVec
	OutboundSendFailures   prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers on an explicit registry so tests can use an
// isolated one instead of the process-global default.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "inbound_messages_processed_total",
			Help: "Total number of inbound messages processed",
		}, []string{"outcome"}),
		EscalationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escalations_sent_total",
			Help: "Total number of escalation notifications sent to owners",
		}, []string{"reason"}),
		EscalationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "escalation_failures_total",
			Help: "Total number of escalation notification delivery failures",
		}),
		ActiveContactWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "active_contact_workers",
			Help: "Current number of per-contact dispatch workers",
		}),
		QueueWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_queue_wait_seconds",
			Help:    "Time an inbound message waits between receipt and processing",
			Buckets: prometheus.DefBuckets,
		}),
		ConversationsSwept: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conversations_swept_total",
			Help: "Total number of conversation records removed by the retention sweeper",
		}, []string{"reason"}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Time taken for a full retention sweep pass",
			Buckets: prometheus.DefBuckets,
		}),
		RedisOperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Time taken for Redis operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		AIRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Time taken for AI collaborator calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		AIRequestFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_request_failures_total",
			Help: "Total number of failed AI collaborator calls",
		}, []string{"operation"}),
		OutboundSendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "outbound_send_failures_total",
			Help: "Total number of failed outbound message sends",
		}),
	}
}
