// Package observability exposes Prometheus metrics for the ingestion
// pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors on a private
// registry so tests never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived   prometheus.Counter
	MessagesAcked      prometheus.Counter
	MessagesNacked     prometheus.Counter
	MessagesDeadLetter prometheus.Counter
	RecordsWritten     prometheus.Counter
	StageFailures      *prometheus.CounterVec
	ProcessingSeconds  prometheus.Histogram
}

// NewMetrics creates and registers all pipeline collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadstone_messages_received_total",
			Help: "Notifications delivered by the broker.",
		}),
		MessagesAcked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadstone_messages_acked_total",
			Help: "Messages acknowledged after processing.",
		}),
		MessagesNacked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadstone_messages_nacked_total",
			Help: "Messages returned to the broker for redelivery.",
		}),
		MessagesDeadLetter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadstone_messages_deadlettered_total",
			Help: "Failed messages captured on the dead-letter topic.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadstone_records_written_total",
			Help: "Records appended to the warehouse table.",
		}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadstone_stage_failures_total",
			Help: "Processing failures by pipeline stage.",
		}, []string{"stage"}),
		ProcessingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "loadstone_processing_duration_seconds",
			Help:    "End-to-end processing time per message.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	reg.MustRegister(
		m.MessagesReceived,
		m.MessagesAcked,
		m.MessagesNacked,
		m.MessagesDeadLetter,
		m.RecordsWritten,
		m.StageFailures,
		m.ProcessingSeconds,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
