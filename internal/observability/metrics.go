package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "math_agent"

// Metrics collects pipeline counters and latencies.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	answerLatency prometheus.Histogram
	feedback      *prometheus.CounterVec
	auditDropped  prometheus.Counter
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answered questions by chosen source and search strategy.",
		}, []string{"source", "strategy"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_questions_total",
			Help:      "Questions rejected by the input guard, by reason.",
		}, []string{"reason"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each routing stage call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Routing stage calls that failed or timed out.",
		}, []string{"stage"}),
		answerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "End-to-end latency of answered questions.",
			Buckets:   prometheus.DefBuckets,
		}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Recorded feedback by verdict.",
		}, []string{"correct"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_events_dropped_total",
			Help:      "API-call log events dropped because the buffer was full.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.rejections,
		m.stageDuration,
		m.stageFailures,
		m.answerLatency,
		m.feedback,
		m.auditDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAnswer records one answered question.
func (m *Metrics) ObserveAnswer(source, strategy string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(source, strategy).Inc()
	m.answerLatency.Observe(elapsed.Seconds())
}

// ObserveRejection records an input guard rejection.
func (m *Metrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveStage records one stage call.
func (m *Metrics) ObserveStage(stage string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if failed {
		m.stageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveFeedback records one persisted feedback entry.
func (m *Metrics) ObserveFeedback(correct bool) {
	if m == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	m.feedback.WithLabelValues(label).Inc()
}

// ObserveAuditDrop records a dropped API-call log event.
func (m *Metrics) ObserveAuditDrop() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
