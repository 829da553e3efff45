package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_job_transitions_total",
			Help: "Job status transitions by from/to status",
		},
		[]string{"from", "to"},
	)

	jobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_jobs_in_flight",
			Help: "Jobs currently in processing status",
		},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	webhookSignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook requests rejected for missing or invalid signatures",
		},
	)

	dispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_dispatch_attempts_total",
			Help: "Ticket generator dispatch attempts by result",
		},
		[]string{"result"},
	)

	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generator_dispatch_duration_seconds",
			Help:    "Duration of ticket generator handoffs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	reconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_reconcile_duration_seconds",
			Help:    "Duration of webhook reconciliation by event type",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"event_type"},
	)
)

// Monitor is the process-wide metrics sink. Counters are package-level so a
// nil Monitor is safe to call; the struct exists to mirror how the rest of
// the service passes dependencies.
type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) TrackTransition(from, to string) {
	jobTransitions.WithLabelValues(from, to).Inc()
	switch {
	case to == "processing":
		jobsInFlight.Inc()
	case from == "processing":
		jobsInFlight.Dec()
	}
}

func (m *Monitor) TrackDelivery(eventType, outcome string) {
	webhookDeliveries.WithLabelValues(eventType, outcome).Inc()
}

func (m *Monitor) TrackSignatureFailure() {
	webhookSignatureFailures.Inc()
}

func (m *Monitor) TrackDispatch(result string, duration time.Duration) {
	dispatchAttempts.WithLabelValues(result).Inc()
	dispatchDuration.Observe(duration.Seconds())
}

func (m *Monitor) TrackReconcile(eventType string, duration time.Duration) {
	reconcileDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}
