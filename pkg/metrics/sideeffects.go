package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SideEffectMetrics records the outcome of best-effort tasks (audit, notify, storage).
type SideEffectMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
}

// NewSideEffectMetrics registers the side effect metrics on the provided registerer.
func NewSideEffectMetrics(reg prometheus.Registerer) *SideEffectMetrics {
	if reg == nil {
		return &SideEffectMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "side_effect_duration_seconds",
		Help:    "Duration of best-effort side effects in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "side_effect_success_total",
		Help: "Side effects that completed.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "side_effect_failure_total",
		Help: "Side effects that returned an error or panicked.",
	}, []string{"kind"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "side_effect_dropped_total",
		Help: "Side effects rejected because the queue was full or closed.",
	}, []string{"kind"})
	reg.MustRegister(duration, success, failure, dropped)
	return &SideEffectMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		dropped:  dropped,
	}
}

// ObserveDuration records how long the named side effect ran.
func (m *SideEffectMetrics) ObserveDuration(kind string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

func (m *SideEffectMetrics) IncSuccess(kind string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *SideEffectMetrics) IncFailure(kind string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *SideEffectMetrics) IncDropped(kind string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
