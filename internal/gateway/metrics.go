package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/presensia/presensia-core/internal/apperr"
)

// Metrics records per-operation call counts and latency.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presensia",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Remote gateway calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "presensia",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Remote gateway call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

func (m *Metrics) observe(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// outcome buckets err into a low-cardinality label.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch apperr.KindOf(err) {
	case apperr.KindNetwork:
		return "network_error"
	case apperr.KindStore:
		return "store_error"
	case apperr.KindPermissionDenied:
		return "permission_denied"
	default:
		return "rejected"
	}
}
