// internal/authorizer/metrics.go
package authorizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tollgate/internal/decision"
)

// Metrics counts decisions by effect/reason and tracks end-to-end latency of
// the authorization pass (the gateway holds us to a tight budget).
type Metrics struct {
	decisions *prometheus.CounterVec
	duration  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tollgate",
			Name:      "decisions_total",
			Help:      "Authorization decisions by effect and deny reason.",
		}, []string{"effect", "reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tollgate",
			Name:      "authorize_duration_seconds",
			Help:      "Wall time of a full authorization pass.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.duration)
	}
	return m
}

func (m *Metrics) Observe(d decision.Decision, elapsed time.Duration) {
	m.decisions.WithLabelValues(string(d.Effect), string(d.Reason)).Inc()
	m.duration.Observe(elapsed.Seconds())
}
